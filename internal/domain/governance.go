package domain

import "time"

// ApprovalStatus is the state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// ApprovalRequest tracks one admin sign-off for a restricted command.
type ApprovalRequest struct {
	ID         string         `json:"id"`
	Command    string         `json:"command"`
	Args       []string       `json:"args"`
	Requester  string         `json:"requester"`
	Role       string         `json:"role"`
	Timestamp  time.Time      `json:"timestamp"`
	Status     ApprovalStatus `json:"status"`
	ApprovedBy string         `json:"approved_by,omitempty"`
	ApprovedAt *time.Time     `json:"approved_at,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	ConsumedAt *time.Time     `json:"consumed_at,omitempty"`
}

// ApprovalAction is the kind of audit entry.
type ApprovalAction string

const (
	AuditRequest ApprovalAction = "request"
	AuditApprove ApprovalAction = "approve"
	AuditReject  ApprovalAction = "reject"
	AuditConsume ApprovalAction = "consume"
)

// ApprovalLogEntry is an immutable audit record.
type ApprovalLogEntry struct {
	ID        string         `json:"id"`
	Action    ApprovalAction `json:"action"`
	Command   string         `json:"command"`
	User      string         `json:"user"`
	Role      string         `json:"role"`
	Timestamp time.Time      `json:"timestamp"`
	Details   string         `json:"details"`
}

// Decision is the answer of the governance gate.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	RequestID string `json:"request_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// RestrictedCommands is the fixed set that needs admin approval.
var RestrictedCommands = []string{"release", "deploy", "db-backup", "db-restore", "rollback"}

// IsRestricted reports whether command needs approval for non-admin roles.
func IsRestricted(command string) bool {
	for _, c := range RestrictedCommands {
		if c == command {
			return true
		}
	}
	return false
}
