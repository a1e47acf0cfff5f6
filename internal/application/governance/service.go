// Package governance implements the approval workflow for restricted commands.
//
// Restricted commands requested by a non-admin role never run on the call that
// requests them. The call records a pending request and returns its id; an admin
// approves or rejects it out of band, and a later call by the same requester with
// the same arguments consumes the approval exactly once.
package governance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

// Service is the approval state machine plus its audit log.
type Service struct {
	mu        sync.Mutex
	requests  map[string]*domain.ApprovalRequest
	log       []domain.ApprovalLogEntry
	retention int

	store  ports.RecordStore
	logger ports.Logger
	clock  ports.Clock
	newID  func() string
}

type persistedState struct {
	Requests []domain.ApprovalRequest  `json:"requests"`
	Log      []domain.ApprovalLogEntry `json:"log"`
}

// NewService builds an empty service. store may be nil for purely in-memory use.
func NewService(store ports.RecordStore, logger ports.Logger, retention int) *Service {
	if retention <= 0 {
		retention = domain.DefaultApprovalLogRetention
	}
	return &Service{
		requests:  make(map[string]*domain.ApprovalRequest),
		retention: retention,
		store:     store,
		logger:    logger,
		clock:     ports.SystemClock{},
		newID:     func() string { return uuid.NewString() },
	}
}

// Load restores persisted state. Missing or corrupt records leave the service empty.
func (s *Service) Load(ctx context.Context) {
	if s.store == nil {
		return
	}
	var state persistedState
	if err := s.store.Load(ctx, domain.KeyGovernance, &state); err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			s.logger.Warn("governance state unreadable, starting empty", map[string]interface{}{"error": err.Error()})
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = make(map[string]*domain.ApprovalRequest, len(state.Requests))
	for i := range state.Requests {
		req := state.Requests[i]
		s.requests[req.ID] = &req
	}
	s.log = state.Log
	s.trimLogLocked()
}

// CanProceed lets unrestricted commands and admins through. Everyone else gets a
// fresh pending request and must not run the command on this call.
func (s *Service) CanProceed(ctx context.Context, command string, args []string, user, role string) domain.Decision {
	if !domain.IsRestricted(command) {
		return domain.Decision{Allowed: true}
	}
	if role == domain.RoleAdmin {
		return domain.Decision{Allowed: true, Reason: "admin"}
	}
	id := s.RequestApproval(ctx, command, args, user, role)
	return domain.Decision{
		Allowed:   false,
		RequestID: id,
		Reason:    fmt.Sprintf("%s requires admin approval", command),
	}
}

// RequestApproval records a pending request and returns its id.
func (s *Service) RequestApproval(ctx context.Context, command string, args []string, requester, role string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := &domain.ApprovalRequest{
		ID:        s.newID(),
		Command:   command,
		Args:      append([]string(nil), args...),
		Requester: requester,
		Role:      role,
		Timestamp: s.clock.Now(),
		Status:    domain.ApprovalPending,
	}
	s.requests[req.ID] = req
	s.appendLogLocked(domain.AuditRequest, req, requester, role, strings.Join(args, " "))
	s.persistLocked(ctx)

	s.logger.Info("approval requested", map[string]interface{}{
		"request_id": req.ID,
		"command":    command,
		"requester":  requester,
	})
	return req.ID
}

// ApproveCommand moves a pending request to approved. It returns false without
// changing anything when the request is missing, the approver is not admin, or
// the request already left pending.
func (s *Service) ApproveCommand(ctx context.Context, id, approver, approverRole string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.transitionableLocked(id, approverRole)
	if !ok {
		return false
	}
	now := s.clock.Now()
	req.Status = domain.ApprovalApproved
	req.ApprovedBy = approver
	req.ApprovedAt = &now
	s.appendLogLocked(domain.AuditApprove, req, approver, approverRole, "approved")
	s.persistLocked(ctx)
	return true
}

// RejectCommand moves a pending request to rejected. A reason is required.
func (s *Service) RejectCommand(ctx context.Context, id, approver, approverRole, reason string) bool {
	if strings.TrimSpace(reason) == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.transitionableLocked(id, approverRole)
	if !ok {
		return false
	}
	now := s.clock.Now()
	req.Status = domain.ApprovalRejected
	req.ApprovedBy = approver
	req.ApprovedAt = &now
	req.Reason = reason
	s.appendLogLocked(domain.AuditReject, req, approver, approverRole, reason)
	s.persistLocked(ctx)
	return true
}

// HasApproval reports whether an approved, unconsumed request exists for the
// same command, arguments and requester. Nothing is marked used.
func (s *Service) HasApproval(command string, args []string, user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approvalLocked(command, args, user) != nil
}

// ConsumeApproval finds the oldest approved, unconsumed request for the same
// command, arguments and requester and marks it used.
func (s *Service) ConsumeApproval(ctx context.Context, command string, args []string, user string) (domain.ApprovalRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match := s.approvalLocked(command, args, user)
	if match == nil {
		return domain.ApprovalRequest{}, false
	}

	now := s.clock.Now()
	match.ConsumedAt = &now
	s.appendLogLocked(domain.AuditConsume, match, user, match.Role, "approval used")
	s.persistLocked(ctx)
	return cloneRequest(match), true
}

func (s *Service) approvalLocked(command string, args []string, user string) *domain.ApprovalRequest {
	var match *domain.ApprovalRequest
	for _, req := range s.requests {
		if req.Status != domain.ApprovalApproved || req.ConsumedAt != nil {
			continue
		}
		if req.Command != command || req.Requester != user || !sameArgs(req.Args, args) {
			continue
		}
		if match == nil || req.Timestamp.Before(match.Timestamp) {
			match = req
		}
	}
	return match
}

// Get returns a copy of one request.
func (s *Service) Get(id string) (domain.ApprovalRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return domain.ApprovalRequest{}, false
	}
	return cloneRequest(req), true
}

// Pending lists pending requests, oldest first.
func (s *Service) Pending() []domain.ApprovalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.ApprovalRequest
	for _, req := range s.requests {
		if req.Status == domain.ApprovalPending {
			out = append(out, cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Log returns up to limit of the most recent audit entries, oldest first.
func (s *Service) Log(limit int) []domain.ApprovalLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if limit > 0 && len(s.log) > limit {
		start = len(s.log) - limit
	}
	return append([]domain.ApprovalLogEntry(nil), s.log[start:]...)
}

func (s *Service) transitionableLocked(id, approverRole string) (*domain.ApprovalRequest, bool) {
	req, ok := s.requests[id]
	if !ok || approverRole != domain.RoleAdmin || req.Status != domain.ApprovalPending {
		return nil, false
	}
	return req, true
}

func (s *Service) appendLogLocked(action domain.ApprovalAction, req *domain.ApprovalRequest, user, role, details string) {
	s.log = append(s.log, domain.ApprovalLogEntry{
		ID:        req.ID,
		Action:    action,
		Command:   req.Command,
		User:      user,
		Role:      role,
		Timestamp: s.clock.Now(),
		Details:   details,
	})
	s.trimLogLocked()
}

func (s *Service) trimLogLocked() {
	if over := len(s.log) - s.retention; over > 0 {
		s.log = append([]domain.ApprovalLogEntry(nil), s.log[over:]...)
	}
}

func (s *Service) persistLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	state := persistedState{
		Requests: make([]domain.ApprovalRequest, 0, len(s.requests)),
		Log:      s.log,
	}
	for _, req := range s.requests {
		state.Requests = append(state.Requests, *req)
	}
	sort.Slice(state.Requests, func(i, j int) bool {
		return state.Requests[i].Timestamp.Before(state.Requests[j].Timestamp)
	})
	if err := s.store.Save(ctx, domain.KeyGovernance, state); err != nil {
		s.logger.Error("persist governance state", err, nil)
	}
}

func cloneRequest(req *domain.ApprovalRequest) domain.ApprovalRequest {
	out := *req
	out.Args = append([]string(nil), req.Args...)
	return out
}

func sameArgs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
