package domain

import "time"

// HistoryRecord captures one finished invocation for the append-only history table.
type HistoryRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	Command         string    `json:"command"`
	Args            []string  `json:"args"`
	Role            string    `json:"role"`
	User            string    `json:"user"`
	Success         bool      `json:"success"`
	Repaired        bool      `json:"repaired"`
	ExitCode        int       `json:"exit_code"`
	ErrorKind       ErrorKind `json:"error_kind,omitempty"`
	Message         string    `json:"message,omitempty"`
	ExecutionTimeMS int64     `json:"execution_time_ms"`
}
