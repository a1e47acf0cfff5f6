package domain

import (
	"strings"
	"time"
)

// PlanKind tags how a plan is executed.
type PlanKind string

const (
	PlanSubprocess PlanKind = "subprocess"
	PlanAction     PlanKind = "action"
	PlanScript     PlanKind = "script"
)

// Actor identifies who issued a command.
type Actor struct {
	User string `json:"user"`
	Role string `json:"role"`
}

// Plan is a fully resolved, executable description of one command invocation.
// Plans are values: the repair loop derives new plans rather than mutating one.
type Plan struct {
	Name        string        `json:"name,omitempty"`
	Kind        PlanKind      `json:"kind"`
	Command     string        `json:"command"`
	Args        []string      `json:"args"`
	Script      string        `json:"script,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
	RetryCount  int           `json:"retry_count"`
	Actor       Actor         `json:"actor"`
	Description string        `json:"description,omitempty"`
}

// Clone returns a copy that shares no slices with p.
func (p Plan) Clone() Plan {
	out := p
	if p.Args != nil {
		out.Args = append([]string(nil), p.Args...)
	}
	return out
}

// WithArgs returns a copy of p carrying args.
func (p Plan) WithArgs(args ...string) Plan {
	out := p.Clone()
	out.Args = append([]string(nil), args...)
	return out
}

// WithTimeout returns a copy of p carrying timeout.
func (p Plan) WithTimeout(timeout time.Duration) Plan {
	out := p.Clone()
	out.Timeout = timeout
	return out
}

// Label is the symbolic command name, falling back to the program.
func (p Plan) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Command
}

// HasArg reports whether arg is already present.
func (p Plan) HasArg(arg string) bool {
	for _, a := range p.Args {
		if a == arg {
			return true
		}
	}
	return false
}

// String renders the plan as a command line, for logs and snapshot descriptions.
func (p Plan) String() string {
	if p.Kind == PlanScript && p.Script != "" {
		return p.Script
	}
	if len(p.Args) == 0 {
		return p.Command
	}
	return p.Command + " " + strings.Join(p.Args, " ")
}

// CommandOutput is what a backend returns for a finished process.
type CommandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ResultStatus is the outcome reported for a plan.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// ExecutionResult is the outcome of running a Plan.
// Repaired is only set when a classify, repair, retry cycle happened and the final attempt succeeded.
type ExecutionResult struct {
	Status            ResultStatus           `json:"status"`
	Command           string                 `json:"command"`
	Args              []string               `json:"args,omitempty"`
	Stdout            string                 `json:"stdout,omitempty"`
	Stderr            string                 `json:"stderr,omitempty"`
	ExitCode          int                    `json:"exit_code"`
	DurationMS        int64                  `json:"duration_ms"`
	Record            map[string]interface{} `json:"record,omitempty"`
	Payload           map[string]interface{} `json:"payload,omitempty"`
	Attempts          int                    `json:"attempts"`
	Repaired          bool                   `json:"repaired"`
	RepairDescription string                 `json:"repair_description,omitempty"`
}

// RepairType classifies how a repair changes a plan.
type RepairType string

const (
	RepairRetry       RepairType = "retry"
	RepairAlternative RepairType = "alternative"
	RepairFallback    RepairType = "fallback"
)

// RepairPlan is a candidate replacement for a failed plan.
type RepairPlan struct {
	Type        RepairType `json:"type"`
	Kind        ErrorKind  `json:"kind"`
	Plan        Plan       `json:"plan"`
	Description string     `json:"description"`
}

// ParsedResult is what the output validator extracts from raw text.
type ParsedResult struct {
	OK     bool                   `json:"ok"`
	Record map[string]interface{} `json:"record,omitempty"`
	Raw    string                 `json:"raw,omitempty"`
	Error  string                 `json:"error,omitempty"`
	// Status and Message echo the record's own "status" and "message" fields.
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// ReportsError is true when a decoded record declares status "error".
func (p ParsedResult) ReportsError() bool {
	return p.OK && strings.EqualFold(p.Status, string(StatusError))
}

// Response is the single record written for every CLI invocation.
type Response struct {
	Status            ResultStatus           `json:"status"`
	Command           string                 `json:"command"`
	Message           string                 `json:"message,omitempty"`
	Data              map[string]interface{} `json:"data,omitempty"`
	Repaired          bool                   `json:"repaired,omitempty"`
	RepairDescription string                 `json:"repair_description,omitempty"`
	RequestID         string                 `json:"request_id,omitempty"`
	ErrorKind         string                 `json:"error_kind,omitempty"`
}
