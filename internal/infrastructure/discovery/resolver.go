// Package discovery resolves unknown commands by probing their help text.
package discovery

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

var (
	safeName    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	helpMarkers = regexp.MustCompile(`(?i)\b(usage|options|flags|commands)\b`)
)

// Command is one discovered program.
type Command struct {
	Name         string    `json:"name"`
	Usage        string    `json:"usage,omitempty"`
	Description  string    `json:"description,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Resolver runs `<cmd> --help` and registers programs whose help text parses.
type Resolver struct {
	mu       sync.Mutex
	backend  ports.CommandBackend
	store    ports.RecordStore
	logger   ports.Logger
	helpFlag string
	timeout  time.Duration
	known    map[string]Command
	now      func() time.Time
}

// NewResolver builds a resolver. store may be nil.
func NewResolver(backend ports.CommandBackend, store ports.RecordStore, logger ports.Logger, helpFlag string) *Resolver {
	if helpFlag == "" {
		helpFlag = domain.DefaultHelpFlag
	}
	return &Resolver{
		backend:  backend,
		store:    store,
		logger:   logger,
		helpFlag: helpFlag,
		timeout:  domain.DefaultDiscoveryTimeout,
		known:    make(map[string]Command),
		now:      time.Now,
	}
}

// Load restores the registry, tolerating missing or corrupt records.
func (r *Resolver) Load(ctx context.Context) {
	if r.store == nil {
		return
	}
	var saved []Command
	if err := r.store.Load(ctx, domain.KeyDiscovered, &saved); err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			r.logger.Warn("discovered commands unreadable, starting empty", map[string]interface{}{"error": err.Error()})
		}
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range saved {
		if safeName.MatchString(c.Name) {
			r.known[c.Name] = c
		}
	}
}

// Resolve implements ports.CommandResolver.
func (r *Resolver) Resolve(ctx context.Context, command string, args []string) (domain.Plan, bool, error) {
	if !safeName.MatchString(command) {
		return domain.Plan{}, false, nil
	}

	r.mu.Lock()
	cmd, ok := r.known[command]
	r.mu.Unlock()
	if !ok {
		var found bool
		cmd, found = r.inspect(ctx, command)
		if !found {
			return domain.Plan{}, false, nil
		}
		r.register(ctx, cmd)
	}

	return domain.Plan{
		Kind:        domain.PlanSubprocess,
		Command:     cmd.Name,
		Args:        append([]string(nil), args...),
		Timeout:     domain.DefaultPlanTimeout,
		Description: cmd.Description,
	}, true, nil
}

// List returns discovered commands sorted by name.
func (r *Resolver) List() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, 0, len(r.known))
	for _, c := range r.known {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Resolver) inspect(ctx context.Context, command string) (Command, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.backend.Run(ctx, command, []string{r.helpFlag})
	text := strings.TrimSpace(out.Stdout + "\n" + out.Stderr)
	if text == "" {
		if err != nil {
			r.logger.Debug("discovery help lookup failed", map[string]interface{}{"command": command, "error": err.Error()})
		}
		return Command{}, false
	}
	usage, description, ok := ParseHelp(text)
	if !ok {
		return Command{}, false
	}
	return Command{
		Name:         command,
		Usage:        usage,
		Description:  description,
		DiscoveredAt: r.now(),
	}, true
}

func (r *Resolver) register(ctx context.Context, cmd Command) {
	r.mu.Lock()
	r.known[cmd.Name] = cmd
	snapshot := make([]Command, 0, len(r.known))
	for _, c := range r.known {
		snapshot = append(snapshot, c)
	}
	r.mu.Unlock()

	r.logger.Info("command discovered", map[string]interface{}{"command": cmd.Name, "usage": cmd.Usage})
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, domain.KeyDiscovered, snapshot); err != nil {
		r.logger.Error("persist discovered commands", err, nil)
	}
}

// ParseHelp extracts a usage line and a one-line description from help text.
// ok is false when the text does not look like help output.
func ParseHelp(text string) (usage, description string, ok bool) {
	if !helpMarkers.MatchString(text) {
		return "", "", false
	}
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "usage") {
			if usage != "" {
				continue
			}
			usage = strings.TrimSpace(strings.TrimPrefix(line[len("usage"):], ":"))
			if usage == "" && i+1 < len(lines) {
				i++
				usage = strings.TrimSpace(lines[i])
			}
			continue
		}
		if description == "" && !strings.HasPrefix(line, "-") {
			description = line
		}
	}
	return usage, description, true
}
