package snapshot

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/doeshing/orca-go/internal/domain"
)

type ledger struct {
	Name    string
	Entries []string
	Totals  map[string]int
	Nested  *ledger
}

func TestRestoreReturnsDeepCopy(t *testing.T) {
	m := NewManager[ledger](10)
	state := ledger{
		Name:    "books",
		Entries: []string{"a", "b"},
		Totals:  map[string]int{"a": 1},
		Nested:  &ledger{Name: "inner"},
	}
	want := ledger{
		Name:    "books",
		Entries: []string{"a", "b"},
		Totals:  map[string]int{"a": 1},
		Nested:  &ledger{Name: "inner"},
	}

	id := m.Create(state, "before mutation")

	state.Entries[0] = "mutated"
	state.Totals["a"] = 99
	state.Nested.Name = "changed"

	got, err := m.Restore(id)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("restored state mismatch (-want +got):\n%s", diff)
	}

	got.Entries[1] = "mutated-restore"
	again, err := m.Restore(id)
	if err != nil {
		t.Fatalf("second Restore() error = %v", err)
	}
	if again.Entries[1] != "b" {
		t.Fatalf("restored copies alias each other: %v", again.Entries)
	}
}

func TestArenaEvictsOldestFirst(t *testing.T) {
	m := NewManager[domain.Plan](10)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	var ids []string
	for i := 0; i < 11; i++ {
		ids = append(ids, m.Create(domain.Plan{Command: fmt.Sprintf("cmd-%d", i)}, ""))
	}

	list := m.List()
	if len(list) != 10 {
		t.Fatalf("List() returned %d snapshots, want 10", len(list))
	}
	for _, info := range list {
		if info.ID == ids[0] {
			t.Fatal("first snapshot should have been evicted")
		}
	}
	if list[0].ID != ids[10] {
		t.Fatalf("List() is not newest first: got %s, want %s", list[0].ID, ids[10])
	}

	_, err := m.Restore(ids[0])
	var notFound *domain.SnapshotNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected SnapshotNotFoundError, got %v", err)
	}
}

func TestDeleteAndUnknownID(t *testing.T) {
	m := NewManager[domain.Plan](0)
	if m.Capacity() != domain.DefaultSnapshotCapacity {
		t.Fatalf("capacity = %d, want default", m.Capacity())
	}

	id := m.Create(domain.Plan{Command: "git"}, "x")
	if !m.Delete(id) {
		t.Fatal("Delete() = false for existing id")
	}
	if m.Delete(id) {
		t.Fatal("Delete() = true for deleted id")
	}
	if _, err := m.Restore("missing"); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestConcurrentCreateStaysBounded(t *testing.T) {
	m := NewManager[domain.Plan](5)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := m.Create(domain.Plan{Command: "go", Args: []string{fmt.Sprint(i)}}, "")
			_, _ = m.Restore(id)
		}(i)
	}
	wg.Wait()

	if m.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", m.Len())
	}
}

func TestProperty_SnapshotRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("restore(create(s)) equals s and ignores later mutation", prop.ForAll(
		func(command string, args []string) bool {
			m := NewManager[domain.Plan](10)
			plan := domain.Plan{Kind: domain.PlanSubprocess, Command: command, Args: args}
			want := plan.Clone()

			id := m.Create(plan, "prop")
			if len(plan.Args) > 0 {
				plan.Args[0] = plan.Args[0] + "-mutated"
			}

			got, err := m.Restore(id)
			if err != nil {
				return false
			}
			return cmp.Equal(want, got)
		},
		gen.AlphaString(),
		gen.SliceOfN(3, gen.AlphaString()),
	))

	properties.TestingRun(t)
}
