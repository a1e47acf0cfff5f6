package observation

import (
	"sort"

	"github.com/doeshing/orca-go/internal/domain"
)

// TopCommands returns the most frequent commands, count descending then name.
// A limit of zero or less returns every command.
func TopCommands(frequency map[string]int, limit int) []domain.CommandUsage {
	stats := make([]domain.CommandUsage, 0, len(frequency))
	for cmd, count := range frequency {
		stats = append(stats, domain.CommandUsage{Command: cmd, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Command < stats[j].Command
		}
		return stats[i].Count > stats[j].Count
	})
	if limit > 0 && len(stats) > limit {
		return stats[:limit]
	}
	return stats
}

// Percent returns part/total as a percentage, zero when total is zero.
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
