package answer

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/vntravel/internal/domain"
)

const summaryTop = 3

// Summarize gives a one-line overview of the top vector matches.
func Summarize(matches []domain.VectorMatch) string {
	if len(matches) == 0 {
		return "no semantic matches"
	}
	n := min(len(matches), summaryTop)
	parts := make([]string, 0, n)
	for _, m := range matches[:n] {
		desc := m.Name()
		if t := m.Type(); t != "" {
			desc += " [" + t + "]"
		}
		if loc, ok := m.Location(); ok {
			desc += " in " + loc
		}
		parts = append(parts, fmt.Sprintf("%s (%.2f)", desc, m.Score))
	}
	return fmt.Sprintf("top %d of %d: %s", n, len(matches), strings.Join(parts, "; "))
}

// Footer is the provenance line shown under an answer.
func Footer(a *domain.GeneratedAnswer) string {
	return fmt.Sprintf("Answer generated using %d semantic matches and %d graph connections.",
		a.VectorCount, a.GraphCount)
}
