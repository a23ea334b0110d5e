package service

import (
	"strings"

	"github.com/ayursetu/setu/internal/core/domain"
)

// MinSuggestionPrefix filters out noisy one- and two-letter matches.
const MinSuggestionPrefix = 3

// Herbs is the static remedy lookup used for prescription autocomplete.
type Herbs struct {
	table []domain.Herb
}

func NewHerbs() *Herbs {
	return &Herbs{table: domain.Herbs}
}

// Suggest returns herbs whose name starts with prefix, case
// insensitively, in table order. Prefixes shorter than
// MinSuggestionPrefix yield nothing.
func (h *Herbs) Suggest(prefix string) []domain.Herb {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < MinSuggestionPrefix {
		return nil
	}
	var out []domain.Herb
	for _, herb := range h.table {
		if strings.HasPrefix(strings.ToLower(herb.Name), prefix) {
			out = append(out, herb)
		}
	}
	return out
}
