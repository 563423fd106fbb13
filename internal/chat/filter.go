package chat

import (
	"sort"
	"strings"

	"github.com/saravenpi/parley/internal/models"
)

// Filter narrows the sidebar. The zero value matches everything.
type Filter struct {
	Query      string
	UnreadOnly bool
	Category   string
}

func (f Filter) Active() bool {
	return strings.TrimSpace(f.Query) != "" || f.UnreadOnly || f.Category != ""
}

func (f Filter) Match(c models.Conversation) bool {
	if f.UnreadOnly && c.UnreadCount == 0 {
		return false
	}
	if f.Category != "" && !strings.EqualFold(c.Category, f.Category) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.DisplayName), q)
}

// Apply returns the matching conversations in their original order. The
// input slice is left untouched.
func (f Filter) Apply(convs []models.Conversation) []models.Conversation {
	out := make([]models.Conversation, 0, len(convs))
	for _, c := range convs {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

// Categories lists the distinct non-empty categories present, sorted.
func Categories(convs []models.Conversation) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range convs {
		if c.Category == "" {
			continue
		}
		key := strings.ToLower(c.Category)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c.Category)
	}
	sort.Strings(out)
	return out
}
