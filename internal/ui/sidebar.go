package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/dustin/go-humanize"
	"github.com/saravenpi/parley/internal/chat"
	"github.com/saravenpi/parley/internal/models"
)

const previewLimit = 40

// row is one selectable sidebar entry: a known conversation or a user found
// by remote search.
type row struct {
	conversation *models.Conversation
	user         *models.UserSummary
}

type sidebar struct {
	filter    chat.Filter
	search    textinput.Model
	searching bool
	remote    []models.UserSummary
	cursor    int
}

// rows applies the filter to convs and appends remote search hits. convs is
// never modified.
func (s sidebar) rows(convs []models.Conversation) []row {
	visible := s.filter.Apply(convs)
	out := make([]row, 0, len(visible)+len(s.remote))
	for i := range visible {
		out = append(out, row{conversation: &visible[i]})
	}
	for i := range s.remote {
		out = append(out, row{user: &s.remote[i]})
	}
	return out
}

func (s *sidebar) move(delta int, rows []row) {
	s.cursor += delta
	s.clamp(rows)
}

func (s *sidebar) clamp(rows []row) {
	if s.cursor >= len(rows) {
		s.cursor = len(rows) - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

// reset clears the search box, remote results and every filter.
func (s *sidebar) reset() {
	s.filter = chat.Filter{}
	s.search.SetValue("")
	s.search.Blur()
	s.searching = false
	s.remote = nil
	s.cursor = 0
}

// cycleCategory steps through all, then each category in turn.
func (s *sidebar) cycleCategory(categories []string) {
	if len(categories) == 0 {
		s.filter.Category = ""
		return
	}
	next := 0
	for i, c := range categories {
		if c == s.filter.Category {
			next = i + 1
			break
		}
	}
	if s.filter.Category == "" {
		next = 0
	} else if next >= len(categories) {
		s.filter.Category = ""
		return
	}
	s.filter.Category = categories[next]
}

func (s sidebar) filterLine() string {
	scope := "all"
	if s.filter.UnreadOnly {
		scope = "unread"
	}
	category := "any"
	if s.filter.Category != "" {
		category = s.filter.Category
	}
	return mutedStyle.Render(fmt.Sprintf("%s • category: %s", scope, category))
}

func (s sidebar) view(convs []models.Conversation, width, height int) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Conversations (%d)", len(convs))) + "\n")
	b.WriteString(s.filterLine() + "\n")
	if s.searching || s.filter.Query != "" {
		b.WriteString(s.search.View() + "\n")
	}
	b.WriteString("\n")

	rows := s.rows(convs)
	if len(rows) == 0 {
		if s.filter.Active() {
			b.WriteString(normalStyle.Render("No matches."))
		} else {
			b.WriteString(normalStyle.Render("No conversations yet.\nSearch a user id with /"))
		}
		return b.String()
	}

	// Two lines per row; keep the cursor in view.
	fit := (height - 5) / 2
	if fit < 1 {
		fit = 1
	}
	start := 0
	if s.cursor >= fit {
		start = s.cursor - fit + 1
	}
	end := start + fit
	if end > len(rows) {
		end = len(rows)
	}

	usersHeader := false
	for i := start; i < end; i++ {
		r := rows[i]
		if r.user != nil && !usersHeader {
			b.WriteString(mutedStyle.Render("── users ──") + "\n")
			usersHeader = true
		}
		b.WriteString(renderRow(r, i == s.cursor, width) + "\n")
	}
	return b.String()
}

func renderRow(r row, selected bool, width int) string {
	var title, desc string
	if r.conversation != nil {
		c := r.conversation
		title = c.DisplayName
		if c.UnreadCount > 0 {
			title += " " + unreadStyle.Render(fmt.Sprintf("%d", c.UnreadCount))
		}
		if c.Online {
			title += " " + onlineStyle.Render("●")
		}
		desc = fmt.Sprintf("%s • %s", timeAgo(c), truncate(c.LastMessage, previewLimit))
	} else {
		u := r.user
		title = "+ " + u.Name
		status := u.Status
		if u.Online() {
			status = onlineStyle.Render(status)
		}
		desc = fmt.Sprintf("%s • %s", u.PhoneNumber, status)
	}

	desc = truncate(desc, width-2)
	if selected {
		return selectedStyle.Render("› "+title) + "\n  " + mutedStyle.Render(desc)
	}
	return normalStyle.Render("  "+title) + "\n  " + mutedStyle.Render(desc)
}

func timeAgo(c *models.Conversation) string {
	switch {
	case c.LastMessageTime.Exact():
		return humanize.Time(c.LastMessageTime.Time)
	case c.LastMessageTime.Raw != "":
		return c.LastMessageTime.Raw
	default:
		return "no messages"
	}
}

func truncate(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if limit < 4 || len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
