package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/saravenpi/parley/internal/chat"
	"github.com/saravenpi/parley/internal/models"
)

// renderThread lays out msgs by day. Own messages are right aligned; others
// fall back to peerName when the payload carries no sender name.
func renderThread(msgs []models.Message, selfID, peerName string, width int) string {
	if width <= 0 {
		width = 80
	}
	wrapWidth := width - 10
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var content strings.Builder
	right := lipgloss.NewStyle().Align(lipgloss.Right).Width(width)

	for i, day := range chat.GroupByDay(msgs, time.Local) {
		if i > 0 {
			content.WriteString("\n")
		}
		content.WriteString(daySeparatorStyle.Width(width).Render(fmt.Sprintf("── %s ──", day.Label)) + "\n")

		for _, message := range day.Messages {
			timestamp := message.Timestamp.Local().Format("15:04")
			text := wordwrap.String(message.Content, wrapWidth)

			if message.From() == selfID {
				status := timestamp
				if message.Pending {
					status += " • sending"
				}
				header := messageHeaderStyle.Render(fmt.Sprintf("You • %s", status))
				content.WriteString(right.Render(header) + "\n")
				content.WriteString(right.Render(messageFromMeStyle.Render(text)) + "\n")
				continue
			}

			sender := message.SenderName()
			if sender == "" {
				sender = peerName
			}
			header := messageHeaderStyle.Render(fmt.Sprintf("%s • %s", sender, timestamp))
			content.WriteString(header + "\n")
			content.WriteString(messageFromOtherStyle.Render(text) + "\n")
		}
	}

	return content.String()
}
