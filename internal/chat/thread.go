package chat

import (
	"time"

	"github.com/saravenpi/parley/internal/models"
)

const DayLayout = "02/01/2006"

// Day is a run of consecutive messages sent on the same calendar day.
type Day struct {
	Label    string
	Messages []models.Message
}

// GroupByDay splits msgs into runs by calendar day in loc. A new run starts
// whenever a message falls on a different day from the one before it, so the
// first message always opens one.
func GroupByDay(msgs []models.Message, loc *time.Location) []Day {
	if loc == nil {
		loc = time.Local
	}

	var days []Day
	var y, d int
	var m time.Month
	for i, msg := range msgs {
		ts := msg.Timestamp.In(loc)
		ty, tm, td := ts.Date()
		if i == 0 || ty != y || tm != m || td != d {
			days = append(days, Day{Label: ts.Format(DayLayout)})
			y, m, d = ty, tm, td
		}
		last := &days[len(days)-1]
		last.Messages = append(last.Messages, msg)
	}
	return days
}
