package notify

import (
	"time"

	"github.com/dustin/go-humanize"
)

// TimeAgo renders t relative to now for list views. Anything older than a
// week is shown as a date.
func TimeAgo(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < 7*24*time.Hour:
		return humanize.RelTime(t, now, "ago", "from now")
	default:
		return t.Format("Jan 2, 2006")
	}
}
