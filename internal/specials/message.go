package specials

import "fmt"

const (
	// NoneNowMessage describes a catalogue venue with nothing running.
	NoneNowMessage = "No current specials at this time"
	// ComingSoonMessage describes provider venues, which never carry specials.
	ComingSoonMessage = "Specials data coming soon - check back later!"
)

// Message summarises how many specials are running right now.
func Message(active int) string {
	switch {
	case active <= 0:
		return NoneNowMessage
	case active == 1:
		return "1 special available now"
	default:
		return fmt.Sprintf("%d specials available now", active)
	}
}
