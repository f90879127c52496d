package timer

import (
	"fmt"
	"time"
)

// RemainingSeconds returns the whole seconds left until deadline, never negative.
func RemainingSeconds(deadline, now time.Time) int {
	left := deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// FormatClock renders seconds as zero-padded MM:SS. Minutes are not wrapped at 60.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// ProgressPercent is the elapsed share of total, in percent.
func ProgressPercent(total, remaining int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(total-remaining) / float64(total) * 100
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// describeSeconds turns a threshold into the wording used in alerts.
func describeSeconds(n int) string {
	switch {
	case n == 60:
		return "1 minute"
	case n > 60 && n%60 == 0:
		return fmt.Sprintf("%d minutes", n/60)
	case n == 1:
		return "1 second"
	default:
		return fmt.Sprintf("%d seconds", n)
	}
}

func warningMessage(threshold int) string {
	return fmt.Sprintf("Warning: Less than %s remaining!", describeSeconds(threshold))
}

func criticalMessage(threshold int) string {
	return fmt.Sprintf("Critical: Less than %s remaining!", describeSeconds(threshold))
}

const timeUpMessage = "Time is up! Quiz will be submitted automatically."
