package rotation

import "fmt"

// FormatCountdown renders seconds as mm:ss. Minutes are not wrapped at 60.
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
