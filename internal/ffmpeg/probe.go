package ffmpeg

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	progressRe = regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)
)

// ParseDuration extracts the stream duration from ffmpeg stderr.
// Looks for "Duration: HH:MM:SS.ms", falling back to the last "time=HH:MM:SS.ms".
func ParseDuration(output string) (time.Duration, error) {
	if m := durationRe.FindStringSubmatch(output); m != nil {
		return parseTimeComponents(m[1], m[2], m[3], m[4]), nil
	}

	if all := progressRe.FindAllStringSubmatch(output, -1); len(all) > 0 {
		m := all[len(all)-1]
		return parseTimeComponents(m[1], m[2], m[3], m[4]), nil
	}

	return 0, fmt.Errorf("%w: could not parse duration from ffmpeg output", ErrMalformedMedia)
}

// parseTimeComponents converts HH:MM:SS.frac strings to a Duration.
// The fractional part may carry any number of digits; precision beyond 1ms is truncated.
func parseTimeComponents(hours, minutes, seconds, fractional string) time.Duration {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)

	if len(fractional) > 3 {
		fractional = fractional[:3]
	}
	ms, _ := strconv.Atoi(fractional)
	for i := len(fractional); i < 3; i++ {
		ms *= 10
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond
}

// FormatTime formats a duration for ffmpeg -ss/-to arguments.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := d.Seconds() - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}
