package video

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects how sampling parameters are chosen.
type Mode string

// Sampling modes.
const (
	// ModeSlides samples sparsely for mostly static content.
	ModeSlides Mode = "slides"
	// ModeDemo samples densely for screen recordings and live demos.
	ModeDemo Mode = "demo"
	// ModeHybrid starts on slides and lets the Controller switch profiles.
	ModeHybrid Mode = "hybrid"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSlides, ModeDemo, ModeHybrid:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown frame mode %q (want slides, demo or hybrid)", s)
}

// Profile is a named bundle of sampling parameters.
type Profile struct {
	Name         string
	Cadence      time.Duration // Time between decode attempts.
	Threshold    float64       // Changed-pixel fraction above which a frame is kept.
	MaxPerMinute int           // Keeps allowed in any trailing 60s.
	MaxTotal     int           // Hard stop for the whole video.
}

// SlidesProfile returns the default profile for slide decks.
func SlidesProfile() Profile {
	return Profile{
		Name:         string(ModeSlides),
		Cadence:      2 * time.Second,
		Threshold:    0.05,
		MaxPerMinute: 10,
		MaxTotal:     300,
	}
}

// DemoProfile returns the default profile for live demos.
func DemoProfile() Profile {
	return Profile{
		Name:         string(ModeDemo),
		Cadence:      1 * time.Second,
		Threshold:    0.02,
		MaxPerMinute: 30,
		MaxTotal:     300,
	}
}

// Validate checks every field and reports all violations at once.
func (p Profile) Validate() error {
	var errs []error
	if p.Cadence <= 0 {
		errs = append(errs, fmt.Errorf("%s: cadence must be positive, got %s", p.Name, p.Cadence))
	}
	if p.Threshold < 0 || p.Threshold > 1 {
		errs = append(errs, fmt.Errorf("%s: threshold must be within [0,1], got %g", p.Name, p.Threshold))
	}
	if p.MaxPerMinute < 1 {
		errs = append(errs, fmt.Errorf("%s: max_per_minute must be at least 1, got %d", p.Name, p.MaxPerMinute))
	}
	if p.MaxTotal < 1 {
		errs = append(errs, fmt.Errorf("%s: max_total must be at least 1, got %d", p.Name, p.MaxTotal))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, errors.Join(errs...))
	}
	return nil
}
