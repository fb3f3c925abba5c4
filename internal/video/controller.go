package video

import (
	"fmt"
	"time"
)

// AdaptiveConfig tunes the hybrid-mode Controller.
type AdaptiveConfig struct {
	Window time.Duration // Analysis window, also the evaluation period.
	High   float64       // Keeps per minute above which demo is selected.
	Low    float64       // Keeps per minute below which slides is selected.
	Slides Profile
	Demo   Profile
}

// DefaultAdaptiveConfig returns the default hybrid tuning.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		Window: 60 * time.Second,
		High:   5,
		Low:    2,
		Slides: SlidesProfile(),
		Demo:   DemoProfile(),
	}
}

// ModeSwitch records one profile change.
type ModeSwitch struct {
	At   time.Duration `json:"at"`
	From string        `json:"from"`
	To   string        `json:"to"`
	Rate float64       `json:"rate"` // Keeps per minute that triggered the switch.
}

// String returns a human-readable representation for logging.
func (s ModeSwitch) String() string {
	return fmt.Sprintf("%s -> %s at %s (%.1f keeps/min)", s.From, s.To, s.At, s.Rate)
}

// AdaptiveState is the controller's memory for one video.
type AdaptiveState struct {
	Window     []time.Duration // Keep timestamps since the window started.
	Current    Profile
	LastSwitch time.Duration
	nextEval   time.Duration
}

// Controller switches between the slides and demo profiles based on how
// often frames are kept. Evaluation is time-triggered: once per window of
// video time. A switch empties the window, so the next decision needs a
// full window of fresh observations.
//
// A Controller belongs to a single sampling pass and is not safe for
// concurrent use.
type Controller struct {
	cfg   AdaptiveConfig
	state AdaptiveState
}

// NewController returns a controller starting on the slides profile.
func NewController(cfg AdaptiveConfig) *Controller {
	return &Controller{
		cfg: cfg,
		state: AdaptiveState{
			Current:  cfg.Slides,
			nextEval: cfg.Window,
		},
	}
}

// Profile returns the active profile.
func (c *Controller) Profile() Profile { return c.state.Current }

// State returns a copy of the controller state.
func (c *Controller) State() AdaptiveState {
	s := c.state
	s.Window = append([]time.Duration(nil), c.state.Window...)
	return s
}

// Observe records a kept frame.
func (c *Controller) Observe(ts time.Duration) {
	c.state.Window = append(c.state.Window, ts)
}

// Evaluate runs a decision if a full window has elapsed at video time now.
// It reports the switch when one happens.
func (c *Controller) Evaluate(now time.Duration) (ModeSwitch, bool) {
	if now < c.state.nextEval {
		return ModeSwitch{}, false
	}

	cutoff := now - c.cfg.Window
	kept := c.state.Window[:0]
	for _, ts := range c.state.Window {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	c.state.Window = kept

	rate := float64(len(kept)) * float64(time.Minute) / float64(c.cfg.Window)
	c.state.nextEval = now + c.cfg.Window

	var next Profile
	switch {
	case rate > c.cfg.High && c.state.Current.Name != c.cfg.Demo.Name:
		next = c.cfg.Demo
	case rate < c.cfg.Low && c.state.Current.Name != c.cfg.Slides.Name:
		next = c.cfg.Slides
	default:
		return ModeSwitch{}, false
	}

	sw := ModeSwitch{At: now, From: c.state.Current.Name, To: next.Name, Rate: rate}
	c.state.Current = next
	c.state.LastSwitch = now
	c.state.Window = nil
	return sw, true
}

// Validate checks thresholds and both profiles.
func (cfg AdaptiveConfig) Validate() error {
	if cfg.Window <= 0 {
		return fmt.Errorf("%w: adaptive window must be positive, got %s", ErrInvalidProfile, cfg.Window)
	}
	if cfg.Low < 0 || cfg.High <= cfg.Low {
		return fmt.Errorf("%w: adaptive thresholds need 0 <= low < high, got low=%g high=%g",
			ErrInvalidProfile, cfg.Low, cfg.High)
	}
	if err := cfg.Slides.Validate(); err != nil {
		return err
	}
	return cfg.Demo.Validate()
}
