package video_test

// Notes:
// - Controller is driven with explicit video timestamps; no decoder involved.

import (
	"testing"
	"time"

	"github.com/alnah/go-meetsync/internal/video"
)

func observeEvery(c *video.Controller, from, to, step time.Duration) {
	for ts := from; ts < to; ts += step {
		c.Observe(ts)
	}
}

// ---------------------------------------------------------------------------
// Controller - time-triggered switching with window reset
// ---------------------------------------------------------------------------

func TestController(t *testing.T) {
	t.Parallel()

	cfg := video.DefaultAdaptiveConfig()

	t.Run("six keeps in a minute switch exactly once", func(t *testing.T) {
		t.Parallel()

		c := video.NewController(cfg)
		if c.Profile().Name != "slides" {
			t.Fatalf("initial profile = %q, want slides", c.Profile().Name)
		}
		observeEvery(c, 5*time.Second, 65*time.Second, 10*time.Second) // 6 keeps: 5s..55s

		if _, ok := c.Evaluate(59 * time.Second); ok {
			t.Fatal("switched before the window elapsed")
		}
		sw, ok := c.Evaluate(60 * time.Second)
		if !ok {
			t.Fatal("no switch at 6 keeps/min")
		}
		if sw.From != "slides" || sw.To != "demo" || sw.At != 60*time.Second || sw.Rate != 6 {
			t.Errorf("switch = %+v", sw)
		}
		if c.Profile().Name != "demo" {
			t.Errorf("profile = %q, want demo", c.Profile().Name)
		}
		if st := c.State(); len(st.Window) != 0 || st.LastSwitch != 60*time.Second {
			t.Errorf("state after switch = %+v, want empty window", st)
		}

		// Nothing is kept for the next stretch, which would trip the low
		// threshold, but no decision is taken before a full window.
		for ts := 61 * time.Second; ts < 120*time.Second; ts += time.Second {
			if sw, ok := c.Evaluate(ts); ok {
				t.Fatalf("second switch %v inside the reset window", sw)
			}
		}

		sw, ok = c.Evaluate(120 * time.Second)
		if !ok || sw.To != "slides" {
			t.Errorf("Evaluate(120s) = %+v, %v; want switch back to slides", sw, ok)
		}
	})

	t.Run("rate equal to high threshold does not switch", func(t *testing.T) {
		t.Parallel()

		c := video.NewController(cfg)
		observeEvery(c, 5*time.Second, 55*time.Second, 10*time.Second) // 5 keeps
		if sw, ok := c.Evaluate(60 * time.Second); ok {
			t.Errorf("unexpected switch %v", sw)
		}
	})

	t.Run("sustained activity keeps demo", func(t *testing.T) {
		t.Parallel()

		c := video.NewController(cfg)
		observeEvery(c, 0, 60*time.Second, 5*time.Second)
		if _, ok := c.Evaluate(60 * time.Second); !ok {
			t.Fatal("expected switch to demo")
		}
		observeEvery(c, 61*time.Second, 120*time.Second, 5*time.Second)
		if sw, ok := c.Evaluate(120 * time.Second); ok {
			t.Errorf("unexpected switch %v while active", sw)
		}
		if c.Profile().Name != "demo" {
			t.Errorf("profile = %q, want demo", c.Profile().Name)
		}
	})

	t.Run("quiet slides stays slides", func(t *testing.T) {
		t.Parallel()

		c := video.NewController(cfg)
		if sw, ok := c.Evaluate(60 * time.Second); ok {
			t.Errorf("unexpected switch %v", sw)
		}
	})

	t.Run("keeps outside the trailing window are ignored", func(t *testing.T) {
		t.Parallel()

		c := video.NewController(cfg)
		observeEvery(c, 0, 6*time.Second, time.Second) // 6 keeps early on
		if _, ok := c.Evaluate(70 * time.Second); ok {
			t.Error("stale keeps triggered a switch")
		}
	})
}

func TestAdaptiveConfig_Validate(t *testing.T) {
	t.Parallel()

	if err := video.DefaultAdaptiveConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*video.AdaptiveConfig)
	}{
		{"zero window", func(c *video.AdaptiveConfig) { c.Window = 0 }},
		{"low above high", func(c *video.AdaptiveConfig) { c.Low, c.High = 6, 5 }},
		{"negative low", func(c *video.AdaptiveConfig) { c.Low = -1 }},
		{"bad slides cadence", func(c *video.AdaptiveConfig) { c.Slides.Cadence = 0 }},
		{"bad demo threshold", func(c *video.AdaptiveConfig) { c.Demo.Threshold = 1.5 }},
		{"bad demo cap", func(c *video.AdaptiveConfig) { c.Demo.MaxPerMinute = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := video.DefaultAdaptiveConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
