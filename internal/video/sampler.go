package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alnah/go-meetsync/internal/ffmpeg"
	"github.com/alnah/go-meetsync/internal/quality"
)

// Candidate is a kept frame before deduplication.
type Candidate struct {
	Index   int           // Position in the sampling output.
	At      time.Duration // Actual decoded timestamp.
	Image   Image         // Analysis raster.
	Change  float64       // Changed fraction against the previous candidate (1 for the first).
	Profile string        // Profile active when the frame was kept.
}

// SampleConfig holds the sampler parameters.
type SampleConfig struct {
	Enabled    bool
	Mode       Mode
	NoiseFloor uint8
	Adaptive   AdaptiveConfig // Slides and Demo profiles are taken from here in every mode.
}

// DefaultSampleConfig returns an enabled slides-mode configuration.
func DefaultSampleConfig() SampleConfig {
	return SampleConfig{
		Enabled:    true,
		Mode:       ModeSlides,
		NoiseFloor: DefaultNoiseFloor,
		Adaptive:   DefaultAdaptiveConfig(),
	}
}

// Sampling is the sampler's observable output.
type Sampling struct {
	Candidates   []Candidate
	ModeSwitches []ModeSwitch
	Warnings     []quality.Warning
	Duration     time.Duration
	Skipped      bool // Frames disabled; downstream frame stages must not run.
	Truncated    bool // Stopped at max_total before the end of the video.
}

// Sampler walks a video at a cadence and keeps frames that changed enough.
type Sampler struct {
	cfg SampleConfig
	log logrus.FieldLogger
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithSamplerLogger sets the logger.
func WithSamplerLogger(l logrus.FieldLogger) SamplerOption {
	return func(s *Sampler) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSampler validates cfg and returns a Sampler.
func NewSampler(cfg SampleConfig, opts ...SamplerOption) (*Sampler, error) {
	if cfg.Enabled {
		if _, err := ParseMode(string(cfg.Mode)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
		}
		if err := cfg.Adaptive.Validate(); err != nil {
			return nil, err
		}
	}
	s := &Sampler{cfg: cfg, log: discardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sample walks dec from the start and returns the kept candidates.
//
// A frame is kept when it differs from the last kept frame by more than
// the profile threshold. A keep is dropped when the trailing minute already
// holds max_per_minute keeps; earlier keeps are never evicted. Reaching
// max_total stops sampling and is reported as a warning. In hybrid mode a
// fresh Controller adjusts the profile as the video plays.
func (s *Sampler) Sample(ctx context.Context, dec Decoder) (Sampling, error) {
	if !s.cfg.Enabled {
		s.log.Info("frame sampling disabled")
		return Sampling{Skipped: true}, nil
	}

	dur, err := dec.Duration(ctx)
	if err != nil {
		return Sampling{}, err
	}
	if dur <= 0 {
		return Sampling{}, fmt.Errorf("%w: video reports no duration", ffmpeg.ErrMalformedMedia)
	}

	var ctrl *Controller
	profile := s.cfg.Adaptive.Slides
	switch s.cfg.Mode {
	case ModeDemo:
		profile = s.cfg.Adaptive.Demo
	case ModeHybrid:
		ctrl = NewController(s.cfg.Adaptive)
		profile = ctrl.Profile()
	}

	out := Sampling{Duration: dur}
	if ctrl != nil && dur < s.cfg.Adaptive.Window {
		out.Warnings = append(out.Warnings, quality.Warning{
			Kind:    quality.KindAdaptiveFallback,
			Stage:   "sample",
			Message: fmt.Sprintf("video shorter than the %s analysis window, kept %s profile", s.cfg.Adaptive.Window, profile.Name),
		})
	}

	var (
		ref        Image
		hasRef     bool
		recent     []time.Duration // keeps in the trailing minute
		lastActual = time.Duration(-1)
		next       time.Duration
	)

	for t := time.Duration(0); t < dur; t = next {
		if err := ctx.Err(); err != nil {
			return Sampling{}, err
		}
		next = t + profile.Cadence

		img, actual, err := dec.FrameAt(ctx, t)
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		if err != nil {
			return Sampling{}, err
		}
		if actual <= lastActual {
			// Seek landed on an already examined frame.
			continue
		}
		lastActual = actual

		if ctrl != nil {
			if sw, ok := ctrl.Evaluate(actual); ok {
				profile = ctrl.Profile()
				next = t + profile.Cadence
				out.ModeSwitches = append(out.ModeSwitches, sw)
				s.log.WithFields(logrus.Fields{
					"at":   actual,
					"from": sw.From,
					"to":   sw.To,
					"rate": sw.Rate,
				}).Warn("sampling profile switched")
			}
		}

		change := 1.0
		if hasRef {
			change = ChangedFraction(ref, img, s.cfg.NoiseFloor)
			if change <= profile.Threshold {
				continue
			}
		}

		recent = trimBefore(recent, actual-time.Minute)
		if len(recent) >= profile.MaxPerMinute {
			s.log.WithField("at", actual).Debug("per-minute cap reached, candidate dropped")
			continue
		}

		if len(out.Candidates) >= profile.MaxTotal {
			out.Truncated = true
			out.Warnings = append(out.Warnings, quality.Warning{
				Kind:    quality.KindFrameCapReached,
				Stage:   "sample",
				Start:   actual,
				End:     dur,
				Message: fmt.Sprintf("max_total of %d frames reached, sampling stopped", profile.MaxTotal),
			})
			s.log.WithField("at", actual).Warn("frame cap reached, sampling stopped early")
			break
		}

		out.Candidates = append(out.Candidates, Candidate{
			Index:   len(out.Candidates),
			At:      actual,
			Image:   img,
			Change:  change,
			Profile: profile.Name,
		})
		ref, hasRef = img, true
		recent = append(recent, actual)
		if ctrl != nil {
			ctrl.Observe(actual)
		}
	}

	s.log.WithFields(logrus.Fields{
		"candidates": len(out.Candidates),
		"switches":   len(out.ModeSwitches),
	}).Info("frame sampling finished")
	return out, nil
}

// trimBefore drops timestamps at or before cutoff. ts is ascending.
func trimBefore(ts []time.Duration, cutoff time.Duration) []time.Duration {
	i := 0
	for i < len(ts) && ts[i] <= cutoff {
		i++
	}
	return ts[i:]
}
