package pipeline

import "time"

// WithClock fixes the run clock and ID generator for deterministic tests.
func WithClock(d Deps, now func() time.Time, runID func() string) Deps {
	d.now = now
	d.newRunID = runID
	return d
}

// WorkDir exposes the run directory holding snapshots.
func (r *Result) WorkDir() string { return r.workDir }
