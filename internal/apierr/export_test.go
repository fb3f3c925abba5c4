package apierr

// WithRand returns a copy of p drawing jitter from f instead of math/rand.
func WithRand(p RetryPolicy, f func() float64) RetryPolicy {
	p.randFloat = f
	return p
}
