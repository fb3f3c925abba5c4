package ffmpeg

import "errors"

// ErrNotFound indicates a required external binary (ffmpeg, tesseract) is not installed.
var ErrNotFound = errors.New("binary not found")

// ErrMalformedMedia indicates the input could not be probed or decoded.
// It is never retried: no partial result from such a stream is trustworthy.
var ErrMalformedMedia = errors.New("malformed media")
