package video

import "errors"

// ErrEndOfStream indicates a decode request past the last frame.
var ErrEndOfStream = errors.New("end of stream")

// ErrInvalidProfile indicates sampling parameters out of range.
var ErrInvalidProfile = errors.New("invalid sampling profile")
