package audio

import "errors"

// ErrChunkingFailed indicates FFmpeg failed while extracting a segment.
var ErrChunkingFailed = errors.New("audio chunking failed")

// ErrChunkTooLarge indicates an extracted segment exceeds the byte ceiling.
var ErrChunkTooLarge = errors.New("segment exceeds size ceiling")

// ErrFileNotFound indicates the specified input file does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrInvalidCeiling indicates a non-positive byte ceiling.
var ErrInvalidCeiling = errors.New("invalid size ceiling")
