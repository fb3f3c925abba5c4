package audio

import "github.com/sirupsen/logrus"

// Export internal functions for testing.
// This file is only compiled during tests (suffix _test.go).

// ParseSilenceOutput exports parseSilenceOutput for testing.
var ParseSilenceOutput = parseSilenceOutput

// SegmentEncodingArgs exports segmentEncodingArgs for testing.
var SegmentEncodingArgs = segmentEncodingArgs

// CommandRunner exports commandRunner interface for testing.
type CommandRunner = commandRunner

// FileSystem exports fileSystem interface for testing.
type FileSystem = fileSystem

// TempDirPrefix exports tempDirPrefix for testing.
const TempDirPrefix = tempDirPrefix

// NewChunkingForTest builds a Chunking that owns dir.
func NewChunkingForTest(dir string) Chunking {
	return Chunking{dir: dir}
}

// DiscardLogger exports discardLogger for testing.
func DiscardLogger() logrus.FieldLogger { return discardLogger() }
