package video

// CommandRunner exports commandRunner for testing.
type CommandRunner = commandRunner

