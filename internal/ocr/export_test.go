package ocr

// CommandRunner exports commandRunner for testing.
type CommandRunner = commandRunner

// CleanText exports cleanText for testing.
var CleanText = cleanText
