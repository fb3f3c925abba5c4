package tag

// ChatCompleter exports chatCompleter for testing.
type ChatCompleter = chatCompleter

// NewTestTagger creates an OpenAITagger with a mock client.
func NewTestTagger(client ChatCompleter, opts ...Option) *OpenAITagger {
	return newTagger(client, opts...)
}

// Function exports for unit testing internal logic.
var (
	BuildPrompt   = buildPrompt
	ParseResponse = parseResponse
)
