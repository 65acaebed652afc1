// Package ports declares the narrow interfaces through which the engine
// consumes external capabilities (judgment, speech, transcription, function
// and SMS calls, transfers) and storage (sessions, graph source, phrase
// list, call records). The engine stays agnostic to every implementation.
package ports
