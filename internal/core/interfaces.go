// Package core defines the core business types and interfaces for the podcast service.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Synthesizer turns one utterance into one audio clip using the given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*AudioClip, error)
}

// TextExtractor returns the plain-text content of a document on disk.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ScriptGenerator produces a dialogue script from extracted text.
type ScriptGenerator interface {
	Generate(ctx context.Context, text, language string) (*Script, error)
}
