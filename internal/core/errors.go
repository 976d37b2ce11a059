package core

import "errors"

// Request-level error categories. Every fatal error returned by the pipeline
// wraps exactly one of these so callers can classify it with errors.Is.
var (
	// ErrExtraction indicates the source document could not be read or parsed.
	ErrExtraction = errors.New("text extraction failed")
	// ErrInsufficientText indicates the document yielded too little usable text.
	ErrInsufficientText = errors.New("insufficient text extracted from document")
	// ErrUnsupportedDocument indicates the document type is not accepted.
	ErrUnsupportedDocument = errors.New("unsupported document type")
	// ErrScriptGeneration indicates the model call failed or its output was unusable.
	ErrScriptGeneration = errors.New("script generation failed")
	// ErrSynthesis indicates speech synthesis failed for a single turn.
	ErrSynthesis = errors.New("speech synthesis failed")
	// ErrAssembly indicates no usable audio was produced or the export failed.
	ErrAssembly = errors.New("audio assembly failed")
	// ErrNotFound indicates a requested upload or podcast does not exist.
	ErrNotFound = errors.New("not found")
)
