package domain

import "errors"

var (
	// ErrCorpus signals a malformed or dimensionally inconsistent corpus,
	// or a zero-norm vector that cannot be normalized.
	ErrCorpus = errors.New("corpus error")
	// ErrConfig signals a configuration fault, e.g. the provider output
	// dimension not matching the corpus dimension.
	ErrConfig = errors.New("configuration error")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrNotReady signals that the engine has not completed initialization.
	ErrNotReady = errors.New("engine not ready")
)
