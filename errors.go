package coj

import (
	"errors"

	"github.com/StartGackt/coj-backend/extract"
	"github.com/StartGackt/coj-backend/semantic"
)

var (
	// ErrStoreUnavailable is returned when the graph store cannot be read
	// or written. The call failed as a whole and may be retried.
	ErrStoreUnavailable = errors.New("coj: graph store unavailable")

	// ErrEmbeddingUnavailable marks a missing or failing embedding
	// provider. Searches absorb it and rank lexically.
	ErrEmbeddingUnavailable = semantic.ErrUnavailable

	// ErrInvalidQuery describes an empty query or non-positive k. Searches
	// answer it with an empty result rather than returning it.
	ErrInvalidQuery = errors.New("coj: invalid query parameter")

	// ErrNoTexts is returned when ingest is called without any text.
	ErrNoTexts = errors.New("coj: no texts to ingest")

	// ErrInvalidText is returned for ingest input that is not valid UTF-8.
	ErrInvalidText = extract.ErrInvalidText

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("coj: unsupported document format")

	// ErrParsingFailed is returned when file parsing fails.
	ErrParsingFailed = errors.New("coj: parsing failed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("coj: invalid configuration")

	// ErrStoreClosed is returned when operating on a closed engine.
	ErrStoreClosed = errors.New("coj: store is closed")
)
