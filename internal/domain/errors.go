package domain

import (
	"errors"
	"fmt"
)

// Failure kinds raised by the screenshot pipeline.
var (
	ErrExtractionFailure        = errors.New("extraction failed")
	ErrParseFailure             = errors.New("extraction reply could not be parsed")
	ErrEmbeddingFailure         = errors.New("embedding failed")
	ErrThumbnailFailure         = errors.New("thumbnail derivation failed")
	ErrGeocodeFailure           = errors.New("geocoding failed")
	ErrClusteringPersistFailure = errors.New("place clustering or persistence failed")
)

// StageError wraps a failure kind with the stage that raised it and its cause.
type StageError struct {
	Kind  error
	Stage string
	Err   error
}

// NewStageError creates a StageError.
func NewStageError(kind error, stage string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches the failure kind. A parse failure is also an extraction failure.
func (e *StageError) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.Kind == ErrParseFailure && target == ErrExtractionFailure
}

// ExtractionError returns an ExtractionFailure for the given cause.
func ExtractionError(err error) error {
	return NewStageError(ErrExtractionFailure, "extracting", err)
}

// ParseError returns a ParseFailure for the given cause.
func ParseError(err error) error {
	return NewStageError(ErrParseFailure, "extracting", err)
}

// EmbeddingError returns an EmbeddingFailure for the given cause.
func EmbeddingError(err error) error {
	return NewStageError(ErrEmbeddingFailure, "embedding", err)
}

// ThumbnailError returns a ThumbnailFailure for the given cause.
func ThumbnailError(err error) error {
	return NewStageError(ErrThumbnailFailure, "thumbnailing", err)
}

// GeocodeError returns a GeocodeFailure for the given place name and cause.
func GeocodeError(name string, err error) error {
	return NewStageError(ErrGeocodeFailure, "geocoding "+name, err)
}

// ClusteringPersistError returns a ClusteringPersistFailure for the given cause.
func ClusteringPersistError(err error) error {
	return NewStageError(ErrClusteringPersistFailure, "clustering", err)
}
