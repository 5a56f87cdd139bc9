package domain

// StageResult is the outcome of a best-effort pipeline stage: either a value or
// the reason the stage degraded.
type StageResult[T any] struct {
	value  T
	reason error
	ok     bool
}

// Ok creates a successful StageResult.
func Ok[T any](v T) StageResult[T] {
	return StageResult[T]{value: v, ok: true}
}

// Degraded creates a StageResult for a stage that failed without aborting the pipeline.
func Degraded[T any](reason error) StageResult[T] {
	return StageResult[T]{reason: reason}
}

// IsOk reports whether the stage produced a value.
func (r StageResult[T]) IsOk() bool { return r.ok }

// Value returns the stage value and whether it is present.
func (r StageResult[T]) Value() (T, bool) { return r.value, r.ok }

// Reason returns the degradation cause, or nil when the stage succeeded.
func (r StageResult[T]) Reason() error { return r.reason }

// ValueOr returns the value or fallback when the stage degraded.
func (r StageResult[T]) ValueOr(fallback T) T {
	if !r.ok {
		return fallback
	}
	return r.value
}
