package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields carried on the context logger through a call chain.
const (
	FieldRequestID    = "request_id"
	FieldScreenshotID = "screenshot_id"
	FieldStage        = "stage"
	FieldBucket       = "bucket"
	FieldComponent    = "component"
	FieldPlace        = "place"
)

// Metric fields attached per entry, used for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)
