package source

import "context"

// ImageItem is one screenshot file offered by a source.
type ImageItem struct {
	SourceID  string // unique within the source
	LocalPath string
	MediaType string
	Size      int64
}

// Source enumerates screenshots for batch ingestion.
type Source interface {
	// GetSourceID returns a stable identifier for this source.
	GetSourceID() string

	// FetchBatch returns up to limit items starting at cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of items to fetch.
	// Returns:
	//   - items: batch of image items.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []ImageItem, nextCursor string, err error)
}
