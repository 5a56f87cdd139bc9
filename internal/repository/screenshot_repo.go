package repository

import (
	"context"
	"time"

	"github.com/timmy/shotlens/internal/domain"
	"gorm.io/gorm"
)

// ScreenshotRepository handles screenshot record persistence.
type ScreenshotRepository struct {
	db *gorm.DB
}

// NewScreenshotRepository creates a new ScreenshotRepository.
func NewScreenshotRepository(db *gorm.DB) *ScreenshotRepository {
	return &ScreenshotRepository{db: db}
}

// Create inserts a new screenshot record.
func (r *ScreenshotRepository) Create(ctx context.Context, s *domain.Screenshot) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// GetByID retrieves a screenshot by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: screenshot ID.
//
// Returns:
//   - *domain.Screenshot: record if found.
//   - error: ErrNotFound when no record has the id.
func (r *ScreenshotRepository) GetByID(ctx context.Context, id string) (*domain.Screenshot, error) {
	var s domain.Screenshot
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// GetByIDs loads the records for ids in one query. Missing ids are absent from the map.
func (r *ScreenshotRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Screenshot, error) {
	out := make(map[string]*domain.Screenshot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Screenshot
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// ExistsByMD5Hash checks whether an image with the same content was already ingested.
func (r *ScreenshotRepository) ExistsByMD5Hash(ctx context.Context, md5Hash string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Screenshot{}).Where("md5_hash = ?", md5Hash).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns records newest first, optionally restricted to one bucket.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - bucket: bucket to filter by; empty means all.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
//
// Returns:
//   - []domain.Screenshot: matching records.
//   - error: non-nil if the query fails.
func (r *ScreenshotRepository) List(ctx context.Context, bucket domain.Bucket, limit, offset int) ([]domain.Screenshot, error) {
	var rows []domain.Screenshot
	query := r.db.WithContext(ctx)
	if bucket != "" {
		query = query.Where("bucket = ?", bucket)
	}
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of records, optionally restricted to one bucket.
func (r *ScreenshotRepository) Count(ctx context.Context, bucket domain.Bucket) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.Screenshot{})
	if bucket != "" {
		query = query.Where("bucket = ?", bucket)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateSearchResults stores web search enrichment on a record.
func (r *ScreenshotRepository) UpdateSearchResults(ctx context.Context, id string, results *domain.SearchResultsMetadata) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Screenshot{ID: id}).
		Select("search_results", "updated_at").
		Updates(&domain.Screenshot{SearchResults: results, UpdatedAt: time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
