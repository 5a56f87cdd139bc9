package repository

import (
	"context"
	"fmt"

	"github.com/timmy/shotlens/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlaceRepository persists places and the clusters that group them.
type PlaceRepository struct {
	db *gorm.DB
}

// NewPlaceRepository creates a new PlaceRepository.
func NewPlaceRepository(db *gorm.DB) *PlaceRepository {
	return &PlaceRepository{db: db}
}

// ReplaceScreenshotPlaces makes places and clusters the complete place set of
// one screenshot, atomically. Clusters that referenced the screenshot's previous
// places are deleted and any remaining members are unassigned, so every stored
// cluster lists exactly the places that point back at it.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - screenshotID: owner of the places; every place must carry it as SourceScreenshotID.
//   - places: the new place set; ClusterID is ignored and derived from clusters.
//   - clusters: clusters over places; each PlaceIDs entry must be in places.
//
// Returns:
//   - error: non-nil if any write fails; nothing is committed in that case.
func (r *PlaceRepository) ReplaceScreenshotPlaces(ctx context.Context, screenshotID string, places []domain.Place, clusters []domain.PlaceCluster) error {
	for _, p := range places {
		if p.SourceScreenshotID != screenshotID {
			return fmt.Errorf("place %s belongs to screenshot %s, not %s", p.ID, p.SourceScreenshotID, screenshotID)
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var staleClusters []string
		if err := tx.Model(&domain.Place{}).
			Where("source_screenshot_id = ? AND cluster_id IS NOT NULL", screenshotID).
			Distinct().
			Pluck("cluster_id", &staleClusters).Error; err != nil {
			return fmt.Errorf("failed to find clusters of screenshot %s: %w", screenshotID, err)
		}
		if len(staleClusters) > 0 {
			if err := tx.Model(&domain.Place{}).
				Where("cluster_id IN ?", staleClusters).
				Update("cluster_id", nil).Error; err != nil {
				return fmt.Errorf("failed to unassign places: %w", err)
			}
			if err := tx.Where("id IN ?", staleClusters).Delete(&domain.PlaceCluster{}).Error; err != nil {
				return fmt.Errorf("failed to delete clusters: %w", err)
			}
		}

		if err := tx.Where("source_screenshot_id = ?", screenshotID).Delete(&domain.Place{}).Error; err != nil {
			return fmt.Errorf("failed to delete places of screenshot %s: %w", screenshotID, err)
		}
		if len(places) > 0 {
			rows := make([]domain.Place, len(places))
			copy(rows, places)
			for i := range rows {
				rows[i].ClusterID = nil
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to save places: %w", err)
			}
		}
		return saveClusters(tx, clusters)
	})
}

// saveClusters upserts clusters and points each member place at its cluster.
func saveClusters(tx *gorm.DB, clusters []domain.PlaceCluster) error {
	if len(clusters) == 0 {
		return nil
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&clusters).Error; err != nil {
		return fmt.Errorf("failed to save clusters: %w", err)
	}

	for _, c := range clusters {
		if len(c.PlaceIDs) == 0 {
			continue
		}
		res := tx.Model(&domain.Place{}).
			Where("id IN ?", []string(c.PlaceIDs)).
			Update("cluster_id", c.ID)
		if res.Error != nil {
			return fmt.Errorf("failed to assign places to cluster %s: %w", c.ID, res.Error)
		}
		if res.RowsAffected != int64(len(c.PlaceIDs)) {
			return fmt.Errorf("cluster %s references %d places, %d found", c.ID, len(c.PlaceIDs), res.RowsAffected)
		}
	}
	return nil
}

// ListPlaces returns every place, newest first.
func (r *PlaceRepository) ListPlaces(ctx context.Context) ([]domain.Place, error) {
	var places []domain.Place
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&places).Error; err != nil {
		return nil, err
	}
	return places, nil
}

// ListByScreenshot returns the places extracted from one screenshot.
func (r *PlaceRepository) ListByScreenshot(ctx context.Context, screenshotID string) ([]domain.Place, error) {
	var places []domain.Place
	if err := r.db.WithContext(ctx).
		Where("source_screenshot_id = ?", screenshotID).
		Order("created_at ASC").
		Find(&places).Error; err != nil {
		return nil, err
	}
	return places, nil
}

// ListClusters returns every cluster, newest first.
func (r *PlaceRepository) ListClusters(ctx context.Context) ([]domain.PlaceCluster, error) {
	var clusters []domain.PlaceCluster
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&clusters).Error; err != nil {
		return nil, err
	}
	return clusters, nil
}

// GetCluster retrieves a cluster by id.
func (r *PlaceRepository) GetCluster(ctx context.Context, id string) (*domain.PlaceCluster, error) {
	var c domain.PlaceCluster
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}
