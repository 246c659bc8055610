// pricescout/sources/psql/dao/dao.search_run.go
package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pricescout/pricescout/sources/psql/models"
	"pricescout/pricescout/utils/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrIncompleteSelection = errors.New("every product with candidates needs a selection")
)

type SearchRunDAO struct {
	DB *gorm.DB
}

func NewSearchRunDAO(db *gorm.DB) *SearchRunDAO {
	return &SearchRunDAO{DB: db}
}

// ExportRow is one line of the selections export.
type ExportRow struct {
	ProductName string
	Price       float64
	URL         string
}

func (dao *SearchRunDAO) CreateRun(ctx context.Context, siteID string, total, cached int) (*models.SearchRun, error) {
	run := models.SearchRun{
		SiteID: siteID,
		Status: models.RunStatusRunning,
		Total:  total,
		Cached: cached,
	}
	if err := dao.DB.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// SaveResults stores results at their input positions, candidates ranked by
// their order in the result.
func (dao *SearchRunDAO) SaveResults(ctx context.Context, runID uuid.UUID, results []types.ProductResult) error {
	return dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, res := range results {
			record := models.ProductRecord{
				RunID:       runID,
				Position:    i,
				ProductName: res.ProductName,
				Error:       res.Error,
				Candidates:  make([]models.CandidateRecord, 0, len(res.Candidates)),
			}
			for rank, c := range res.Candidates {
				record.Candidates = append(record.Candidates, models.CandidateRecord{
					Rank:     rank,
					Price:    c.Price,
					Title:    c.Title,
					URL:      c.DetailURL,
					ImageURL: c.ImageURL,
				})
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("save product %d: %w", i, err)
			}
		}
		return nil
	})
}

// FinishRun marks the run done, or failed with runErr.
func (dao *SearchRunDAO) FinishRun(ctx context.Context, runID uuid.UUID, runErr error) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      models.RunStatusDone,
		"finished_at": &now,
	}
	if runErr != nil {
		updates["status"] = models.RunStatusFailed
		updates["error"] = runErr.Error()
	}
	return dao.DB.WithContext(ctx).Model(&models.SearchRun{}).Where("id = ?", runID).Updates(updates).Error
}

func (dao *SearchRunDAO) GetRun(ctx context.Context, runID uuid.UUID) (*models.SearchRun, error) {
	var run models.SearchRun
	err := dao.DB.WithContext(ctx).
		Preload("Products", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Products.Candidates", func(db *gorm.DB) *gorm.DB { return db.Order("rank asc") }).
		First(&run, "id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (dao *SearchRunDAO) ListRuns(ctx context.Context, limit int) ([]models.SearchRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []models.SearchRun
	err := dao.DB.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// SelectCandidate records which candidate the user picked for the product at
// position. rank must name one of that product's candidates.
func (dao *SearchRunDAO) SelectCandidate(ctx context.Context, runID uuid.UUID, position, rank int) error {
	var product models.ProductRecord
	err := dao.DB.WithContext(ctx).
		Preload("Candidates").
		Where("run_id = ? AND position = ?", runID, position).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if rank < 0 || rank >= len(product.Candidates) {
		return fmt.Errorf("%w: product %d has %d candidates, got rank %d",
			types.ErrInvalidRequest, position, len(product.Candidates), rank)
	}
	return dao.DB.WithContext(ctx).Model(&product).Update("selected_rank", rank).Error
}

// ExportRows returns the selected candidate of each product in input order.
// Products without candidates are skipped; any other product left unselected
// fails the export with ErrIncompleteSelection.
func (dao *SearchRunDAO) ExportRows(ctx context.Context, runID uuid.UUID) ([]ExportRow, error) {
	run, err := dao.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	rows := make([]ExportRow, 0, len(run.Products))
	for _, p := range run.Products {
		if len(p.Candidates) == 0 {
			continue
		}
		c, ok := p.Selected()
		if !ok {
			return nil, fmt.Errorf("%w: %q (position %d)", ErrIncompleteSelection, p.ProductName, p.Position)
		}
		rows = append(rows, ExportRow{ProductName: p.ProductName, Price: c.Price, URL: c.URL})
	}
	return rows, nil
}
