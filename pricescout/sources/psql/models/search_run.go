// pricescout/sources/psql/models/search_run.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// SearchRun is one POST /search (or streamed search) and everything it returned.
type SearchRun struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	SiteID     string          `json:"site_id" gorm:"type:varchar(64);not null"`
	Status     string          `json:"status" gorm:"type:varchar(16);not null;default:'running'"`
	Total      int             `json:"total" gorm:"not null"`
	Cached     int             `json:"cached" gorm:"not null;default:0"`
	Error      string          `json:"error,omitempty" gorm:"type:text;default:''"`
	CreatedAt  time.Time       `json:"created_at" gorm:"autoCreateTime"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Products   []ProductRecord `json:"products,omitempty" gorm:"foreignKey:RunID;references:ID;constraint:OnDelete:CASCADE"`
}

func (SearchRun) TableName() string {
	return "search_runs"
}

func (r *SearchRun) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ProductRecord is one requested product of a run, at its input Position.
type ProductRecord struct {
	ID           uint              `json:"id" gorm:"primaryKey;autoIncrement"`
	RunID        uuid.UUID         `json:"run_id" gorm:"type:uuid;not null;index:idx_run_position,unique"`
	Position     int               `json:"position" gorm:"not null;index:idx_run_position,unique"`
	ProductName  string            `json:"product_name" gorm:"type:varchar(512);not null"`
	Error        string            `json:"error,omitempty" gorm:"type:text;default:''"`
	SelectedRank *int              `json:"selected_rank,omitempty"`
	Candidates   []CandidateRecord `json:"candidates" gorm:"foreignKey:ProductID;references:ID;constraint:OnDelete:CASCADE"`
}

func (ProductRecord) TableName() string {
	return "search_products"
}

// Selected returns the chosen candidate, if any.
func (p ProductRecord) Selected() (CandidateRecord, bool) {
	if p.SelectedRank == nil {
		return CandidateRecord{}, false
	}
	for _, c := range p.Candidates {
		if c.Rank == *p.SelectedRank {
			return c, true
		}
	}
	return CandidateRecord{}, false
}

// CandidateRecord is a filtered listing; Rank 0 is the cheapest.
type CandidateRecord struct {
	ID        uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID uint    `json:"product_id" gorm:"not null;index"`
	Rank      int     `json:"rank" gorm:"not null"`
	Price     float64 `json:"price" gorm:"not null"`
	Title     string  `json:"title" gorm:"type:text"`
	URL       string  `json:"url" gorm:"type:text"`
	ImageURL  string  `json:"image" gorm:"type:text"`
}

func (CandidateRecord) TableName() string {
	return "search_candidates"
}
