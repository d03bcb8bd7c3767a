// Package store persists analyzed datasets and segmentation runs.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/macroplay/insights/analyze"
	"github.com/macroplay/insights/segment"
)

// ErrNotFound is returned when a dataset or run does not exist.
var ErrNotFound = errors.New("not found")

// Dataset is one correlated upload plus its analysis snapshot.
type Dataset struct {
	ID           uuid.UUID      `gorm:"type:text;primaryKey" json:"id"`
	Name         string         `gorm:"type:text;not null" json:"name"`
	TariffFile   string         `gorm:"type:text" json:"tariffFile"`
	RechargeFile string         `gorm:"type:text" json:"rechargeFile"`
	RecordCount  int            `gorm:"not null" json:"recordCount"`
	Analysis     datatypes.JSON `json:"analysis"`
	CreatedAt    time.Time      `gorm:"not null" json:"createdAt"`
}

func (Dataset) TableName() string { return "datasets" }

// SegmentationRun records one segmentation outcome over a dataset.
type SegmentationRun struct {
	ID          uuid.UUID      `gorm:"type:text;primaryKey" json:"id"`
	DatasetID   uuid.UUID      `gorm:"type:text;index;not null" json:"datasetId"`
	Source      string         `gorm:"type:text;not null" json:"source"`
	Criteria    string         `gorm:"type:text" json:"criteria"`
	Segments    datatypes.JSON `json:"segments"`
	RecordCount int            `gorm:"not null" json:"recordCount"`
	CreatedAt   time.Time      `gorm:"not null" json:"createdAt"`
}

func (SegmentationRun) TableName() string { return "segmentation_runs" }

// Store wraps the SQLite database.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for an ephemeral database.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Dataset{}, &SegmentationRun{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Info("store ready", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// SaveDataset persists a new dataset with its analysis snapshot and
// returns the stored row.
func (s *Store) SaveDataset(ctx context.Context, name, tariffFile, rechargeFile string, res *analyze.Result) (*Dataset, error) {
	analysisJSON, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis: %w", err)
	}

	ds := &Dataset{
		ID:           uuid.New(),
		Name:         name,
		TariffFile:   tariffFile,
		RechargeFile: rechargeFile,
		RecordCount:  res.TotalRecords,
		Analysis:     analysisJSON,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(ds).Error; err != nil {
		return nil, fmt.Errorf("failed to save dataset: %w", err)
	}

	s.log.Info("dataset saved",
		zap.String("id", ds.ID.String()),
		zap.String("name", name),
		zap.Int("records", ds.RecordCount))
	return ds, nil
}

// GetDataset loads one dataset by ID.
func (s *Store) GetDataset(ctx context.Context, id uuid.UUID) (*Dataset, error) {
	var ds Dataset
	err := s.db.WithContext(ctx).First(&ds, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return &ds, nil
}

// ListDatasets returns all datasets, newest first.
func (s *Store) ListDatasets(ctx context.Context) ([]Dataset, error) {
	var out []Dataset
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return out, nil
}

// AnalysisResult decodes the stored analysis snapshot.
func (d *Dataset) AnalysisResult() (*analyze.Result, error) {
	var res analyze.Result
	if err := json.Unmarshal(d.Analysis, &res); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &res, nil
}

// SaveRun persists a segmentation outcome for a dataset.
func (s *Store) SaveRun(ctx context.Context, datasetID uuid.UUID, criteria string, out *segment.Outcome) (*SegmentationRun, error) {
	segmentsJSON, err := json.Marshal(out.Segments)
	if err != nil {
		return nil, fmt.Errorf("failed to encode segments: %w", err)
	}

	run := &SegmentationRun{
		ID:          uuid.New(),
		DatasetID:   datasetID,
		Source:      out.Source,
		Criteria:    criteria,
		Segments:    segmentsJSON,
		RecordCount: len(out.Records),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to save segmentation run: %w", err)
	}

	s.log.Info("segmentation run saved",
		zap.String("id", run.ID.String()),
		zap.String("dataset", datasetID.String()),
		zap.String("source", out.Source))
	return run, nil
}

// RunsForDataset returns a dataset's segmentation runs, newest first.
func (s *Store) RunsForDataset(ctx context.Context, datasetID uuid.UUID) ([]SegmentationRun, error) {
	var out []SegmentationRun
	err := s.db.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list segmentation runs: %w", err)
	}
	return out, nil
}

// Segments decodes a run's stored segment list.
func (r *SegmentationRun) SegmentList() ([]segment.Segment, error) {
	var segs []segment.Segment
	if err := json.Unmarshal(r.Segments, &segs); err != nil {
		return nil, fmt.Errorf("failed to decode segments: %w", err)
	}
	return segs, nil
}
