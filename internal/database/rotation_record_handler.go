package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"vpnrotator/internal/domain"
)

const (
	maxParamsPerBatch = 65534 // PostgreSQL's bind parameter limit - 1
	minBatchSize      = 100

	DefaultHistoryLimit = 50
)

var ErrNotConfigured = errors.New("database: connection was not configured")

func getNumDatabaseFields(model interface{}, db *gorm.DB) (int, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return 0, err
	}
	return len(stmt.Schema.DBNames), nil
}

func CalculateRotationRecordBatchSize(recordCount int) int {
	numFields, err := getNumDatabaseFields(&domain.RotationRecord{}, DB)
	if err != nil || numFields == 0 {
		log.Error("Failed to determine batch size", "error", err)
		return minBatchSize
	}

	batchSize := maxParamsPerBatch / numFields
	if batchSize < minBatchSize {
		batchSize = minBatchSize
	}
	if recordCount > 0 && batchSize > recordCount {
		batchSize = recordCount
	}
	return batchSize
}

func InsertRotationRecords(ctx context.Context, records []domain.RotationRecord, batchSize int) error {
	if DB == nil {
		return ErrNotConfigured
	}
	if len(records) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = minBatchSize
	}

	return DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(records, batchSize).Error
	})
}

// ListRotationRecords returns the newest records first, by insertion order.
func ListRotationRecords(ctx context.Context, limit int) ([]domain.RotationRecord, error) {
	if DB == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows := make([]domain.RotationRecord, 0, limit)
	err := DB.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rotation history: list: %w", err)
	}
	return rows, nil
}

// PruneRotationRecords keeps the newest keep rows and deletes the rest.
func PruneRotationRecords(ctx context.Context, keep int) (int64, error) {
	if DB == nil {
		return 0, ErrNotConfigured
	}
	if keep < 0 {
		keep = 0
	}

	tx := DB.WithContext(ctx)

	var cutoff []uint64
	err := tx.Model(&domain.RotationRecord{}).
		Order("id DESC").
		Offset(keep).
		Limit(1).
		Pluck("id", &cutoff).Error
	if err != nil {
		return 0, fmt.Errorf("rotation history: find cutoff: %w", err)
	}
	if len(cutoff) == 0 {
		return 0, nil
	}

	result := tx.Where("id <= ?", cutoff[0]).Delete(&domain.RotationRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("rotation history: prune: %w", result.Error)
	}
	return result.RowsAffected, nil
}
