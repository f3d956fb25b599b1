package repository

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"analytics-service/internal/models"
)

// DatasetRepository reads the order and ad-spend source tables from the
// marketplace database. It is the database-backed counterpart of the CSV
// loader; derived tables are never written back.
type DatasetRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewDatasetRepository creates a new dataset repository
func NewDatasetRepository(db *gorm.DB, logger *logrus.Logger) *DatasetRepository {
	return &DatasetRepository{
		db:     db,
		logger: logger,
	}
}

// FetchOrders retrieves all order rows ordered by creation time
func (r *DatasetRepository) FetchOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	r.logger.WithField("rows", len(orders)).Info("Loaded orders dataset from database")
	return orders, nil
}

// FetchSpend retrieves all ad-spend rows ordered by date
func (r *DatasetRepository) FetchSpend(ctx context.Context) ([]models.SpendRecord, error) {
	var spend []models.SpendRecord
	err := r.db.WithContext(ctx).
		Order("date ASC").
		Find(&spend).Error
	if err != nil {
		return nil, err
	}

	r.logger.WithField("rows", len(spend)).Info("Loaded spend dataset from database")
	return spend, nil
}
