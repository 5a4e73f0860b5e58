// Package postgres implements the store and settings collaborators on
// PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pricewaiter-bridge/internal/model"
	"pricewaiter-bridge/internal/settings"
	"pricewaiter-bridge/internal/store"
)

// Open connects to dsn. TranslateError is on so unique violations surface
// as gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// Repository is the gorm-backed store.Store.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps an open connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) OrderExists(ctx context.Context, pricewaiterID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("pricewaiter_id = ?", pricewaiterID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("count orders: %w", err)
	}
	return n > 0, nil
}

// CreateOrder inserts the order with its items and applies stock changes in
// one transaction.
func (r *Repository) CreateOrder(ctx context.Context, o *model.Order, stock []store.StockChange) error {
	m := toOrderModel(o)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		for _, sc := range stock {
			err := tx.Model(&ProductModel{}).
				Where("id = ? AND manage_stock", sc.ProductID).
				UpdateColumn("stock", gorm.Expr("stock - ?", sc.Quantity)).Error
			if err != nil {
				return fmt.Errorf("reduce stock for product %d: %w", sc.ProductID, err)
			}
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.ErrDuplicateOrder
	}
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return r.findOrder(ctx, "id = ?", id)
}

func (r *Repository) GetOrderByPricewaiterID(ctx context.Context, pricewaiterID string) (*model.Order, error) {
	return r.findOrder(ctx, "pricewaiter_id = ?", pricewaiterID)
}

func (r *Repository) findOrder(ctx context.Context, query string, arg any) (*model.Order, error) {
	var m OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&m, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return toDomainOrder(m), nil
}

func (r *Repository) CustomerIDByEmail(ctx context.Context, email string) (*int64, error) {
	if email == "" {
		return nil, nil
	}
	var m CustomerModel
	err := r.db.WithContext(ctx).First(&m, "lower(email) = lower(?)", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &m.ID, nil
}

func (r *Repository) Product(ctx context.Context, id int64) (*store.Product, error) {
	var m ProductModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return toDomainProduct(m), nil
}

var _ store.Store = (*Repository)(nil)

// SettingsRepository persists the settings row.
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Current returns settings.Defaults when the row has not been written yet.
func (r *SettingsRepository) Current(ctx context.Context) (settings.Settings, error) {
	var m SettingsModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", settingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return settings.Defaults(), nil
	}
	if err != nil {
		return settings.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return toDomainSettings(m), nil
}

func (r *SettingsRepository) Save(ctx context.Context, s settings.Settings) error {
	m := toSettingsModel(s)
	if err := r.db.WithContext(ctx).Save(&m).Error; err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

var _ settings.Store = (*SettingsRepository)(nil)
