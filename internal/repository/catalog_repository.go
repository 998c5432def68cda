package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cart-service/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Cache TTL constants for catalog reference data. Features/values change
// rarely relative to cart traffic; group overrides change with stock.
const (
	FeatureCacheTTL      = 5 * time.Minute
	ValueCacheTTL        = 5 * time.Minute
	GroupProductCacheTTL = 1 * time.Minute
)

const catalogKeyPrefix = "cart:catalog:"

// CatalogRepositoryInterface exposes the read-only variant catalog plus the
// single idempotent default-variant self-healing operation.
type CatalogRepositoryInterface interface {
	GetFeature(ctx context.Context, tenantID string, id uuid.UUID) (*models.Feature, error)
	GetValue(ctx context.Context, tenantID string, id uuid.UUID) (*models.Value, error)
	GetDefaultFeature(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Feature, error)
	// GetGroupProduct returns (nil, nil) when no override exists for the bind key.
	GetGroupProduct(ctx context.Context, tenantID string, productID uuid.UUID, bindKey string) (*models.GroupProduct, error)
	// EnsureDefaultVariant creates the default feature (with one value) for a
	// product that has none yet. Safe to call repeatedly.
	EnsureDefaultVariant(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Feature, error)
}

type CatalogRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

var _ CatalogRepositoryInterface = (*CatalogRepository)(nil)

func NewCatalogRepository(db *gorm.DB, redisClient *redis.Client) *CatalogRepository {
	return &CatalogRepository{db: db, redis: redisClient}
}

func (r *CatalogRepository) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if r.redis == nil {
		return false
	}
	data, err := r.redis.Get(ctx, catalogKeyPrefix+key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (r *CatalogRepository) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if r.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = r.redis.Set(ctx, catalogKeyPrefix+key, data, ttl).Err()
}

func (r *CatalogRepository) cacheDelete(ctx context.Context, keys ...string) {
	if r.redis == nil {
		return
	}
	for _, key := range keys {
		_ = r.redis.Del(ctx, catalogKeyPrefix+key).Err()
	}
}

// GetFeature retrieves one feature by id
func (r *CatalogRepository) GetFeature(ctx context.Context, tenantID string, id uuid.UUID) (*models.Feature, error) {
	cacheKey := fmt.Sprintf("feature:%s:%s", tenantID, id)

	var cached models.Feature
	if r.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	var feature models.Feature
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&feature).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("feature", id.String())
		}
		return nil, err
	}

	r.cacheSet(ctx, cacheKey, &feature, FeatureCacheTTL)
	return &feature, nil
}

// GetValue retrieves one feature value by id
func (r *CatalogRepository) GetValue(ctx context.Context, tenantID string, id uuid.UUID) (*models.Value, error) {
	cacheKey := fmt.Sprintf("value:%s:%s", tenantID, id)

	var cached models.Value
	if r.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	var value models.Value
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&value).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("value", id.String())
		}
		return nil, err
	}

	r.cacheSet(ctx, cacheKey, &value, ValueCacheTTL)
	return &value, nil
}

// GetDefaultFeature retrieves the product's default feature with its values
func (r *CatalogRepository) GetDefaultFeature(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Feature, error) {
	cacheKey := fmt.Sprintf("default:%s:%s", tenantID, productID)

	var cached models.Feature
	if r.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	var feature models.Feature
	err := r.db.WithContext(ctx).
		Preload("Values").
		Where("tenant_id = ? AND product_id = ? AND is_default = ?", tenantID, productID, true).
		First(&feature).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("default feature for product", productID.String())
		}
		return nil, err
	}

	r.cacheSet(ctx, cacheKey, &feature, FeatureCacheTTL)
	return &feature, nil
}

// GetGroupProduct looks up an explicit override by product and canonical
// name/text bind key
func (r *CatalogRepository) GetGroupProduct(ctx context.Context, tenantID string, productID uuid.UUID, bindKey string) (*models.GroupProduct, error) {
	cacheKey := fmt.Sprintf("group:%s:%s:%s", tenantID, productID, bindKey)

	var cached models.GroupProduct
	if r.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	var group models.GroupProduct
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND bind_key = ?", tenantID, productID, bindKey).
		First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	r.cacheSet(ctx, cacheKey, &group, GroupProductCacheTTL)
	return &group, nil
}

// EnsureDefaultVariant guarantees the product has a default feature with at
// least one value, creating both when missing. Runs in a transaction so two
// concurrent callers cannot create duplicate defaults.
func (r *CatalogRepository) EnsureDefaultVariant(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Feature, error) {
	feature, err := r.GetDefaultFeature(ctx, tenantID, productID)
	if err == nil {
		return feature, nil
	}
	if !models.IsNotFound(err) {
		return nil, err
	}

	created := &models.Feature{
		TenantID:  tenantID,
		ProductID: productID,
		Name:      "Default",
		Type:      models.FeatureTypeText,
		IsDefault: true,
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-check under the transaction; another request may have won the race
		var existing models.Feature
		err := tx.Preload("Values").
			Where("tenant_id = ? AND product_id = ? AND is_default = ?", tenantID, productID, true).
			First(&existing).Error
		if err == nil {
			created = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(created).Error; err != nil {
			return err
		}

		value := &models.Value{
			TenantID:  tenantID,
			FeatureID: created.ID,
			Text:      "Default",
		}
		if err := tx.Create(value).Error; err != nil {
			return err
		}
		created.Values = []models.Value{*value}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.cacheDelete(ctx, fmt.Sprintf("default:%s:%s", tenantID, productID))
	return created, nil
}

// RedisHealth returns the health status of the Redis connection
func (r *CatalogRepository) RedisHealth(ctx context.Context) error {
	if r.redis == nil {
		return fmt.Errorf("redis not configured")
	}
	return r.redis.Ping(ctx).Err()
}
