package repository

import (
	"context"
	"errors"
	"time"

	"cart-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartTxInterface is the set of cart/item primitives available inside (and
// outside) a transaction. Callers never write quantity 0; they delete instead.
type CartTxInterface interface {
	// GetCart loads a cart by id regardless of ownership; (nil, nil) when absent.
	GetCart(ctx context.Context, tenantID string, cartID uuid.UUID) (*models.Cart, error)
	// FindUserCart returns the user's cart or (nil, nil) when absent.
	FindUserCart(ctx context.Context, tenantID string, userID uuid.UUID) (*models.Cart, error)
	FindOrCreateUserCart(ctx context.Context, tenantID string, userID uuid.UUID) (*models.Cart, error)
	CreateGuestCart(ctx context.Context, tenantID string) (*models.Cart, error)
	DeleteCart(ctx context.Context, cartID uuid.UUID) error

	// LockCart takes a row lock on the cart, serializing concurrent item
	// creation for the same cart.
	LockCart(ctx context.Context, cartID uuid.UUID) error

	// FindItemForUpdate locks and returns the item identified by
	// (cart, product, canonical bind key); (nil, nil) when absent.
	FindItemForUpdate(ctx context.Context, cartID, productID uuid.UUID, bindKey string) (*models.CartItem, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	SaveItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	// ReassignItem moves an item to another cart, refreshing its bind key.
	ReassignItem(ctx context.Context, itemID, cartID uuid.UUID, bindKey string) error
}

// CartRepositoryInterface adds the transaction boundary around the primitives.
type CartRepositoryInterface interface {
	CartTxInterface
	// Transaction runs fn atomically; any error rolls the whole unit back.
	Transaction(ctx context.Context, fn func(tx CartTxInterface) error) error
}

type CartRepository struct {
	db *gorm.DB
}

var _ CartRepositoryInterface = (*CartRepository)(nil)

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

// Transaction executes fn inside a database transaction. The fn receives a
// repository bound to the transaction handle so row locks taken via
// FindItemForUpdate/LockCart hold until commit or rollback.
func (r *CartRepository) Transaction(ctx context.Context, fn func(tx CartTxInterface) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&CartRepository{db: tx})
	})
}

func (r *CartRepository) GetCart(ctx context.Context, tenantID string, cartID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, cartID).
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

func (r *CartRepository) FindUserCart(ctx context.Context, tenantID string, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

func (r *CartRepository) FindOrCreateUserCart(ctx context.Context, tenantID string, userID uuid.UUID) (*models.Cart, error) {
	cart, err := r.FindUserCart(ctx, tenantID, userID)
	if err != nil || cart != nil {
		return cart, err
	}

	cart = &models.Cart{
		TenantID: tenantID,
		UserID:   &userID,
	}
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		// A concurrent first mutation may have won the unique
		// (tenant_id, user_id) race; their cart is ours too.
		if existing, ferr := r.FindUserCart(ctx, tenantID, userID); ferr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return cart, nil
}

func (r *CartRepository) CreateGuestCart(ctx context.Context, tenantID string) (*models.Cart, error) {
	expiresAt := time.Now().Add(models.GuestCartTTL)
	cart := &models.Cart{
		TenantID:  tenantID,
		ExpiresAt: &expiresAt,
	}
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *CartRepository) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	// Items first; not every deployment has the FK cascade in place
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id = ?", cartID).
		Delete(&models.Cart{}).Error
}

func (r *CartRepository) LockCart(ctx context.Context, cartID uuid.UUID) error {
	var cart models.Cart
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&cart, "id = ?", cartID).Error
}

func (r *CartRepository) FindItemForUpdate(ctx context.Context, cartID, productID uuid.UUID, bindKey string) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("cart_id = ? AND product_id = ? AND bind_key = ?", cartID, productID, bindKey).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *CartRepository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *CartRepository) SaveItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *CartRepository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", itemID).
		Delete(&models.CartItem{}).Error
}

func (r *CartRepository) ReassignItem(ctx context.Context, itemID, cartID uuid.UUID, bindKey string) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{
			"cart_id":    cartID,
			"bind_key":   bindKey,
			"updated_at": time.Now(),
		}).Error
}
