package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GuestCartTTL is how long an anonymous cart lives before it expires.
const GuestCartTTL = 14 * 24 * time.Hour

// Cart belongs to exactly one user or is anonymous (guest). Guest carts carry
// an expiry and no user id; they are created lazily on first mutation and
// deleted once merged into a user cart.
type Cart struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID string    `json:"tenantId" gorm:"type:varchar(255);not null;uniqueIndex:idx_carts_tenant_user"`
	// UserID is unique per tenant so a user can never hold two carts. Guest
	// carts have a NULL user_id, which the unique index does not constrain.
	UserID *uuid.UUID `json:"userId,omitempty" gorm:"type:uuid;uniqueIndex:idx_carts_tenant_user"`

	ExpiresAt *time.Time `json:"expiresAt,omitempty" gorm:"index"`

	Items []CartItem `json:"items,omitempty" gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Cart) TableName() string {
	return "carts"
}

// IsGuest reports whether the cart has no owning user.
func (c *Cart) IsGuest() bool {
	return c.UserID == nil
}

// Expired reports whether a guest cart has passed its expiry.
func (c *Cart) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CartItem is one (product, bind) line of a cart. Within one cart at most one
// item may exist per (product_id, bind_key); an item with quantity 0 is
// deleted, never stored.
type CartItem struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID string    `json:"tenantId" gorm:"type:varchar(255);not null;index"`

	CartID    uuid.UUID `json:"cartId" gorm:"type:uuid;not null;uniqueIndex:idx_cart_items_identity"`
	ProductID uuid.UUID `json:"productId" gorm:"type:uuid;not null;uniqueIndex:idx_cart_items_identity"`

	Bind    datatypes.JSON `json:"bind" gorm:"type:jsonb"`
	BindKey string         `json:"bindKey" gorm:"type:varchar(1024);not null;uniqueIndex:idx_cart_items_identity"`

	Quantity int `json:"quantity" gorm:"not null"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// ========== Request / Response DTOs ==========

// MutationRequest is the payload of a cart mutation
type MutationRequest struct {
	ProductID   uuid.UUID    `json:"productId" binding:"required"`
	Bind        Bind         `json:"bind"`
	Mode        MutationMode `json:"mode" binding:"required"`
	Value       *int         `json:"value,omitempty"` // defaults to 1
	IgnoreStock bool         `json:"ignoreStock,omitempty"`
}

// Quantity returns the requested delta, defaulting to 1.
func (r *MutationRequest) Quantity() int {
	if r.Value == nil {
		return 1
	}
	return *r.Value
}

// MergeRequest asks for a guest cart to be folded into the caller's cart
type MergeRequest struct {
	GuestCartID uuid.UUID `json:"guestCartId" binding:"required"`
}

// CartItemView is one cart line with its currently resolved pricing
type CartItemView struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"productId"`
	Bind            Bind      `json:"bind"`
	Quantity        int       `json:"quantity"`
	UnitPrice       float64   `json:"unitPrice"` // base price + additional price
	AdditionalPrice float64   `json:"additionalPrice"`
	LineTotal       float64   `json:"lineTotal"`
}

// CartView is a cart with items and the recomputed total. The total is always
// Σ quantity × (base price + currently resolved additional price); stored
// snapshots are never trusted.
type CartView struct {
	ID        uuid.UUID      `json:"id"`
	UserID    *uuid.UUID     `json:"userId,omitempty"`
	Guest     bool           `json:"guest"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
	Items     []CartItemView `json:"items"`
	Total     float64        `json:"total"`
	Currency  string         `json:"currency,omitempty"`
}

// MutationResult is the outcome of one applied mutation
type MutationResult struct {
	Cart   *CartView     `json:"cart"`
	Item   *CartItemView `json:"item,omitempty"` // nil when removed
	Action CartAction    `json:"action"`
}

// ========== Response envelopes ==========

type CartResponse struct {
	Success bool      `json:"success"`
	Data    *CartView `json:"data,omitempty"`
	Message *string   `json:"message,omitempty"`
}

type MutationResponse struct {
	Success bool            `json:"success"`
	Data    *MutationResult `json:"data,omitempty"`
	// Token is set when the mutation lazily created a guest cart
	Token   string  `json:"token,omitempty"`
	Message *string `json:"message,omitempty"`
}

type GuestCartResponse struct {
	Success bool      `json:"success"`
	Data    *CartView `json:"data,omitempty"`
	Token   string    `json:"token,omitempty"`
	Message *string   `json:"message,omitempty"`
}

type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
