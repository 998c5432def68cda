package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FeatureType represents how a feature's values are selected and displayed
type FeatureType string

const (
	FeatureTypeText      FeatureType = "TEXT"       // Plain text choices
	FeatureTypeColor     FeatureType = "COLOR"      // Color swatches
	FeatureTypeIcon      FeatureType = "ICON"       // Icon choices
	FeatureTypeIconText  FeatureType = "ICON_TEXT"  // Icon + label choices
	FeatureTypeInput     FeatureType = "INPUT"      // Free text input
	FeatureTypeDate      FeatureType = "DATE"       // Single date
	FeatureTypeDateRange FeatureType = "DATE_RANGE" // Date range
	FeatureTypeRange     FeatureType = "RANGE"      // Numeric range
	FeatureTypeLevel     FeatureType = "LEVEL"      // Level/step selector
	FeatureTypeFile      FeatureType = "FILE"       // File upload
)

// Enumerated reports whether the feature's selections must reference Value rows.
// Non-enumerated types carry raw client input in the bind instead.
func (t FeatureType) Enumerated() bool {
	switch t {
	case FeatureTypeText, FeatureTypeColor, FeatureTypeIcon, FeatureTypeIconText:
		return true
	}
	return false
}

// Feature is one attribute axis of a product (e.g. color, size)
type Feature struct {
	ID        uuid.UUID   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string      `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	ProductID uuid.UUID   `json:"productId" gorm:"type:uuid;not null;index"`
	Name      string      `json:"name" gorm:"type:varchar(255);not null"`
	Type      FeatureType `json:"type" gorm:"type:varchar(20);not null;default:'TEXT'"`
	Required  bool        `json:"required" gorm:"default:false"`
	Multiple  bool        `json:"multiple" gorm:"default:false"`
	Position  int         `json:"position" gorm:"default:0"`

	// Exactly one feature per product carries IsDefault; it is used when a
	// mutation arrives with an empty bind.
	IsDefault    bool    `json:"isDefault" gorm:"default:false;index"`
	DefaultValue *string `json:"defaultValue,omitempty" gorm:"type:varchar(255)"`

	// Bounds for INPUT/RANGE/LEVEL types
	MinValue *float64 `json:"minValue,omitempty"`
	MaxValue *float64 `json:"maxValue,omitempty"`
	MinLen   *int     `json:"minLen,omitempty"`
	MaxLen   *int     `json:"maxLen,omitempty"`

	// Upload constraints for FILE type
	AllowedExtensions pq.StringArray `json:"allowedExtensions,omitempty" gorm:"type:text[]"`

	Values []Value `json:"values,omitempty" gorm:"foreignKey:FeatureID"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Feature) TableName() string {
	return "product_features"
}

// Value is one selectable option under a feature
type Value struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string    `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	FeatureID uuid.UUID `json:"featureId" gorm:"type:uuid;not null;index"`
	Text      string    `json:"text" gorm:"type:varchar(255)"`
	Key       *string   `json:"key,omitempty" gorm:"type:varchar(64)"` // color hex / icon key

	AdditionalPrice float64 `json:"additionalPrice" gorm:"default:0"`

	// Stock is nil when this value does not constrain stock on its own.
	Stock           *int `json:"stock,omitempty"`
	DecreasesStock  bool `json:"decreasesStock" gorm:"default:false"`
	ContinueSelling bool `json:"continueSelling" gorm:"default:false"`

	Position int `json:"position" gorm:"default:0"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Value) TableName() string {
	return "product_feature_values"
}

// ValidateFor checks the invariants a value must satisfy under its feature type.
func (v *Value) ValidateFor(featureType FeatureType) error {
	if featureType.Enumerated() && v.Text == "" {
		return fmt.Errorf("value %s: text is required for %s features", v.ID, featureType)
	}
	if featureType == FeatureTypeColor && (v.Key == nil || *v.Key == "") {
		return fmt.Errorf("value %s: color key is required for COLOR features", v.ID)
	}
	return nil
}

// GroupProduct is an explicit stock/price override for one exact feature
// combination. Its bind is keyed by feature name and value text, not ids, and
// takes precedence over per-value aggregation when the combination matches.
type GroupProduct struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string    `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	ProductID uuid.UUID `json:"productId" gorm:"type:uuid;not null;index:idx_group_products_lookup"`

	Bind    datatypes.JSON `json:"bind" gorm:"type:jsonb;not null"`
	BindKey string         `json:"bindKey" gorm:"type:varchar(1024);not null;index:idx_group_products_lookup"`

	Stock           int     `json:"stock" gorm:"not null;default:0"`
	AdditionalPrice float64 `json:"additionalPrice" gorm:"default:0"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (GroupProduct) TableName() string {
	return "group_products"
}

// BeforeSave derives the canonical bind key from the stored name/text bind so
// lookups never compare raw JSON.
func (g *GroupProduct) BeforeSave(tx *gorm.DB) error {
	pairs, err := DecodeBindPairs(g.Bind)
	if err != nil {
		return fmt.Errorf("group product %s: invalid bind: %w", g.ID, err)
	}
	g.BindKey = CanonicalPairKey(pairs)
	return nil
}

// Product is the read model supplied by products-service; it is not persisted
// by this service.
type Product struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name,omitempty"`
	Price    float64   `json:"price"`
	Currency string    `json:"currency"`
}
