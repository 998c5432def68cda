package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// The error types below are the recoverable failure conditions of the cart
// core. Callers are expected to branch on them with errors.As/errors.Is and
// map them to user-facing responses; anything else is treated as an internal
// failure and rolls the surrounding transaction back.

// ErrUndefinedMaxStock is returned for MAX mode when the resolved option has
// no finite stock ceiling. Continue-selling does not help: it permits
// exceeding a ceiling, it does not define one.
var ErrUndefinedMaxStock = errors.New("max quantity requested but option has no stock ceiling")

// ErrNotAGuestCart is returned when a merge targets a cart that already has an owner.
var ErrNotAGuestCart = errors.New("cart already belongs to a user")

// NotFoundError marks a missing product, feature, value, cart or cart item.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NewNotFoundError builds a NotFoundError for the given resource/id.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// InvalidBindError marks a bind entry that references a value not owned by
// its feature, or that fails the feature's validation rules.
type InvalidBindError struct {
	FeatureID uuid.UUID
	Value     string
	Reason    string
}

func (e *InvalidBindError) Error() string {
	return fmt.Sprintf("invalid bind for feature %s (value %q): %s", e.FeatureID, e.Value, e.Reason)
}

// InsufficientQuantityError marks a decrement beyond the current quantity.
type InsufficientQuantityError struct {
	Current   int
	Requested int
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("cannot decrement by %d: only %d in cart", e.Requested, e.Current)
}

// StockExceededError marks a resulting quantity above the option's stock
// ceiling. Requested/Available are surfaced so clients can offer remediation.
type StockExceededError struct {
	Requested int
	Available int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("requested quantity %d exceeds available stock %d", e.Requested, e.Available)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
