package services

import (
	"context"

	"cart-service/internal/events"
	"cart-service/internal/models"
	"cart-service/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// GuestMergeService folds a guest cart into the authenticated user's cart at
// login. Merging an already-merged (deleted) guest cart is a no-op success.
type GuestMergeService interface {
	Merge(ctx context.Context, tenantID string, userID, guestCartID uuid.UUID) (*models.CartView, error)
}

type guestMergeService struct {
	carts     repository.CartRepositoryInterface
	resolver  BindResolver
	views     CartViewBuilder
	publisher *events.Publisher
	logger    *logrus.Entry
}

func NewGuestMergeService(
	carts repository.CartRepositoryInterface,
	resolver BindResolver,
	views CartViewBuilder,
	publisher *events.Publisher,
	logger *logrus.Logger,
) GuestMergeService {
	return &guestMergeService{
		carts:     carts,
		resolver:  resolver,
		views:     views,
		publisher: publisher,
		logger:    logger.WithField("component", "guest-merge"),
	}
}

// Merge reconciles the guest cart into the user's cart inside one
// transaction: bind-equal items have their quantities summed (clamped to the
// re-resolved stock ceiling), everything else is re-parented, and the guest
// cart is deleted only after all of its items have been handled.
func (s *guestMergeService) Merge(ctx context.Context, tenantID string, userID, guestCartID uuid.UUID) (*models.CartView, error) {
	var (
		userCart *models.Cart
		items    []models.CartItem
		merged   bool
	)

	err := s.carts.Transaction(ctx, func(tx repository.CartTxInterface) error {
		guest, err := tx.GetCart(ctx, tenantID, guestCartID)
		if err != nil {
			return err
		}
		if guest != nil && !guest.IsGuest() {
			return models.ErrNotAGuestCart
		}

		userCart, err = tx.FindOrCreateUserCart(ctx, tenantID, userID)
		if err != nil {
			return err
		}

		// Absent or already-merged guest cart: nothing to merge
		if guest == nil || guest.Expired(nowFunc()) {
			if guest != nil {
				if err := tx.DeleteCart(ctx, guest.ID); err != nil {
					return err
				}
			}
			items, err = tx.ListItems(ctx, userCart.ID)
			return err
		}

		if err := tx.LockCart(ctx, userCart.ID); err != nil {
			return err
		}
		// The guest cart must be locked too: a concurrent mutation addressed
		// to it could insert an item between the listing below and DeleteCart,
		// and that item would be destroyed unseen.
		if err := tx.LockCart(ctx, guest.ID); err != nil {
			return err
		}

		guestItems, err := tx.ListItems(ctx, guest.ID)
		if err != nil {
			return err
		}

		for _, guestItem := range guestItems {
			if err := s.mergeItem(ctx, tx, tenantID, userCart, guestItem); err != nil {
				return err
			}
		}

		// All items merged or re-parented; only now may the guest cart go
		if err := tx.DeleteCart(ctx, guest.ID); err != nil {
			return err
		}
		merged = len(guestItems) > 0

		items, err = tx.ListItems(ctx, userCart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if merged && s.publisher != nil {
		if err := s.publisher.PublishCartMerged(ctx, tenantID, userCart.ID, guestCartID); err != nil {
			s.logger.WithError(err).Warn("Failed to publish cart merged event")
		}
	}

	return s.views.BuildCartView(ctx, tenantID, userCart, items)
}

// mergeItem folds one guest item into the user cart. Identity is decided by
// canonical bind comparison, recomputed from the stored bind rather than
// trusting the persisted key.
func (s *guestMergeService) mergeItem(ctx context.Context, tx repository.CartTxInterface, tenantID string, userCart *models.Cart, guestItem models.CartItem) error {
	bindKey, err := models.BindKeyFromJSON(guestItem.Bind)
	if err != nil {
		s.logger.WithError(err).WithField("itemId", guestItem.ID).Warn("Guest item carries unreadable bind, using stored key")
		bindKey = guestItem.BindKey
	}

	existing, err := tx.FindItemForUpdate(ctx, userCart.ID, guestItem.ProductID, bindKey)
	if err != nil {
		return err
	}

	if existing == nil {
		return tx.ReassignItem(ctx, guestItem.ID, userCart.ID, bindKey)
	}

	quantity := s.clampedSum(ctx, tenantID, existing, &guestItem)
	existing.Quantity = quantity
	if err := tx.SaveItem(ctx, existing); err != nil {
		return err
	}
	return tx.DeleteItem(ctx, guestItem.ID)
}

// clampedSum sums the two quantities and caps the result at the currently
// resolved stock ceiling, never reducing below what the user already had.
// When the option cannot be re-resolved (catalog drifted), the plain sum is
// kept rather than failing the whole login-time merge.
func (s *guestMergeService) clampedSum(ctx context.Context, tenantID string, userItem, guestItem *models.CartItem) int {
	sum := userItem.Quantity + guestItem.Quantity

	bindPairs, err := models.DecodeBindPairs(guestItem.Bind)
	if err != nil {
		return sum
	}
	option, err := s.resolver.Resolve(ctx, tenantID, guestItem.ProductID, models.Bind(bindPairs))
	if err != nil {
		s.logger.WithError(err).WithField("itemId", guestItem.ID).Warn("Could not re-resolve option during merge, keeping summed quantity")
		return sum
	}
	if option.ContinueSelling || !option.HasStockCeiling() || sum <= *option.Stock {
		return sum
	}

	ceiling := *option.Stock
	if ceiling < userItem.Quantity {
		return userItem.Quantity
	}
	return ceiling
}
