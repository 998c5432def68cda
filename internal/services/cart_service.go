package services

import (
	"context"
	"fmt"
	"time"

	"cart-service/internal/clients"
	"cart-service/internal/events"
	"cart-service/internal/models"
	"cart-service/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CartIdentity identifies whose cart a request targets: an authenticated user
// or a client-held guest cart id. Both nil means "create a guest cart lazily".
type CartIdentity struct {
	UserID      *uuid.UUID
	GuestCartID *uuid.UUID
}

// CartService applies quantity mutations to a cart with transactional,
// stock-aware semantics and serves cart reads with recomputed totals.
type CartService interface {
	Apply(ctx context.Context, tenantID string, identity CartIdentity, req models.MutationRequest) (*models.MutationResult, error)
	GetCart(ctx context.Context, tenantID string, identity CartIdentity) (*models.CartView, error)
	ClearCart(ctx context.Context, tenantID string, identity CartIdentity) (*models.CartView, error)
	CartViewBuilder
}

// CartViewBuilder rebuilds a cart view with freshly resolved prices. Totals
// are always recomputed from the current catalog, never from stored snapshots.
type CartViewBuilder interface {
	BuildCartView(ctx context.Context, tenantID string, cart *models.Cart, items []models.CartItem) (*models.CartView, error)
}

// nowFunc is replaced in tests to pin expiry checks
var nowFunc = time.Now

type cartService struct {
	carts     repository.CartRepositoryInterface
	resolver  BindResolver
	products  clients.ProductsClient
	publisher *events.Publisher
	logger    *logrus.Entry
}

func NewCartService(
	carts repository.CartRepositoryInterface,
	resolver BindResolver,
	products clients.ProductsClient,
	publisher *events.Publisher,
	logger *logrus.Logger,
) CartService {
	return &cartService{
		carts:     carts,
		resolver:  resolver,
		products:  products,
		publisher: publisher,
		logger:    logger.WithField("component", "cart-service"),
	}
}

// Apply runs one mutation: resolve the option, locate and lock the cart item,
// compute the new quantity for the requested mode, validate it against the
// stock ceiling and persist — all inside a single transaction. Quantity 0
// always means the item is deleted, never stored.
func (s *cartService) Apply(ctx context.Context, tenantID string, identity CartIdentity, req models.MutationRequest) (*models.MutationResult, error) {
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("unsupported mutation mode %q", req.Mode)
	}
	value := req.Quantity()
	if req.Mode.RequiresPositiveValue() && value <= 0 {
		return nil, fmt.Errorf("mode %s requires a positive value, got %d", req.Mode, value)
	}
	if req.Mode == models.ModeSet && value < 0 {
		return nil, fmt.Errorf("mode SET requires a non-negative value, got %d", value)
	}

	product, err := s.products.GetProduct(req.ProductID.String(), tenantID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, models.NewNotFoundError("product", req.ProductID.String())
	}

	var (
		cart   *models.Cart
		items  []models.CartItem
		action models.CartAction
		saved  *models.CartItem
	)

	err = s.carts.Transaction(ctx, func(tx repository.CartTxInterface) error {
		c, err := s.cartForWrite(ctx, tx, tenantID, identity)
		if err != nil {
			return err
		}
		// Serializes concurrent first-item creation for the same (product, bind)
		if err := tx.LockCart(ctx, c.ID); err != nil {
			return err
		}

		option, err := s.resolver.Resolve(ctx, tenantID, req.ProductID, req.Bind)
		if err != nil {
			return err
		}

		item, err := tx.FindItemForUpdate(ctx, c.ID, req.ProductID, option.BindKey)
		if err != nil {
			return err
		}

		current := 0
		if item != nil {
			current = item.Quantity
		}

		newQuantity, err := nextQuantity(req.Mode, current, value, option)
		if err != nil {
			return err
		}

		if req.Mode.ChecksStock() && !req.IgnoreStock && !option.ContinueSelling &&
			option.HasStockCeiling() && newQuantity > *option.Stock {
			return &models.StockExceededError{Requested: newQuantity, Available: *option.Stock}
		}

		action, saved, err = persistQuantity(ctx, tx, tenantID, c, item, req.ProductID, option, newQuantity)
		if err != nil {
			return err
		}

		items, err = tx.ListItems(ctx, c.ID)
		if err != nil {
			return err
		}
		cart = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	view, err := s.BuildCartView(ctx, tenantID, cart, items)
	if err != nil {
		return nil, err
	}

	result := &models.MutationResult{
		Cart:   view,
		Action: action,
	}
	if saved != nil {
		for i := range view.Items {
			if view.Items[i].ID == saved.ID {
				result.Item = &view.Items[i]
				break
			}
		}
	}

	if s.publisher != nil && action != models.ActionUnchanged {
		if err := s.publisher.PublishCartMutated(ctx, tenantID, cart.ID, req.ProductID, action); err != nil {
			s.logger.WithError(err).Warn("Failed to publish cart mutation event")
		}
	}

	return result, nil
}

// GetCart returns the identified cart with items and a freshly computed total.
func (s *cartService) GetCart(ctx context.Context, tenantID string, identity CartIdentity) (*models.CartView, error) {
	cart, err := s.lookupCart(ctx, tenantID, identity)
	if err != nil {
		return nil, err
	}
	items, err := s.carts.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	return s.BuildCartView(ctx, tenantID, cart, items)
}

// ClearCart removes every item from the identified cart.
func (s *cartService) ClearCart(ctx context.Context, tenantID string, identity CartIdentity) (*models.CartView, error) {
	var cart *models.Cart
	err := s.carts.Transaction(ctx, func(tx repository.CartTxInterface) error {
		c, err := s.lookupCartTx(ctx, tx, tenantID, identity)
		if err != nil {
			return err
		}
		if err := tx.LockCart(ctx, c.ID); err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, c.ID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := tx.DeleteItem(ctx, item.ID); err != nil {
				return err
			}
		}
		cart = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishCartCleared(ctx, tenantID, cart.ID); err != nil {
			s.logger.WithError(err).Warn("Failed to publish cart cleared event")
		}
	}

	return s.BuildCartView(ctx, tenantID, cart, nil)
}

// BuildCartView re-resolves every item's option so totals reflect current
// prices even when a value's additional price drifted after the item was added.
func (s *cartService) BuildCartView(ctx context.Context, tenantID string, cart *models.Cart, items []models.CartItem) (*models.CartView, error) {
	view := &models.CartView{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Guest:     cart.IsGuest(),
		ExpiresAt: cart.ExpiresAt,
		Items:     make([]models.CartItemView, 0, len(items)),
	}

	// Degradation policy: a line whose product vanished from products-service
	// is dropped from the view, and a line whose option no longer resolves is
	// priced at base price. Both are logged; failing the whole read over one
	// stale line would make the cart unreadable exactly when the catalog is
	// being edited.
	productCache := make(map[uuid.UUID]*models.Product)
	for _, item := range items {
		product, ok := productCache[item.ProductID]
		if !ok {
			var err error
			product, err = s.products.GetProduct(item.ProductID.String(), tenantID)
			if err != nil {
				return nil, err
			}
			productCache[item.ProductID] = product
		}
		if product == nil {
			s.logger.WithField("productId", item.ProductID).Warn("Cart item references missing product, skipping line")
			continue
		}

		additional := 0.0
		bindPairs, err := models.DecodeBindPairs(item.Bind)
		if err == nil {
			option, rerr := s.resolver.Resolve(ctx, tenantID, item.ProductID, models.Bind(bindPairs))
			if rerr == nil {
				additional = option.AdditionalPrice
			} else {
				s.logger.WithError(rerr).WithField("itemId", item.ID).Warn("Failed to re-resolve item option, pricing without additional price")
			}
		}

		unit := product.Price + additional
		line := models.CartItemView{
			ID:              item.ID,
			ProductID:       item.ProductID,
			Bind:            models.Bind(bindPairs),
			Quantity:        item.Quantity,
			UnitPrice:       unit,
			AdditionalPrice: additional,
			LineTotal:       float64(item.Quantity) * unit,
		}
		view.Items = append(view.Items, line)
		view.Total += line.LineTotal
		if view.Currency == "" {
			view.Currency = product.Currency
		}
	}

	return view, nil
}

// cartForWrite loads the target cart, creating it lazily: user carts on first
// mutation, guest carts when no identity was supplied at all.
func (s *cartService) cartForWrite(ctx context.Context, tx repository.CartTxInterface, tenantID string, identity CartIdentity) (*models.Cart, error) {
	switch {
	case identity.UserID != nil:
		return tx.FindOrCreateUserCart(ctx, tenantID, *identity.UserID)
	case identity.GuestCartID != nil:
		return s.guestCart(ctx, tx, tenantID, *identity.GuestCartID)
	default:
		return tx.CreateGuestCart(ctx, tenantID)
	}
}

// lookupCart is the read-path variant: nothing is created.
func (s *cartService) lookupCart(ctx context.Context, tenantID string, identity CartIdentity) (*models.Cart, error) {
	return s.lookupCartTx(ctx, s.carts, tenantID, identity)
}

func (s *cartService) lookupCartTx(ctx context.Context, tx repository.CartTxInterface, tenantID string, identity CartIdentity) (*models.Cart, error) {
	switch {
	case identity.UserID != nil:
		cart, err := tx.FindUserCart(ctx, tenantID, *identity.UserID)
		if err != nil {
			return nil, err
		}
		if cart == nil {
			return nil, models.NewNotFoundError("cart", "")
		}
		return cart, nil
	case identity.GuestCartID != nil:
		return s.guestCart(ctx, tx, tenantID, *identity.GuestCartID)
	default:
		return nil, models.NewNotFoundError("cart", "")
	}
}

// guestCart enforces the ownership check: a cart that belongs to a user is
// "not found" when addressed as a guest cart. Expired guest carts are purged
// lazily here.
func (s *cartService) guestCart(ctx context.Context, tx repository.CartTxInterface, tenantID string, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := tx.GetCart(ctx, tenantID, cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil || !cart.IsGuest() {
		return nil, models.NewNotFoundError("guest cart", cartID.String())
	}
	if cart.Expired(nowFunc()) {
		if err := tx.DeleteCart(ctx, cart.ID); err != nil {
			return nil, err
		}
		return nil, models.NewNotFoundError("guest cart", cartID.String())
	}
	return cart, nil
}

// nextQuantity is the mode state machine over one item's quantity.
func nextQuantity(mode models.MutationMode, current, value int, option *models.Option) (int, error) {
	switch mode {
	case models.ModeIncrement:
		return current + value, nil
	case models.ModeDecrement:
		if current < value {
			return 0, &models.InsufficientQuantityError{Current: current, Requested: value}
		}
		return current - value, nil
	case models.ModeSet:
		return value, nil
	case models.ModeClear:
		return 0, nil
	case models.ModeMax:
		if !option.HasStockCeiling() {
			return 0, models.ErrUndefinedMaxStock
		}
		return *option.Stock, nil
	default:
		return 0, fmt.Errorf("unsupported mutation mode %q", mode)
	}
}

// persistQuantity applies the computed quantity: create, update, delete or
// leave untouched, returning the action taken and the surviving item.
func persistQuantity(
	ctx context.Context,
	tx repository.CartTxInterface,
	tenantID string,
	cart *models.Cart,
	item *models.CartItem,
	productID uuid.UUID,
	option *models.Option,
	newQuantity int,
) (models.CartAction, *models.CartItem, error) {
	if newQuantity == 0 {
		if item == nil {
			return models.ActionUnchanged, nil, nil
		}
		if err := tx.DeleteItem(ctx, item.ID); err != nil {
			return "", nil, err
		}
		return models.ActionRemoved, nil, nil
	}

	if item == nil {
		bindJSON, err := option.Bind.ToJSON()
		if err != nil {
			return "", nil, err
		}
		item = &models.CartItem{
			TenantID:  tenantID,
			CartID:    cart.ID,
			ProductID: productID,
			Bind:      bindJSON,
			BindKey:   option.BindKey,
			Quantity:  newQuantity,
		}
		if err := tx.SaveItem(ctx, item); err != nil {
			return "", nil, err
		}
		return models.ActionAdded, item, nil
	}

	if item.Quantity == newQuantity {
		return models.ActionUnchanged, item, nil
	}

	item.Quantity = newQuantity
	if err := tx.SaveItem(ctx, item); err != nil {
		return "", nil, err
	}
	return models.ActionUpdated, item, nil
}
