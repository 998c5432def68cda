package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"cart-service/internal/models"
	"cart-service/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockCartRepository is a mock implementation of CartRepositoryInterface
type MockCartRepository struct {
	mock.Mock
}

var _ repository.CartRepositoryInterface = (*MockCartRepository)(nil)

// Transaction runs fn against the mock itself so call expectations set on the
// repository also cover calls made inside the transactional closure.
func (m *MockCartRepository) Transaction(ctx context.Context, fn func(tx repository.CartTxInterface) error) error {
	return fn(m)
}

func (m *MockCartRepository) GetCart(ctx context.Context, tenantID string, cartID uuid.UUID) (*models.Cart, error) {
	args := m.Called(ctx, tenantID, cartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartRepository) FindUserCart(ctx context.Context, tenantID string, userID uuid.UUID) (*models.Cart, error) {
	args := m.Called(ctx, tenantID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartRepository) FindOrCreateUserCart(ctx context.Context, tenantID string, userID uuid.UUID) (*models.Cart, error) {
	args := m.Called(ctx, tenantID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartRepository) CreateGuestCart(ctx context.Context, tenantID string) (*models.Cart, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartRepository) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

func (m *MockCartRepository) LockCart(ctx context.Context, cartID uuid.UUID) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

func (m *MockCartRepository) FindItemForUpdate(ctx context.Context, cartID, productID uuid.UUID, bindKey string) (*models.CartItem, error) {
	args := m.Called(ctx, cartID, productID, bindKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartItem), args.Error(1)
}

func (m *MockCartRepository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	args := m.Called(ctx, cartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CartItem), args.Error(1)
}

func (m *MockCartRepository) SaveItem(ctx context.Context, item *models.CartItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockCartRepository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

func (m *MockCartRepository) ReassignItem(ctx context.Context, itemID, cartID uuid.UUID, bindKey string) error {
	args := m.Called(ctx, itemID, cartID, bindKey)
	return args.Error(0)
}

// MockBindResolver is a mock implementation of BindResolver
type MockBindResolver struct {
	mock.Mock
}

var _ BindResolver = (*MockBindResolver)(nil)

func (m *MockBindResolver) Resolve(ctx context.Context, tenantID string, productID uuid.UUID, bind models.Bind) (*models.Option, error) {
	args := m.Called(ctx, tenantID, productID, bind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Option), args.Error(1)
}

// MockProductsClient is a mock implementation of clients.ProductsClient
type MockProductsClient struct {
	mock.Mock
}

func (m *MockProductsClient) GetProduct(productID string, tenantID string) (*models.Product, error) {
	args := m.Called(productID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

type cartFixture struct {
	repo     *MockCartRepository
	resolver *MockBindResolver
	products *MockProductsClient
	service  CartService
}

func newCartFixture() *cartFixture {
	repo := new(MockCartRepository)
	resolver := new(MockBindResolver)
	products := new(MockProductsClient)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return &cartFixture{
		repo:     repo,
		resolver: resolver,
		products: products,
		service:  NewCartService(repo, resolver, products, nil, logger),
	}
}

// optionWith builds a resolved single-value option with the given ceiling
func optionWith(stock *int, additional float64) *models.Option {
	featureID := uuid.New()
	valueID := uuid.New()
	bind := models.NormalizedBind{{FeatureID: featureID, ValueID: &valueID}}
	return &models.Option{
		AdditionalPrice: additional,
		Stock:           stock,
		Bind:            bind,
		BindKey:         bind.CanonicalKey(),
	}
}

func TestApplyIncrementCreatesItem(t *testing.T) {
	f := newCartFixture()
	userID := uuid.New()
	productID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), TenantID: testTenant, UserID: &userID}
	option := optionWith(intPtr(10), 1.5)
	bindJSON, err := option.Bind.ToJSON()
	assert.NoError(t, err)
	itemID := uuid.New()

	f.products.On("GetProduct", productID.String(), testTenant).Return(&models.Product{ID: productID, Price: 20, Currency: "USD"}, nil)
	f.repo.On("FindOrCreateUserCart", mock.Anything, testTenant, userID).Return(cart, nil)
	f.repo.On("LockCart", mock.Anything, cart.ID).Return(nil)
	f.resolver.On("Resolve", mock.Anything, testTenant, productID, mock.Anything).Return(option, nil)
	f.repo.On("FindItemForUpdate", mock.Anything, cart.ID, productID, option.BindKey).Return(nil, nil)
	f.repo.On("SaveItem", mock.Anything, mock.AnythingOfType("*models.CartItem")).Run(func(args mock.Arguments) {
		item := args.Get(1).(*models.CartItem)
		item.ID = itemID
		assert.Equal(t, 2, item.Quantity)
	}).Return(nil)
	f.repo.On("ListItems", mock.Anything, cart.ID).Return([]models.CartItem{
		{ID: itemID, CartID: cart.ID, ProductID: productID, Bind: bindJSON, BindKey: option.BindKey, Quantity: 2},
	}, nil)

	two := 2
	result, err := f.service.Apply(context.Background(), testTenant, CartIdentity{UserID: &userID},
		models.MutationRequest{ProductID: productID, Mode: models.ModeIncrement, Value: &two})

	assert.NoError(t, err)
	assert.Equal(t, models.ActionAdded, result.Action)
	assert.NotNil(t, result.Item)
	assert.Equal(t, 2, result.Item.Quantity)
	assert.InDelta(t, 2*(20+1.5), result.Cart.Total, 1e-9)
	assert.Equal(t, "USD", result.Cart.Currency)
}

func TestApplyDecrementBelowCurrentFails(t *testing.T) {
	f := newCartFixture()
	userID := uuid.New()
	productID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), TenantID: testTenant, UserID: &userID}
	option := optionWith(nil, 0)

	f.products.On("GetProduct", productID.String(), testTenant).Return(&models.Product{ID: productID, Price: 10}, nil)
	f.repo.On("FindOrCreateUserCart", mock.Anything, testTenant, userID).Return(cart, nil)
	f.repo.On("LockCart", mock.Anything, cart.ID).Return(nil)
	f.resolver.On("Resolve", mock.Anything, testTenant, productID, mock.Anything).Return(option, nil)
	f.repo.On("FindItemForUpdate", mock.Anything, cart.ID, productID, option.BindKey).
		Return(&models.CartItem{ID: uuid.New(), CartID: cart.ID, ProductID: productID, Quantity: 3}, nil)

	five := 5
	_, err := f.service.Apply(context.Background(), testTenant, CartIdentity{UserID: &userID},
		models.MutationRequest{ProductID: productID, Mode: models.ModeDecrement, Value: &five})

	var insufficient *models.InsufficientQuantityError
	assert.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 3, insufficient.Current)
	assert.Equal(t, 5, insufficient.Requested)
	f.repo.AssertNotCalled(t, "SaveItem", mock.Anything, mock.Anything)
}

func TestApplySetZeroRemovesItem(t *testing.T) {
	f := newCartFixture()
	userID := uuid.New()
	productID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), TenantID: testTenant, UserID: &userID}
	option := optionWith(intPtr(10), 0)
	itemID := uuid.New()

	f.products.On("GetProduct", productID.String(), testTenant).Return(&models.Product{ID: productID, Price: 10}, nil)
	f.repo.On("FindOrCreateUserCart", mock.Anything, testTenant, userID).Return(cart, nil)
	f.repo.On("LockCart", mock.Anything, cart.ID).Return(nil)
	f.resolver.On("Resolve", mock.Anything, testTenant, productID, mock.Anything).Return(option, nil)
	f.repo.On("FindItemForUpdate", mock.Anything, cart.ID, productID, option.BindKey).
		Return(&models.CartItem{ID: itemID, CartID: cart.ID, ProductID: productID, Quantity: 3}, nil)
	f.repo.On("DeleteItem", mock.Anything, itemID).Return(nil)
	f.repo.On("ListItems", mock.Anything, cart.ID).Return([]models.CartItem{}, nil)

	zero := 0
	result, err := f.service.Apply(context.Background(), testTenant, CartIdentity{UserID: &userID},
		models.MutationRequest{ProductID: productID, Mode: models.ModeSet, Value: &zero})

	assert.NoError(t, err)
	assert.Equal(t, models.ActionRemoved, result.Action)
	assert.Nil(t, result.Item)
	assert.Empty(t, result.Cart.Items)
	f.repo.AssertCalled(t, "DeleteItem", mock.Anything, itemID)
}

func TestApplyMaxSetsQuantityToCeiling(t *testing.T) {
	f := newCartFixture()
	userID := uuid.New()
	productID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), TenantID: testTenant, UserID: &userID}
	option := optionWith(intPtr(7), 0)
	bindJSON, _ := option.Bind.ToJSON()
	itemID := uuid.New()

	f.products.On("GetProduct", productID.String(), testTenant).Return(&models.Product{ID: productID, Price: 10}, nil)
	f.repo.On("FindOrCreateUserCart", mock.Anything, testTenant, userID).Return(cart, nil)
	f.repo.On("LockCart", mock.Anything, cart.ID).Return(nil)
	f.resolver.On("Resolve", mock.Anything, testTenant, productID, mock.Anything).Return(option, nil)
	f.repo.On("FindItemForUpdate", mock.Anything, cart.ID, productID, option.BindKey).Return(nil, nil)
	f.repo.On("SaveItem", mock.Anything, mock.AnythingOfType("*models.CartItem")).Run(func(args mock.Arguments) {
		item := args.Get(1).(*models.CartItem)
		item.ID = itemID
		assert.Equal(t, 7, item.Quantity)
	}).Return(nil)
	f.repo.On("ListItems", mock.Anything, cart.ID).Return([]models.CartItem{
		{ID: itemID, CartID: cart.ID, ProductID: productID, Bind: bindJSON, BindKey: option.BindKey, Quantity: 7},
	}, nil)

	result, err := f.service.Apply(context.Background(), testTenant, CartIdentity{UserID: &userID},
		models.MutationRequest{ProductID: productID, Mode: models.ModeMax})

	assert.NoError(t, err)
	assert.Equal(t, models.ActionAdded, result.Action)
	assert.Equal(t, 7, result.Item.Quantity)
}

func TestApplyMaxWithoutCeilingFails(t *testing.T) {
	f := newCartFixture()
	userID := uuid.New()
	productID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), TenantID: testTenant, UserID: &userID}
	option := optionWith(nil, 0)

	f.products.On("GetProduct", productID.String(), testTenant).Return(&models.Product{ID: productID, Price: 10}, nil)
	f.repo.On("FindOrCreateUserCart", mock.Anything, testTenant, userID).Return(cart, nil)
	f.repo.On("LockCart", mock.Anything, cart.ID).Return(nil)
	f.resolver.On("Resolve", mock.Anything, testTenant, productID, mock.Anything).Return(option, nil)
	f.repo.On("FindItemForUpdate", mock.Anything, cart.ID, productID, option.BindKey).Return(nil, nil)

	_, err := f.service.Apply(context.Background(), testTenant, CartIdentity{UserID: &userID},
		models.MutationRequest{ProductID: productID, Mode: models.ModeMax})

	assert.ErrorIs(t, err, models.ErrUndefinedMaxStock)
}

func TestApplyMaxUndefinedEvenWithContinueSelling(t *testing.T) {
	f := newCartFixture()
	userID := uuid.New()
	productID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), TenantID: testTenant, UserID: &userID}
	// continue_selling permits exceeding a ceiling but never defines one
	option := optionWith(nil, 0)
	option.ContinueSelling = true

	f.products.On("GetProduct", productID.String(), testTenant).Return(&models.Product{ID: productID, Price: 10}, nil)
	f.repo.On("FindOrCreateUserCart", mock.Anything, testTenant, userID).Return(cart, nil)
	f.repo.On("LockCart", mock.Anything, cart.ID).Return(nil)
	f.resolver.On("Resolve", mock.Anything, testTenant, productID, mock.Anything).Return(option, nil)
	f.repo.On("FindItemForUpdate", mock.Anything, cart.ID, productID, option.BindKey).Return(nil, nil)

	_, err := f.service.Apply(context.Background(), testTenant, CartIdentity{UserID: &userID},
		models.MutationRequest{ProductID: productID, Mode: models.ModeMax})

	assert.ErrorIs(t, err, models.ErrUndefinedMaxStock)
	f.repo.AssertNotCalled(t, "SaveItem", mock.Anything, mock.Anything)
}

func TestApplyRejectsQuantityBeyondStock(t *testing.T) {
	f := newCartFixture()
	userID := uuid.New()
	productID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), TenantID: testTenant, UserID: &userID}
	option := optionWith(intPtr(5), 0)

	f.products.On("GetProduct", productID.String(), testTenant).Return(&models.Product{ID: productID, Price: 10}, nil)
	f.repo.On("FindOrCreateUserCart", mock.Anything, testTenant, userID).Return(cart, nil)
	f.repo.On("LockCart", mock.Anything, cart.ID).Return(nil)
	f.resolver.On("Resolve", mock.Anything, testTenant, productID, mock.Anything).Return(option, nil)
	f.repo.On("FindItemForUpdate", mock.Anything, cart.ID, productID, option.BindKey).Return(nil, nil)

	ten := 10
	_, err := f.service.Apply(context.Background(), testTenant, CartIdentity{UserID: &userID},
		models.MutationRequest{ProductID: productID, Mode: models.ModeIncrement, Value: &ten})

	var exceeded *models.StockExceededError
	assert.True(t, errors.As(err, &exceeded))
	assert.Equal(t, 10, exceeded.Requested)
	assert.Equal(t, 5, exceeded.Available)
	f.repo.AssertNotCalled(t, "SaveItem", mock.Anything, mock.Anything)
}

func TestApplyIgnoreStockBypassesCeiling(t *testing.T) {
	f := newCartFixture()
	userID := uuid.New()
	productID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), TenantID: testTenant, UserID: &userID}
	option := optionWith(intPtr(5), 0)
	bindJSON, _ := option.Bind.ToJSON()
	itemID := uuid.New()

	f.products.On("GetProduct", productID.String(), testTenant).Return(&models.Product{ID: productID, Price: 10}, nil)
	f.repo.On("FindOrCreateUserCart", mock.Anything, testTenant, userID).Return(cart, nil)
	f.repo.On("LockCart", mock.Anything, cart.ID).Return(nil)
	f.resolver.On("Resolve", mock.Anything, testTenant, productID, mock.Anything).Return(option, nil)
	f.repo.On("FindItemForUpdate", mock.Anything, cart.ID, productID, option.BindKey).Return(nil, nil)
	f.repo.On("SaveItem", mock.Anything, mock.AnythingOfType("*models.CartItem")).Run(func(args mock.Arguments) {
		args.Get(1).(*models.CartItem).ID = itemID
	}).Return(nil)
	f.repo.On("ListItems", mock.Anything, cart.ID).Return([]models.CartItem{
		{ID: itemID, CartID: cart.ID, ProductID: productID, Bind: bindJSON, BindKey: option.BindKey, Quantity: 10},
	}, nil)

	ten := 10
	result, err := f.service.Apply(context.Background(), testTenant, CartIdentity{UserID: &userID},
		models.MutationRequest{ProductID: productID, Mode: models.ModeIncrement, Value: &ten, IgnoreStock: true})

	assert.NoError(t, err)
	assert.Equal(t, models.ActionAdded, result.Action)
	assert.Equal(t, 10, result.Item.Quantity)
}

func TestApplyClearOnAbsentItemIsUnchanged(t *testing.T) {
	f := newCartFixture()
	userID := uuid.New()
	productID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), TenantID: testTenant, UserID: &userID}
	option := optionWith(intPtr(5), 0)

	f.products.On("GetProduct", productID.String(), testTenant).Return(&models.Product{ID: productID, Price: 10}, nil)
	f.repo.On("FindOrCreateUserCart", mock.Anything, testTenant, userID).Return(cart, nil)
	f.repo.On("LockCart", mock.Anything, cart.ID).Return(nil)
	f.resolver.On("Resolve", mock.Anything, testTenant, productID, mock.Anything).Return(option, nil)
	f.repo.On("FindItemForUpdate", mock.Anything, cart.ID, productID, option.BindKey).Return(nil, nil)
	f.repo.On("ListItems", mock.Anything, cart.ID).Return([]models.CartItem{}, nil)

	result, err := f.service.Apply(context.Background(), testTenant, CartIdentity{UserID: &userID},
		models.MutationRequest{ProductID: productID, Mode: models.ModeClear})

	assert.NoError(t, err)
	assert.Equal(t, models.ActionUnchanged, result.Action)
	f.repo.AssertNotCalled(t, "SaveItem", mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "DeleteItem", mock.Anything, mock.Anything)
}

func TestApplyCreatesGuestCartWhenNoIdentity(t *testing.T) {
	f := newCartFixture()
	productID := uuid.New()
	expiresAt := time.Now().Add(models.GuestCartTTL)
	cart := &models.Cart{ID: uuid.New(), TenantID: testTenant, ExpiresAt: &expiresAt}
	option := optionWith(nil, 0)
	bindJSON, _ := option.Bind.ToJSON()
	itemID := uuid.New()

	f.products.On("GetProduct", productID.String(), testTenant).Return(&models.Product{ID: productID, Price: 10}, nil)
	f.repo.On("CreateGuestCart", mock.Anything, testTenant).Return(cart, nil)
	f.repo.On("LockCart", mock.Anything, cart.ID).Return(nil)
	f.resolver.On("Resolve", mock.Anything, testTenant, productID, mock.Anything).Return(option, nil)
	f.repo.On("FindItemForUpdate", mock.Anything, cart.ID, productID, option.BindKey).Return(nil, nil)
	f.repo.On("SaveItem", mock.Anything, mock.AnythingOfType("*models.CartItem")).Run(func(args mock.Arguments) {
		args.Get(1).(*models.CartItem).ID = itemID
	}).Return(nil)
	f.repo.On("ListItems", mock.Anything, cart.ID).Return([]models.CartItem{
		{ID: itemID, CartID: cart.ID, ProductID: productID, Bind: bindJSON, BindKey: option.BindKey, Quantity: 1},
	}, nil)

	result, err := f.service.Apply(context.Background(), testTenant, CartIdentity{},
		models.MutationRequest{ProductID: productID, Mode: models.ModeIncrement})

	assert.NoError(t, err)
	assert.True(t, result.Cart.Guest)
	f.repo.AssertCalled(t, "CreateGuestCart", mock.Anything, testTenant)
}

func TestApplyGuestCartOwnershipEnforced(t *testing.T) {
	f := newCartFixture()
	productID := uuid.New()
	ownerID := uuid.New()
	guestCartID := uuid.New()
	// Cart belongs to a user but is addressed as a guest cart
	cart := &models.Cart{ID: guestCartID, TenantID: testTenant, UserID: &ownerID}

	f.products.On("GetProduct", productID.String(), testTenant).Return(&models.Product{ID: productID, Price: 10}, nil)
	f.repo.On("GetCart", mock.Anything, testTenant, guestCartID).Return(cart, nil)

	_, err := f.service.Apply(context.Background(), testTenant, CartIdentity{GuestCartID: &guestCartID},
		models.MutationRequest{ProductID: productID, Mode: models.ModeIncrement})

	assert.True(t, models.IsNotFound(err))
}

func TestApplyExpiredGuestCartPurged(t *testing.T) {
	f := newCartFixture()
	productID := uuid.New()
	guestCartID := uuid.New()
	expiresAt := time.Now().Add(-time.Hour)
	cart := &models.Cart{ID: guestCartID, TenantID: testTenant, ExpiresAt: &expiresAt}

	f.products.On("GetProduct", productID.String(), testTenant).Return(&models.Product{ID: productID, Price: 10}, nil)
	f.repo.On("GetCart", mock.Anything, testTenant, guestCartID).Return(cart, nil)
	f.repo.On("DeleteCart", mock.Anything, guestCartID).Return(nil)

	_, err := f.service.Apply(context.Background(), testTenant, CartIdentity{GuestCartID: &guestCartID},
		models.MutationRequest{ProductID: productID, Mode: models.ModeIncrement})

	assert.True(t, models.IsNotFound(err))
	f.repo.AssertCalled(t, "DeleteCart", mock.Anything, guestCartID)
}

func TestApplyRejectsUnknownMode(t *testing.T) {
	f := newCartFixture()
	userID := uuid.New()

	_, err := f.service.Apply(context.Background(), testTenant, CartIdentity{UserID: &userID},
		models.MutationRequest{ProductID: uuid.New(), Mode: models.MutationMode("DOUBLE")})

	assert.Error(t, err)
	f.products.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
}

func TestApplyUnknownProductNotFound(t *testing.T) {
	f := newCartFixture()
	userID := uuid.New()
	productID := uuid.New()

	f.products.On("GetProduct", productID.String(), testTenant).Return(nil, nil)

	_, err := f.service.Apply(context.Background(), testTenant, CartIdentity{UserID: &userID},
		models.MutationRequest{ProductID: productID, Mode: models.ModeIncrement})

	assert.True(t, models.IsNotFound(err))
}

func TestBuildCartViewDropsLinesWithMissingProduct(t *testing.T) {
	f := newCartFixture()
	userID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), TenantID: testTenant, UserID: &userID}
	goneProduct := uuid.New()
	liveProduct := uuid.New()
	option := optionWith(nil, 2)
	bindJSON, _ := option.Bind.ToJSON()

	f.products.On("GetProduct", goneProduct.String(), testTenant).Return(nil, nil)
	f.products.On("GetProduct", liveProduct.String(), testTenant).Return(&models.Product{ID: liveProduct, Price: 8, Currency: "USD"}, nil)
	f.resolver.On("Resolve", mock.Anything, testTenant, liveProduct, mock.Anything).Return(option, nil)

	view, err := f.service.BuildCartView(context.Background(), testTenant, cart, []models.CartItem{
		{ID: uuid.New(), CartID: cart.ID, ProductID: goneProduct, Bind: bindJSON, Quantity: 2},
		{ID: uuid.New(), CartID: cart.ID, ProductID: liveProduct, Bind: bindJSON, Quantity: 3},
	})

	assert.NoError(t, err)
	assert.Len(t, view.Items, 1)
	assert.Equal(t, liveProduct, view.Items[0].ProductID)
	assert.InDelta(t, 3*(8+2), view.Total, 1e-9)
}

func TestGetCartUserWithoutCartNotFound(t *testing.T) {
	f := newCartFixture()
	userID := uuid.New()

	f.repo.On("FindUserCart", mock.Anything, testTenant, userID).Return(nil, nil)

	_, err := f.service.GetCart(context.Background(), testTenant, CartIdentity{UserID: &userID})

	assert.True(t, models.IsNotFound(err))
}

func TestClearCartDeletesEveryItem(t *testing.T) {
	f := newCartFixture()
	userID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), TenantID: testTenant, UserID: &userID}
	item1 := uuid.New()
	item2 := uuid.New()

	f.repo.On("FindUserCart", mock.Anything, testTenant, userID).Return(cart, nil)
	f.repo.On("LockCart", mock.Anything, cart.ID).Return(nil)
	f.repo.On("ListItems", mock.Anything, cart.ID).Return([]models.CartItem{
		{ID: item1, CartID: cart.ID, Quantity: 2},
		{ID: item2, CartID: cart.ID, Quantity: 1},
	}, nil)
	f.repo.On("DeleteItem", mock.Anything, item1).Return(nil)
	f.repo.On("DeleteItem", mock.Anything, item2).Return(nil)

	view, err := f.service.ClearCart(context.Background(), testTenant, CartIdentity{UserID: &userID})

	assert.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Zero(t, view.Total)
	f.repo.AssertCalled(t, "DeleteItem", mock.Anything, item1)
	f.repo.AssertCalled(t, "DeleteItem", mock.Anything, item2)
}
