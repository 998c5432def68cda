package handlers

import (
	"errors"
	"net/http"

	"cart-service/internal/middleware"
	"cart-service/internal/models"
	"cart-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type CartHandler struct {
	carts  services.CartService
	merges services.GuestMergeService
	tokens *services.GuestTokenService
	logger *logrus.Entry
}

func NewCartHandler(carts services.CartService, merges services.GuestMergeService, tokens *services.GuestTokenService, logger *logrus.Logger) *CartHandler {
	return &CartHandler{
		carts:  carts,
		merges: merges,
		tokens: tokens,
		logger: logger.WithField("component", "cart-handler"),
	}
}

// RegisterRoutes wires the cart endpoints onto the given router group
func (h *CartHandler) RegisterRoutes(rg *gin.RouterGroup) {
	cart := rg.Group("/cart")
	{
		cart.GET("", h.GetCart)
		cart.DELETE("", h.ClearCart)
		cart.POST("/items", h.MutateItem)
		cart.POST("/merge", h.MergeGuestCart)
	}
}

// MutateItem applies one quantity mutation (increment/decrement/set/clear/max)
// to the caller's cart. Callers without a user or guest identity get a guest
// cart created lazily; its access token is returned alongside the result.
func (h *CartHandler) MutateItem(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var req models.MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}
	if !req.Mode.Valid() {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "mode must be one of INCREMENT, DECREMENT, SET, CLEAR, MAX",
			},
		})
		return
	}

	identity, ok := h.cartIdentity(c)
	if !ok {
		return
	}

	result, err := h.carts.Apply(c.Request.Context(), tenantID, identity, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := models.MutationResponse{Success: true, Data: result}
	// A lazily created guest cart needs its token handed back to the client
	if identity.UserID == nil && identity.GuestCartID == nil && result.Cart.Guest {
		resp.Token = h.tokens.GenerateToken(result.Cart.ID.String())
	}

	status := http.StatusOK
	if result.Action == models.ActionAdded {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

// GetCart returns the caller's cart with a freshly computed total
func (h *CartHandler) GetCart(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	identity, ok := h.cartIdentity(c)
	if !ok {
		return
	}

	view, err := h.carts.GetCart(c.Request.Context(), tenantID, identity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CartResponse{Success: true, Data: view})
}

// ClearCart removes all items from the caller's cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	identity, ok := h.cartIdentity(c)
	if !ok {
		return
	}

	view, err := h.carts.ClearCart(c.Request.Context(), tenantID, identity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CartResponse{Success: true, Data: view})
}

// MergeGuestCart folds a guest cart into the authenticated user's cart.
// Merging an already-merged guest cart id is a no-op success.
func (h *CartHandler) MergeGuestCart(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	userID := middleware.GetUserID(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "AUTH_REQUIRED",
				Message: "Merging requires an authenticated user",
			},
		})
		return
	}

	var req models.MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	view, err := h.merges.Merge(c.Request.Context(), tenantID, *userID, req.GuestCartID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CartResponse{Success: true, Data: view})
}

// cartIdentity derives whose cart the request targets. Guest cart access
// requires the HMAC token issued at cart creation. Returns ok=false after
// writing the error response.
func (h *CartHandler) cartIdentity(c *gin.Context) (services.CartIdentity, bool) {
	if userID := middleware.GetUserID(c); userID != nil {
		return services.CartIdentity{UserID: userID}, true
	}

	rawCartID := c.GetHeader("X-Guest-Cart-ID")
	if rawCartID == "" {
		rawCartID = c.Query("guestCartId")
	}
	if rawCartID == "" {
		return services.CartIdentity{}, true
	}

	cartID, err := uuid.Parse(rawCartID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_GUEST_CART_ID",
				Message: "Guest cart id is not a valid UUID",
			},
		})
		return services.CartIdentity{}, false
	}

	token := c.GetHeader("X-Guest-Cart-Token")
	if err := h.tokens.ValidateToken(token, cartID.String()); err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_GUEST_TOKEN",
				Message: "Guest cart token is missing, invalid or expired",
			},
		})
		return services.CartIdentity{}, false
	}

	return services.CartIdentity{GuestCartID: &cartID}, true
}

// respondError maps the core error taxonomy onto HTTP responses. Stock and
// quantity conflicts stay distinguishable from not-found and internal errors.
func (h *CartHandler) respondError(c *gin.Context, err error) {
	var (
		notFound     *models.NotFoundError
		invalidBind  *models.InvalidBindError
		insufficient *models.InsufficientQuantityError
		exceeded     *models.StockExceededError
	)

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_FOUND",
				Message: notFound.Error(),
			},
		})
	case errors.As(err, &invalidBind):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_BIND",
				Message: invalidBind.Error(),
				Details: gin.H{
					"featureId": invalidBind.FeatureID,
					"value":     invalidBind.Value,
					"reason":    invalidBind.Reason,
				},
			},
		})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INSUFFICIENT_QUANTITY",
				Message: insufficient.Error(),
				Details: gin.H{
					"current":   insufficient.Current,
					"requested": insufficient.Requested,
				},
			},
		})
	case errors.As(err, &exceeded):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "STOCK_EXCEEDED",
				Message: exceeded.Error(),
				Details: gin.H{
					"requested": exceeded.Requested,
					"available": exceeded.Available,
				},
			},
		})
	case errors.Is(err, models.ErrUndefinedMaxStock):
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "UNDEFINED_MAX_STOCK",
				Message: err.Error(),
			},
		})
	case errors.Is(err, models.ErrNotAGuestCart):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_A_GUEST_CART",
				Message: err.Error(),
			},
		})
	default:
		h.logger.WithError(err).Error("Cart operation failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INTERNAL_ERROR",
				Message: "An unexpected error occurred",
			},
		})
	}
}
