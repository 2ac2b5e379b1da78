package handlers

import (
	"fmt"
	"net/http"

	"github.com/ecovend/backend/internal/catalog"
	"github.com/ecovend/backend/internal/models"
	"github.com/ecovend/backend/internal/services"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type ShopHandler struct {
	accounts    *services.AccountService
	catalog     *catalog.Catalog
	validator   *services.ValidationHelper
	recentCount int
	log         zerolog.Logger
}

func NewShopHandler(accounts *services.AccountService, c *catalog.Catalog, recentCount int, log zerolog.Logger) *ShopHandler {
	return &ShopHandler{
		accounts:    accounts,
		catalog:     c,
		validator:   services.NewValidationHelper(),
		recentCount: recentCount,
		log:         log,
	}
}

// PurchaseRequest buys a product with a coin discount
type PurchaseRequest struct {
	ProductID string `json:"productId" validate:"required,max=64" example:"p1"`
	Coins     int64  `json:"coins" validate:"required,gt=0" example:"20"`
}

// PurchaseResponse adds the price breakdown to the ledger result
type PurchaseResponse struct {
	LedgerResponse
	Product    catalog.Product `json:"product"`
	Discount   decimal.Decimal `json:"discount"`
	FinalPrice decimal.Decimal `json:"finalPrice"`
}

// Purchase applies coins as a discount on a vending machine product
// @Summary Buy a product
// @Tags shop
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body PurchaseRequest true "Purchase request"
// @Success 200 {object} PurchaseResponse
// @Failure 400 {object} services.ErrorResponse "Discount cap exceeded"
// @Failure 402 {object} services.ErrorResponse "Insufficient balance"
// @Failure 404 {object} services.ErrorResponse "Product not found"
// @Failure 409 {object} services.ErrorResponse "Out of stock"
// @Router /shop/purchase [post]
func (h *ShopHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req PurchaseRequest
	if err := h.validator.DecodeJSON(w, r, &req); err != nil {
		sendDomainError(w, h.log, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	product, found := h.catalog.Product(req.ProductID)
	if !found {
		services.SendErrorResponse(w, "Product not found", http.StatusNotFound, nil)
		return
	}
	if !product.InStock() {
		services.SendErrorResponse(w, "Product is out of stock", http.StatusConflict, nil)
		return
	}
	if req.Coins > product.MaxCoinDiscount {
		services.SendErrorResponse(w, fmt.Sprintf("At most %d coins can be applied to %s", product.MaxCoinDiscount, product.Name), http.StatusBadRequest, nil)
		return
	}

	ledger := h.accounts.Ledger()
	discount := ledger.DiscountValue(req.Coins)
	acct, err := h.accounts.Apply(r.Context(), identity, func(a models.Account) (models.Account, error) {
		return ledger.Purchase(a, req.Coins, product.Name, discount)
	})
	if err != nil {
		sendDomainError(w, h.log, err)
		return
	}

	finalPrice := decimal.Max(decimal.Zero, product.CashPrice.Sub(discount))
	services.SendJSON(w, http.StatusOK, PurchaseResponse{
		LedgerResponse: LedgerResponse{Activity: acct.ActivityLog[0], Account: acct.Summarize(h.recentCount)},
		Product:        product,
		Discount:       discount,
		FinalPrice:     finalPrice,
	})
}
