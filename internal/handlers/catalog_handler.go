package handlers

import (
	"net/http"

	"github.com/ecovend/backend/internal/catalog"
	"github.com/ecovend/backend/internal/services"
)

type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

// Products lists vending products
// @Summary List products
// @Tags catalog
// @Produce json
// @Param category query string false "DRINK, SNACK or ALL"
// @Success 200 {array} catalog.Product
// @Router /catalog/products [get]
func (h *CatalogHandler) Products(w http.ResponseWriter, r *http.Request) {
	services.SendJSON(w, http.StatusOK, h.catalog.ProductsByCategory(r.URL.Query().Get("category")))
}

// Vouchers lists redeemable vouchers
// @Summary List vouchers
// @Tags catalog
// @Produce json
// @Param category query string false "FOOD, SHOPPING, MALL or ALL"
// @Success 200 {array} catalog.Voucher
// @Router /catalog/vouchers [get]
func (h *CatalogHandler) Vouchers(w http.ResponseWriter, r *http.Request) {
	services.SendJSON(w, http.StatusOK, h.catalog.VouchersByCategory(r.URL.Query().Get("category")))
}

// TransferMethods lists cash-out destinations
// @Summary List transfer methods
// @Tags catalog
// @Produce json
// @Success 200 {array} catalog.TransferMethod
// @Router /catalog/transfer-methods [get]
func (h *CatalogHandler) TransferMethods(w http.ResponseWriter, r *http.Request) {
	services.SendJSON(w, http.StatusOK, h.catalog.TransferMethods)
}
