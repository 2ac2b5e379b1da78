package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

//go:embed catalog.toml
var defaultCatalog string

// ErrInvalidCatalog is returned when a catalog document is inconsistent.
var ErrInvalidCatalog = errors.New("invalid catalog")

const (
	ProductDrink = "DRINK"
	ProductSnack = "SNACK"

	VoucherFood     = "FOOD"
	VoucherShopping = "SHOPPING"
	VoucherMall     = "MALL"
)

// Product is an item sold by the vending machine.
type Product struct {
	ID              string          `toml:"id" json:"id"`
	Name            string          `toml:"name" json:"name"`
	Category        string          `toml:"category" json:"category"`
	CashPrice       decimal.Decimal `toml:"cash_price" json:"cashPrice"`
	MaxCoinDiscount int64           `toml:"max_coin_discount" json:"maxCoinDiscount"`
	Stock           int             `toml:"stock" json:"stock"`
	Image           string          `toml:"image" json:"image"`
}

// InStock reports whether the product can be dispensed.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Voucher is a redeemable reward template.
type Voucher struct {
	ID          string          `toml:"id" json:"id"`
	Provider    string          `toml:"provider" json:"provider"`
	FaceValue   decimal.Decimal `toml:"face_value" json:"faceValue"`
	CoinCost    int64           `toml:"coin_cost" json:"coinCost"`
	Category    string          `toml:"category" json:"category"`
	Description string          `toml:"description" json:"description"`
	Image       string          `toml:"image" json:"image"`
	Terms       []string        `toml:"terms" json:"terms"`
}

// TransferMethod is a cash-out destination.
type TransferMethod struct {
	ID   string `toml:"id" json:"id"`
	Name string `toml:"name" json:"name"`
}

type Catalog struct {
	Products        []Product        `toml:"products"`
	Vouchers        []Voucher        `toml:"vouchers"`
	TransferMethods []TransferMethod `toml:"transfer_methods"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, or the default catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes and validates a TOML catalog document.
func Parse(doc string) (*Catalog, error) {
	var c Catalog
	meta, err := toml.Decode(doc, &c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys %v", ErrInvalidCatalog, undecoded)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	ids := make(map[string]struct{})
	unique := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%w: %s without id", ErrInvalidCatalog, kind)
		}
		key := kind + "/" + id
		if _, dup := ids[key]; dup {
			return fmt.Errorf("%w: duplicate %s id %q", ErrInvalidCatalog, kind, id)
		}
		ids[key] = struct{}{}
		return nil
	}

	for _, p := range c.Products {
		if err := unique("product", p.ID); err != nil {
			return err
		}
		if p.Category != ProductDrink && p.Category != ProductSnack {
			return fmt.Errorf("%w: product %q has category %q", ErrInvalidCatalog, p.ID, p.Category)
		}
		if !p.CashPrice.IsPositive() || p.MaxCoinDiscount < 0 || p.Stock < 0 {
			return fmt.Errorf("%w: product %q has invalid price, discount or stock", ErrInvalidCatalog, p.ID)
		}
	}
	for _, v := range c.Vouchers {
		if err := unique("voucher", v.ID); err != nil {
			return err
		}
		switch v.Category {
		case VoucherFood, VoucherShopping, VoucherMall:
		default:
			return fmt.Errorf("%w: voucher %q has category %q", ErrInvalidCatalog, v.ID, v.Category)
		}
		if v.CoinCost <= 0 || v.Provider == "" {
			return fmt.Errorf("%w: voucher %q needs a provider and positive coin cost", ErrInvalidCatalog, v.ID)
		}
	}
	for _, m := range c.TransferMethods {
		if err := unique("transfer method", m.ID); err != nil {
			return err
		}
		if m.Name == "" {
			return fmt.Errorf("%w: transfer method %q has no name", ErrInvalidCatalog, m.ID)
		}
	}
	return nil
}

func matchesCategory(filter, category string) bool {
	filter = strings.ToUpper(strings.TrimSpace(filter))
	return filter == "" || filter == "ALL" || filter == category
}

// ProductsByCategory returns the products in category; "" or ALL returns all.
func (c *Catalog) ProductsByCategory(category string) []Product {
	out := make([]Product, 0, len(c.Products))
	for _, p := range c.Products {
		if matchesCategory(category, p.Category) {
			out = append(out, p)
		}
	}
	return out
}

// VouchersByCategory returns the vouchers in category; "" or ALL returns all.
func (c *Catalog) VouchersByCategory(category string) []Voucher {
	out := make([]Voucher, 0, len(c.Vouchers))
	for _, v := range c.Vouchers {
		if matchesCategory(category, v.Category) {
			out = append(out, v)
		}
	}
	return out
}

func (c *Catalog) Product(id string) (Product, bool) {
	for _, p := range c.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func (c *Catalog) Voucher(id string) (Voucher, bool) {
	for _, v := range c.Vouchers {
		if v.ID == id {
			return v, true
		}
	}
	return Voucher{}, false
}

// VoucherByProvider finds the template a redeemed voucher was issued from.
func (c *Catalog) VoucherByProvider(provider string) (Voucher, bool) {
	for _, v := range c.Vouchers {
		if v.Provider == provider {
			return v, true
		}
	}
	return Voucher{}, false
}

func (c *Catalog) TransferMethod(id string) (TransferMethod, bool) {
	for _, m := range c.TransferMethods {
		if m.ID == id {
			return m, true
		}
	}
	return TransferMethod{}, false
}
