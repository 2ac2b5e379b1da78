package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ActivityKind identifies which ledger command produced an activity.
type ActivityKind string

const (
	KindRecycleCredit     ActivityKind = "RECYCLE_CREDIT"
	KindVoucherRedemption ActivityKind = "VOUCHER_REDEMPTION"
	KindCashWithdrawal    ActivityKind = "CASH_WITHDRAWAL"
	KindStorePurchase     ActivityKind = "STORE_PURCHASE"
)

// IsDebit reports whether activities of this kind carry a negative delta.
func (k ActivityKind) IsDebit() bool {
	return k != KindRecycleCredit
}

// Valid reports whether k is a known kind.
func (k ActivityKind) Valid() bool {
	switch k {
	case KindRecycleCredit, KindVoucherRedemption, KindCashWithdrawal, KindStorePurchase:
		return true
	}
	return false
}

// MaterialCategory is the classifier's material bucket.
type MaterialCategory string

const (
	CategoryPlastic     MaterialCategory = "PLASTIC"
	CategoryGlass       MaterialCategory = "GLASS"
	CategoryMetal       MaterialCategory = "METAL"
	CategoryPaper       MaterialCategory = "PAPER"
	CategoryElectronics MaterialCategory = "ELECTRONICS"
	CategoryUnknown     MaterialCategory = "UNKNOWN"
)

// ParseMaterialCategory maps free text onto a category, falling back to UNKNOWN.
func ParseMaterialCategory(s string) MaterialCategory {
	c := MaterialCategory(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategoryPlastic, CategoryGlass, CategoryMetal, CategoryPaper, CategoryElectronics:
		return c
	}
	return CategoryUnknown
}

// ActivityDetail holds the fields specific to one ActivityKind.
// Implementations: RecycleCredit, VoucherRedemption, CashWithdrawal, StorePurchase.
type ActivityDetail interface {
	Kind() ActivityKind
	isActivityDetail()
}

// RecycleCredit is the detail of a RECYCLE_CREDIT activity.
type RecycleCredit struct {
	Category MaterialCategory
}

// VoucherRedemption is the detail of a VOUCHER_REDEMPTION activity.
type VoucherRedemption struct {
	Provider  string
	FaceValue *decimal.Decimal
	Code      string
	ExpiresAt int64 // ms since epoch
}

// CashWithdrawal is the detail of a CASH_WITHDRAWAL activity.
type CashWithdrawal struct {
	Method string
	Payout decimal.Decimal
}

// StorePurchase is the detail of a STORE_PURCHASE activity.
type StorePurchase struct {
	Slot     string
	Discount decimal.Decimal
}

func (RecycleCredit) Kind() ActivityKind     { return KindRecycleCredit }
func (VoucherRedemption) Kind() ActivityKind { return KindVoucherRedemption }
func (CashWithdrawal) Kind() ActivityKind    { return KindCashWithdrawal }
func (StorePurchase) Kind() ActivityKind     { return KindStorePurchase }

func (RecycleCredit) isActivityDetail()     {}
func (VoucherRedemption) isActivityDetail() {}
func (CashWithdrawal) isActivityDetail()    {}
func (StorePurchase) isActivityDetail()     {}

// Activity is one immutable ledger record.
type Activity struct {
	ID        string
	Title     string
	CoinDelta int64
	CreatedAt int64 // ms since epoch
	Detail    ActivityDetail
}

// Kind returns the activity kind derived from its detail.
func (a Activity) Kind() ActivityKind {
	if a.Detail == nil {
		return ""
	}
	return a.Detail.Kind()
}

// CashEquivalent returns the real-currency value carried by the activity, if any.
func (a Activity) CashEquivalent() (decimal.Decimal, bool) {
	switch d := a.Detail.(type) {
	case VoucherRedemption:
		if d.FaceValue != nil {
			return *d.FaceValue, true
		}
	case CashWithdrawal:
		return d.Payout, true
	case StorePurchase:
		return d.Discount, true
	}
	return decimal.Zero, false
}

// activityWire is the flat JSON shape of an Activity.
type activityWire struct {
	ID               string           `json:"id"`
	Kind             ActivityKind     `json:"kind"`
	Title            string           `json:"title"`
	CoinDelta        int64            `json:"coinDelta"`
	CreatedAt        int64            `json:"createdAt"`
	MaterialCategory MaterialCategory `json:"materialCategory,omitempty"`
	CounterpartyName string           `json:"counterpartyName,omitempty"`
	CashEquivalent   *decimal.Decimal `json:"cashEquivalent,omitempty"`
	RedemptionCode   string           `json:"redemptionCode,omitempty"`
	RedemptionExpiry *int64           `json:"redemptionExpiry,omitempty"`
}

// MarshalJSON flattens the detail variant into the wire record.
func (a Activity) MarshalJSON() ([]byte, error) {
	w := activityWire{
		ID:        a.ID,
		Kind:      a.Kind(),
		Title:     a.Title,
		CoinDelta: a.CoinDelta,
		CreatedAt: a.CreatedAt,
	}
	switch d := a.Detail.(type) {
	case RecycleCredit:
		w.MaterialCategory = d.Category
	case VoucherRedemption:
		expiry := d.ExpiresAt
		w.CounterpartyName = d.Provider
		w.CashEquivalent = d.FaceValue
		w.RedemptionCode = d.Code
		w.RedemptionExpiry = &expiry
	case CashWithdrawal:
		payout := d.Payout
		w.CounterpartyName = d.Method
		w.CashEquivalent = &payout
	case StorePurchase:
		discount := d.Discount
		w.CounterpartyName = d.Slot
		w.CashEquivalent = &discount
	default:
		return nil, fmt.Errorf("activity %s: missing detail", a.ID)
	}
	return json.Marshal(w)
}

// UnmarshalJSON rebuilds the detail variant and rejects fields that do not
// belong to the record's kind.
func (a *Activity) UnmarshalJSON(data []byte) error {
	var w activityWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.ID == "" {
		return errors.New("activity: missing id")
	}

	var detail ActivityDetail
	switch w.Kind {
	case KindRecycleCredit:
		if w.CounterpartyName != "" || w.CashEquivalent != nil || w.RedemptionCode != "" || w.RedemptionExpiry != nil {
			return fmt.Errorf("activity %s: unexpected fields for %s", w.ID, w.Kind)
		}
		if w.MaterialCategory == "" {
			return fmt.Errorf("activity %s: missing materialCategory", w.ID)
		}
		detail = RecycleCredit{Category: ParseMaterialCategory(string(w.MaterialCategory))}
	case KindVoucherRedemption:
		if w.MaterialCategory != "" {
			return fmt.Errorf("activity %s: unexpected materialCategory for %s", w.ID, w.Kind)
		}
		if w.RedemptionCode == "" || w.RedemptionExpiry == nil {
			return fmt.Errorf("activity %s: redemption code and expiry are required", w.ID)
		}
		detail = VoucherRedemption{
			Provider:  w.CounterpartyName,
			FaceValue: w.CashEquivalent,
			Code:      w.RedemptionCode,
			ExpiresAt: *w.RedemptionExpiry,
		}
	case KindCashWithdrawal, KindStorePurchase:
		if w.MaterialCategory != "" || w.RedemptionCode != "" || w.RedemptionExpiry != nil {
			return fmt.Errorf("activity %s: unexpected fields for %s", w.ID, w.Kind)
		}
		if w.CashEquivalent == nil {
			return fmt.Errorf("activity %s: missing cashEquivalent", w.ID)
		}
		if w.Kind == KindCashWithdrawal {
			detail = CashWithdrawal{Method: w.CounterpartyName, Payout: *w.CashEquivalent}
		} else {
			detail = StorePurchase{Slot: w.CounterpartyName, Discount: *w.CashEquivalent}
		}
	default:
		return fmt.Errorf("activity %s: unknown kind %q", w.ID, w.Kind)
	}

	*a = Activity{
		ID:        w.ID,
		Title:     w.Title,
		CoinDelta: w.CoinDelta,
		CreatedAt: w.CreatedAt,
		Detail:    detail,
	}
	return nil
}

// ActivityLog is an account's activity list, newest first.
type ActivityLog []Activity

// Value implements driver.Valuer for ActivityLog
func (l ActivityLog) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for ActivityLog
func (l *ActivityLog) Scan(value any) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, l)
}

// Filter returns the activities of the given kind, preserving order.
func (l ActivityLog) Filter(kind ActivityKind) ActivityLog {
	out := make(ActivityLog, 0)
	for _, a := range l {
		if a.Kind() == kind {
			out = append(out, a)
		}
	}
	return out
}

// Sum returns the total of all coin deltas.
func (l ActivityLog) Sum() int64 {
	var total int64
	for _, a := range l {
		total += a.CoinDelta
	}
	return total
}
