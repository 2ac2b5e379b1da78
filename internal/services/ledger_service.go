package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ecovend/backend/internal/audit"
	"github.com/ecovend/backend/internal/config"
	"github.com/ecovend/backend/internal/metrics"
	"github.com/ecovend/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Clock supplies the ledger's notion of now.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces activity ids.
type IDGenerator interface {
	NewID() string
}

// CodeGenerator produces voucher redemption codes.
type CodeGenerator interface {
	NewCode() (string, error)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.NewString() }

const redemptionCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type randomCodeGenerator struct {
	length int
}

func (g randomCodeGenerator) NewCode() (string, error) {
	code := make([]byte, g.length)
	charsetLen := big.NewInt(int64(len(redemptionCharset)))

	for i := range code {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("generate redemption code: %w", err)
		}
		code[i] = redemptionCharset[n.Int64()]
	}

	return string(code), nil
}

// LedgerService applies coin-affecting commands to account snapshots.
// It never mutates its input: every command returns a new Account, or the
// input unchanged together with an error.
type LedgerService struct {
	config *config.LedgerConfig
	clock  Clock
	ids    IDGenerator
	codes  CodeGenerator
	audit  *audit.AuditLogger
}

type LedgerOption func(*LedgerService)

func WithClock(c Clock) LedgerOption {
	return func(s *LedgerService) { s.clock = c }
}

func WithIDGenerator(g IDGenerator) LedgerOption {
	return func(s *LedgerService) { s.ids = g }
}

func WithCodeGenerator(g CodeGenerator) LedgerOption {
	return func(s *LedgerService) { s.codes = g }
}

func WithAuditLogger(a *audit.AuditLogger) LedgerOption {
	return func(s *LedgerService) { s.audit = a }
}

func NewLedgerService(cfg *config.LedgerConfig, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		config: cfg,
		clock:  systemClock{},
		ids:    uuidGenerator{},
		codes:  randomCodeGenerator{length: cfg.RedemptionCodeLength},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// posting is one signed change to a balance plus the activity that records it.
type posting struct {
	kind   models.ActivityKind
	title  string
	amount int64 // always positive; the sign comes from kind
	detail func(createdAt int64) (models.ActivityDetail, error)
	after  func(next *models.Account)
}

func (p posting) delta() int64 {
	if p.kind.IsDebit() {
		return -p.amount
	}
	return p.amount
}

func (s *LedgerService) apply(acct models.Account, p posting) (models.Account, error) {
	if p.amount <= 0 {
		return acct, fmt.Errorf("%w: got %d", models.ErrInvalidAmount, p.amount)
	}

	delta := p.delta()
	if delta > 0 && acct.Balance > math.MaxInt64-delta {
		return acct, fmt.Errorf("%w: crediting %d would overflow balance %d", models.ErrInvalidAmount, delta, acct.Balance)
	}
	if acct.Balance+delta < 0 {
		err := fmt.Errorf("%w: balance %d, required %d", models.ErrInsufficientBalance, acct.Balance, p.amount)
		metrics.RecordLedgerOperation(string(p.kind), delta, err)
		if s.audit != nil {
			s.audit.LogRejected(acct.Identity, p.kind, p.amount, acct.Balance, err)
		}
		return acct, err
	}

	createdAt := s.timestamp(acct)
	detail, err := p.detail(createdAt)
	if err != nil {
		return acct, err
	}

	id := s.ids.NewID()
	if _, dup := acct.FindActivity(id); dup || id == "" {
		return acct, fmt.Errorf("%w: %q", models.ErrDuplicateActivityID, id)
	}

	activity := models.Activity{
		ID:        id,
		Title:     p.title,
		CoinDelta: delta,
		CreatedAt: createdAt,
		Detail:    detail,
	}

	next := acct
	next.Balance += delta
	next.ActivityLog = make(models.ActivityLog, 0, len(acct.ActivityLog)+1)
	next.ActivityLog = append(next.ActivityLog, activity)
	next.ActivityLog = append(next.ActivityLog, acct.ActivityLog...)
	if p.after != nil {
		p.after(&next)
	}

	metrics.RecordLedgerOperation(string(p.kind), delta, nil)
	if s.audit != nil {
		s.audit.LogActivity(next.Identity, activity, next.Balance)
	}
	return next, nil
}

// timestamp keeps createdAt strictly increasing within one log even when the
// clock does not advance between commands.
func (s *LedgerService) timestamp(acct models.Account) int64 {
	now := s.clock.Now().UnixMilli()
	if newest, ok := acct.Newest(); ok && now <= newest.CreatedAt {
		now = newest.CreatedAt + 1
	}
	return now
}

// CreditFromRecycling credits coins for one recycled item.
func (s *LedgerService) CreditFromRecycling(acct models.Account, itemTitle string, category models.MaterialCategory, coinValue int64) (models.Account, error) {
	return s.apply(acct, posting{
		kind:   models.KindRecycleCredit,
		title:  itemTitle,
		amount: coinValue,
		detail: func(int64) (models.ActivityDetail, error) {
			return models.RecycleCredit{Category: models.ParseMaterialCategory(string(category))}, nil
		},
		after: func(next *models.Account) {
			next.TotalItemsRecycled++
			next.TotalWeightGrams += s.config.WeightPerItemGrams
		},
	})
}

// RedeemVoucher debits coinCost and issues a time-limited redemption code.
// faceValue is the voucher's cash value when known.
func (s *LedgerService) RedeemVoucher(acct models.Account, providerName string, coinCost int64, faceValue *decimal.Decimal) (models.Account, error) {
	return s.apply(acct, posting{
		kind:   models.KindVoucherRedemption,
		title:  providerName + " Voucher",
		amount: coinCost,
		detail: func(createdAt int64) (models.ActivityDetail, error) {
			code, err := s.codes.NewCode()
			if err != nil {
				return nil, err
			}
			return models.VoucherRedemption{
				Provider:  providerName,
				FaceValue: faceValue,
				Code:      code,
				ExpiresAt: createdAt + s.config.VoucherValidity.Milliseconds(),
			}, nil
		},
	})
}

// CashOut debits coinAmount and records its currency payout.
func (s *LedgerService) CashOut(acct models.Account, coinAmount int64, transferMethodName string) (models.Account, error) {
	return s.apply(acct, posting{
		kind:   models.KindCashWithdrawal,
		title:  "Transfer to " + transferMethodName,
		amount: coinAmount,
		detail: func(int64) (models.ActivityDetail, error) {
			if s.config.CoinsPerCurrencyUnit <= 0 {
				return nil, fmt.Errorf("%w: coins per currency unit is %d", config.ErrLedgerConfig, s.config.CoinsPerCurrencyUnit)
			}
			return models.CashWithdrawal{Method: transferMethodName, Payout: s.CashValue(coinAmount)}, nil
		},
	})
}

// Purchase debits the coins applied as a discount on a vending purchase.
func (s *LedgerService) Purchase(acct models.Account, coinsApplied int64, productSummary string, discountCashValue decimal.Decimal) (models.Account, error) {
	return s.apply(acct, posting{
		kind:   models.KindStorePurchase,
		title:  productSummary,
		amount: coinsApplied,
		detail: func(int64) (models.ActivityDetail, error) {
			return models.StorePurchase{Slot: s.config.PurchaseCounterparty, Discount: discountCashValue}, nil
		},
	})
}

// CashValue converts coins to currency at the configured withdrawal rate. It
// is zero when no rate is configured.
func (s *LedgerService) CashValue(coins int64) decimal.Decimal {
	if s.config.CoinsPerCurrencyUnit <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(coins).
		Div(decimal.NewFromInt(s.config.CoinsPerCurrencyUnit)).
		Round(2)
}

// DiscountValue converts coins to a purchase discount at the configured rate.
func (s *LedgerService) DiscountValue(coins int64) decimal.Decimal {
	return decimal.NewFromInt(coins).
		Mul(decimal.NewFromFloat(s.config.CoinDiscountRate)).
		Round(2)
}

// OpenAccount builds a new account carrying the signup bonus.
func (s *LedgerService) OpenAccount(identity, credential string) models.Account {
	return s.SeedAccount(identity, credential, s.config.WelcomeTitle, models.CategoryPaper, s.config.SignupBonus, 0, 0)
}

// SeedAccount builds an account whose opening balance is recorded as a single
// seed activity, so the balance still equals the sum of the log. The seed
// does not count as a recycled item; items and grams are set directly.
func (s *LedgerService) SeedAccount(identity, credential, title string, category models.MaterialCategory, coins, items, grams int64) models.Account {
	acct := models.Account{
		Identity:           identity,
		Credential:         credential,
		TotalItemsRecycled: items,
		TotalWeightGrams:   grams,
		ActivityLog:        models.ActivityLog{},
	}
	if coins <= 0 {
		return acct
	}

	acct.Balance = coins
	acct.ActivityLog = models.ActivityLog{{
		ID:        s.ids.NewID(),
		Title:     title,
		CoinDelta: coins,
		CreatedAt: s.clock.Now().UnixMilli(),
		Detail:    models.RecycleCredit{Category: category},
	}}
	return acct
}

// Verify checks every ledger invariant on an account snapshot and reports
// all violations found.
func (s *LedgerService) Verify(acct models.Account) error {
	var errs []error
	violation := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{models.ErrInvariantViolation}, args...)...))
	}

	if acct.Balance < 0 {
		violation("negative balance %d", acct.Balance)
	}
	if sum := acct.ActivityLog.Sum(); sum != acct.Balance {
		violation("balance %d does not match activity total %d", acct.Balance, sum)
	}
	if acct.TotalItemsRecycled < 0 || acct.TotalWeightGrams < 0 {
		violation("negative counters items=%d grams=%d", acct.TotalItemsRecycled, acct.TotalWeightGrams)
	}

	seen := make(map[string]struct{}, len(acct.ActivityLog))
	for i, act := range acct.ActivityLog {
		if act.ID == "" {
			violation("activity %d has no id", i)
		} else if _, dup := seen[act.ID]; dup {
			violation("duplicate activity id %q", act.ID)
		}
		seen[act.ID] = struct{}{}

		if act.Detail == nil {
			violation("activity %q has no detail", act.ID)
			continue
		}
		if act.Kind().IsDebit() && act.CoinDelta >= 0 {
			violation("debit activity %q has non-negative delta %d", act.ID, act.CoinDelta)
		}
		if !act.Kind().IsDebit() && act.CoinDelta <= 0 {
			violation("credit activity %q has non-positive delta %d", act.ID, act.CoinDelta)
		}
		if i > 0 && act.CreatedAt > acct.ActivityLog[i-1].CreatedAt {
			violation("activity %q is newer than its predecessor", act.ID)
		}
		if r, ok := act.Detail.(models.VoucherRedemption); ok {
			if !validRedemptionCode(r.Code, s.config.RedemptionCodeLength) {
				violation("activity %q has malformed redemption code", act.ID)
			}
			if r.ExpiresAt <= act.CreatedAt {
				violation("activity %q expires before it was created", act.ID)
			}
		}
	}

	return errors.Join(errs...)
}

func validRedemptionCode(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for _, c := range code {
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
