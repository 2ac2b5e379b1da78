package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrLedgerConfig is returned by Validate when a ledger or rewards setting
// would break the coin economy.
var ErrLedgerConfig = errors.New("ledger configuration invalid")

// LedgerConfig holds the coin economy constants.
type LedgerConfig struct {
	SignupBonus          int64
	WelcomeTitle         string
	WeightPerItemGrams   int64
	CoinsPerCurrencyUnit int64
	CoinDiscountRate     float64
	VoucherValidity      time.Duration
	RedemptionCodeLength int
	PurchaseCounterparty string
	RecentActivityCount  int
}

// RewardsConfig holds limits around scanning and kiosk sessions.
type RewardsConfig struct {
	ScanMaxPerWindow    int
	ScanRateLimitWindow time.Duration
	PendingScanTTL      time.Duration
	SessionTTL          time.Duration
	DefaultMachineID    string
	CatalogFile         string
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		SignupBonus:          getEnvAsInt64("LEDGER_SIGNUP_BONUS", 100),
		WelcomeTitle:         getEnv("LEDGER_WELCOME_TITLE", "Welcome Bonus"),
		WeightPerItemGrams:   getEnvAsInt64("LEDGER_WEIGHT_PER_ITEM_GRAMS", 250),
		CoinsPerCurrencyUnit: getEnvAsInt64("LEDGER_COINS_PER_CURRENCY_UNIT", 10),
		CoinDiscountRate:     getEnvAsFloat("LEDGER_COIN_DISCOUNT_RATE", 1.0),
		VoucherValidity:      getEnvAsDuration("LEDGER_VOUCHER_VALIDITY", 30*24*time.Hour),
		RedemptionCodeLength: getEnvAsInt("LEDGER_REDEMPTION_CODE_LENGTH", 8),
		PurchaseCounterparty: getEnv("LEDGER_PURCHASE_COUNTERPARTY", "Vending Slot"),
		RecentActivityCount:  getEnvAsInt("LEDGER_RECENT_ACTIVITY_COUNT", 5),
	}
}

// Validate rejects settings that would make balances, counters or voucher
// expiries inconsistent.
func (c *LedgerConfig) Validate() error {
	switch {
	case c.SignupBonus < 0:
		return fmt.Errorf("%w: signup bonus must not be negative", ErrLedgerConfig)
	case c.WeightPerItemGrams < 0:
		return fmt.Errorf("%w: weight per item must not be negative", ErrLedgerConfig)
	case c.CoinsPerCurrencyUnit <= 0:
		return fmt.Errorf("%w: coins per currency unit must be positive", ErrLedgerConfig)
	case c.CoinDiscountRate <= 0:
		return fmt.Errorf("%w: coin discount rate must be positive", ErrLedgerConfig)
	case c.VoucherValidity <= 0:
		return fmt.Errorf("%w: voucher validity must be positive", ErrLedgerConfig)
	case c.RedemptionCodeLength < 4 || c.RedemptionCodeLength > 32:
		return fmt.Errorf("%w: redemption code length must be within [4,32]", ErrLedgerConfig)
	case c.RecentActivityCount <= 0:
		return fmt.Errorf("%w: recent activity count must be positive", ErrLedgerConfig)
	case c.WelcomeTitle == "" || c.PurchaseCounterparty == "":
		return fmt.Errorf("%w: welcome title and purchase counterparty are required", ErrLedgerConfig)
	}
	return nil
}

func LoadRewardsConfig() *RewardsConfig {
	return &RewardsConfig{
		ScanMaxPerWindow:    getEnvAsInt("SCAN_MAX_PER_WINDOW", 20),
		ScanRateLimitWindow: getEnvAsDuration("SCAN_RATE_LIMIT_WINDOW", 1*time.Hour),
		PendingScanTTL:      getEnvAsDuration("SCAN_PENDING_TTL", 10*time.Minute),
		SessionTTL:          getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		DefaultMachineID:    getEnv("DEFAULT_MACHINE_ID", "kiosk-default"),
		CatalogFile:         getEnv("CATALOG_FILE", ""),
	}
}

func (c *RewardsConfig) Validate() error {
	switch {
	case c.ScanMaxPerWindow <= 0:
		return fmt.Errorf("%w: scan limit must be positive", ErrLedgerConfig)
	case c.ScanRateLimitWindow <= 0 || c.PendingScanTTL <= 0 || c.SessionTTL <= 0:
		return fmt.Errorf("%w: scan window, pending scan ttl and session ttl must be positive", ErrLedgerConfig)
	case c.DefaultMachineID == "":
		return fmt.Errorf("%w: default machine id is required", ErrLedgerConfig)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
