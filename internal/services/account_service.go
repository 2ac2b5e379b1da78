package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecovend/backend/internal/audit"
	"github.com/ecovend/backend/internal/database"
	"github.com/ecovend/backend/internal/models"
	"github.com/rs/zerolog"
)

// QuickLoginMethod is a password-less kiosk sign-in.
type QuickLoginMethod string

const (
	QuickLoginQR          QuickLoginMethod = "QR"
	QuickLoginFingerprint QuickLoginMethod = "FINGERPRINT"
)

type demoProfile struct {
	identity string
	coins    int64
	items    int64
	grams    int64
}

var demoProfiles = map[QuickLoginMethod]demoProfile{
	QuickLoginQR:          {identity: "scan-user@ecovend.ai", coins: 250, items: 12, grams: 1500},
	QuickLoginFingerprint: {identity: "bio-warrior@ecovend.ai", coins: 250, items: 12, grams: 1500},
}

// Command is a ledger transition applied by AccountService.Apply.
type Command func(models.Account) (models.Account, error)

// AccountService ties the ledger to account and session storage.
type AccountService struct {
	accounts   database.AccountStore
	sessions   database.SessionStore
	ledger     *LedgerService
	audit      *audit.AuditLogger
	sessionTTL time.Duration
	log        zerolog.Logger
}

func NewAccountService(
	accounts database.AccountStore,
	sessions database.SessionStore,
	ledger *LedgerService,
	auditLogger *audit.AuditLogger,
	sessionTTL time.Duration,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		accounts:   accounts,
		sessions:   sessions,
		ledger:     ledger,
		audit:      auditLogger,
		sessionTTL: sessionTTL,
		log:        log,
	}
}

// NormalizeIdentity trims and lower-cases an identity.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func (s *AccountService) Ledger() *LedgerService {
	return s.ledger
}

// CreateAccount registers a new identity with the signup bonus.
func (s *AccountService) CreateAccount(ctx context.Context, identity, credential string) (models.Account, error) {
	identity = NormalizeIdentity(identity)

	hashed, err := HashCredential(credential)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash credential: %w", err)
	}

	acct, err := s.accounts.Create(ctx, s.ledger.OpenAccount(identity, hashed))
	if err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			s.log.Info().Str("identity", identity).Msg("Registration rejected, identity taken")
			return models.Account{}, err
		}
		return models.Account{}, fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}

	s.log.Info().Str("identity", identity).Int64("balance", acct.Balance).Msg("Account created")
	s.logOperation(identity, "ACCOUNT_CREATED", "signup bonus granted")
	return acct, nil
}

// Authenticate checks a credential. Unknown identities and wrong secrets
// fail the same way.
func (s *AccountService) Authenticate(ctx context.Context, identity, credential string) (models.Account, error) {
	identity = NormalizeIdentity(identity)

	acct, err := s.accounts.Get(ctx, identity)
	if errors.Is(err, models.ErrAccountNotFound) {
		return models.Account{}, models.ErrInvalidCredentials
	}
	if err != nil {
		return models.Account{}, err
	}

	if !VerifyCredential(credential, acct.Credential) {
		s.log.Warn().Str("identity", identity).Msg("Authentication failed")
		return models.Account{}, models.ErrInvalidCredentials
	}
	return acct, nil
}

func (s *AccountService) GetAccount(ctx context.Context, identity string) (models.Account, error) {
	return s.accounts.Get(ctx, NormalizeIdentity(identity))
}

// LoadSession resolves the account signed in at machineID. A pointer to an
// account that no longer exists is cleared and reported as no session.
func (s *AccountService) LoadSession(ctx context.Context, machineID string) (models.Account, bool, error) {
	identity, found, err := s.sessions.ActiveSession(ctx, machineID)
	if err != nil || !found {
		return models.Account{}, false, err
	}

	acct, err := s.accounts.Get(ctx, identity)
	if errors.Is(err, models.ErrAccountNotFound) {
		s.log.Warn().Str("machine_id", machineID).Str("identity", identity).Msg("Dropping session for missing account")
		return models.Account{}, false, s.sessions.ClearActiveSession(ctx, machineID)
	}
	if err != nil {
		return models.Account{}, false, err
	}
	return acct, true, nil
}

// SaveAccount overwrites the stored snapshot. It fails with ErrStaleAccount
// when the stored account has moved on since acct was loaded.
func (s *AccountService) SaveAccount(ctx context.Context, acct models.Account) (models.Account, error) {
	return s.accounts.Put(ctx, acct)
}

// Apply loads the account, runs cmd and saves the result. A failed save is
// reported as ErrPersistence and the mutation must be treated as not having
// happened.
func (s *AccountService) Apply(ctx context.Context, identity string, cmd Command) (models.Account, error) {
	acct, err := s.accounts.Get(ctx, NormalizeIdentity(identity))
	if err != nil {
		return models.Account{}, err
	}

	next, err := cmd(acct)
	if err != nil {
		return acct, err
	}

	saved, err := s.accounts.Put(ctx, next)
	if err != nil {
		s.log.Error().Err(err).Str("identity", acct.Identity).Msg("Failed to persist ledger update")
		return acct, fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	return saved, nil
}

func (s *AccountService) StartSession(ctx context.Context, machineID, identity string) error {
	if err := s.sessions.SetActiveSession(ctx, machineID, NormalizeIdentity(identity), s.sessionTTL); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	s.log.Info().Str("machine_id", machineID).Str("identity", identity).Msg("Session started")
	return nil
}

func (s *AccountService) EndSession(ctx context.Context, machineID string) error {
	if err := s.sessions.ClearActiveSession(ctx, machineID); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	s.log.Info().Str("machine_id", machineID).Msg("Session ended")
	return nil
}

// QuickLogin signs a demo profile in at machineID, provisioning it on first
// use.
func (s *AccountService) QuickLogin(ctx context.Context, method QuickLoginMethod, machineID string) (models.Account, error) {
	profile, ok := demoProfiles[method]
	if !ok {
		return models.Account{}, fmt.Errorf("unsupported quick login method %q", method)
	}

	acct, err := s.accounts.Get(ctx, profile.identity)
	if errors.Is(err, models.ErrAccountNotFound) {
		seed := s.ledger.SeedAccount(profile.identity, "", string(method)+" Profile Initialized",
			models.CategoryPlastic, profile.coins, profile.items, profile.grams)

		acct, err = s.accounts.Create(ctx, seed)
		if errors.Is(err, models.ErrAlreadyExists) {
			acct, err = s.accounts.Get(ctx, profile.identity)
		} else if err == nil {
			s.logOperation(profile.identity, "PROFILE_PROVISIONED", string(method))
		}
	}
	if err != nil {
		return models.Account{}, err
	}

	if err := s.StartSession(ctx, machineID, acct.Identity); err != nil {
		return models.Account{}, err
	}
	return acct, nil
}

func (s *AccountService) logOperation(identity, operation, details string) {
	if s.audit != nil {
		s.audit.LogOperation(identity, operation, details)
	}
}
