package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ecovend/backend/internal/catalog"
	"github.com/ecovend/backend/internal/config"
	"github.com/ecovend/backend/internal/database"
	"github.com/ecovend/backend/internal/models"
	"github.com/ecovend/backend/internal/services"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	result services.Classification
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(_ context.Context, image []byte) (services.Classification, error) {
	f.calls++
	if len(image) == 0 {
		return services.Classification{}, &services.ClassificationError{Kind: services.ErrClassificationUnusable, Detail: "empty image"}
	}
	return f.result, f.err
}

// failingAccountStore fails every Put with putErr while it is set.
type failingAccountStore struct {
	*database.MemoryAccountStore
	putErr error
}

func (f *failingAccountStore) Put(ctx context.Context, acct models.Account) (models.Account, error) {
	if f.putErr != nil {
		return models.Account{}, f.putErr
	}
	return f.MemoryAccountStore.Put(ctx, acct)
}

type testServer struct {
	handler    http.Handler
	classifier *fakeClassifier
	sessions   *database.MemorySessionStore
	store      *failingAccountStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	viper.Set("argon2.memory", 8*1024)
	viper.Set("argon2.threads", 1)

	c, err := catalog.Default()
	require.NoError(t, err)

	ledgerCfg := config.LoadLedgerConfig()
	rewardsCfg := config.LoadRewardsConfig()
	rewardsCfg.ScanMaxPerWindow = 2
	rewardsCfg.DefaultMachineID = "kiosk-test"

	sessions := database.NewMemorySessionStore()
	store := &failingAccountStore{MemoryAccountStore: database.NewMemoryAccountStore()}
	accounts := services.NewAccountService(
		store,
		sessions,
		services.NewLedgerService(ledgerCfg),
		nil,
		time.Hour,
		zerolog.Nop(),
	)

	classifier := &fakeClassifier{result: services.Classification{
		ItemName:           "Plastic Bottle",
		Category:           models.CategoryPlastic,
		Confidence:         0.92,
		EstimatedValue:     15,
		RecyclabilityScore: 85,
	}}

	handler := NewRouter(Dependencies{
		Accounts:   accounts,
		Tokens:     services.NewTokenService("test-secret", time.Hour),
		Sessions:   sessions,
		Classifier: classifier,
		Catalog:    c,
		Rewards:    rewardsCfg,
		Ledger:     ledgerCfg,
		StaticDir:  t.TempDir(),
		Log:        zerolog.Nop(),
	})

	return &testServer{handler: handler, classifier: classifier, sessions: sessions, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", CredentialsRequest{Email: email, Password: "password123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", CredentialsRequest{Email: "eco@warrior.com", Password: "password123"})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[AuthResponse](t, w)
	assert.Equal(t, int64(100), resp.Account.Balance)
	assert.Equal(t, "kiosk-test", resp.MachineID)
	require.Len(t, resp.Account.Recent, 1)
	assert.Equal(t, "Welcome Bonus", resp.Account.Recent[0].Title)

	w = s.do(t, http.MethodPost, "/api/v1/auth/register", "", CredentialsRequest{Email: "ECO@warrior.com", Password: "password123"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/register", "", CredentialsRequest{Email: "not-an-email", Password: "password123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", CredentialsRequest{Email: "eco@warrior.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", CredentialsRequest{Email: "eco@warrior.com", Password: "password123", MachineID: "kiosk-7"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "kiosk-7", decode[AuthResponse](t, w).MachineID)

	w = s.do(t, http.MethodGet, "/api/v1/sessions/kiosk-7", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	session := decode[ActiveSessionResponse](t, w)
	assert.True(t, session.Active)
	assert.Equal(t, "eco@warrior.com", session.Identity)
}

func TestActiveSession_HidesAccountData(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "eco@warrior.com")

	w := s.do(t, http.MethodPost, "/api/v1/rewards/redeem", token, RedeemRequest{VoucherID: "v2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	detail, ok := decode[LedgerResponse](t, w).Activity.Detail.(models.VoucherRedemption)
	require.True(t, ok)

	w = s.do(t, http.MethodGet, "/api/v1/sessions/kiosk-test", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"machineId":"kiosk-test","active":true,"identity":"eco@warrior.com"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), detail.Code)
	assert.NotContains(t, w.Body.String(), "balance")
}

func TestRegister_RejectsUnknownFields(t *testing.T) {
	s := newTestServer(t)

	body := map[string]string{"email": "eco@warrior.com", "password": "password123", "role": "admin"}
	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuickLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/quick-login", "", QuickLoginRequest{Method: "QR"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[AuthResponse](t, w)
	assert.Equal(t, "scan-user@ecovend.ai", resp.Account.Identity)
	assert.Equal(t, int64(250), resp.Account.Balance)
	assert.Equal(t, 1.5, resp.Account.TotalWeightKg)

	w = s.do(t, http.MethodGet, "/api/v1/sessions/kiosk-test", "", nil)
	assert.True(t, decode[ActiveSessionResponse](t, w).Active)

	w = s.do(t, http.MethodPost, "/api/v1/auth/quick-login", "", QuickLoginRequest{Method: "FACE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "eco@warrior.com")

	w := s.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/account", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/sessions/kiosk-test", "", nil)
	assert.False(t, decode[ActiveSessionResponse](t, w).Active)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/v1/account", "/api/v1/activities", "/api/v1/rewards/vault"} {
		w := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestCatalogRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/catalog/products?category=snack", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	products := decode[[]catalog.Product](t, w)
	require.NotEmpty(t, products)
	for _, p := range products {
		assert.Equal(t, catalog.ProductSnack, p.Category)
	}

	w = s.do(t, http.MethodGet, "/api/v1/catalog/vouchers", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]catalog.Voucher](t, w), 5)

	w = s.do(t, http.MethodGet, "/api/v1/catalog/transfer-methods", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]catalog.TransferMethod](t, w), 4)
}

func TestScanAndConfirm(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "eco@warrior.com")

	image := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	w := s.do(t, http.MethodPost, "/api/v1/recycle/scan", token, ScanRequest{Image: image})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	scan := decode[ScanResponse](t, w)
	assert.NotEmpty(t, scan.ScanID)
	assert.Equal(t, "Plastic Bottle", scan.Classification.ItemName)
	assert.Greater(t, scan.ExpiresAt, time.Now().UnixMilli())

	// scanning alone does not credit
	w = s.do(t, http.MethodGet, "/api/v1/account", token, nil)
	assert.Equal(t, int64(100), decode[models.Summary](t, w).Balance)

	w = s.do(t, http.MethodPost, "/api/v1/recycle/confirm", token, ConfirmRequest{ScanID: scan.ScanID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[LedgerResponse](t, w)
	assert.Equal(t, models.KindRecycleCredit, resp.Activity.Kind())
	assert.Equal(t, int64(15), resp.Activity.CoinDelta)
	assert.Equal(t, "Plastic Bottle", resp.Activity.Title)
	assert.Equal(t, int64(115), resp.Account.Balance)
	assert.Equal(t, int64(1), resp.Account.TotalItemsRecycled)

	// single use
	w = s.do(t, http.MethodPost, "/api/v1/recycle/confirm", token, ConfirmRequest{ScanID: scan.ScanID})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScan_RawJPEG(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "eco@warrior.com")

	r := httptest.NewRequest(http.MethodPost, "/api/v1/recycle/scan", bytes.NewReader([]byte{0xff, 0xd8, 0xff, 0xe0}))
	r.Header.Set("Content-Type", "image/jpeg")
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, s.classifier.calls)
}

func TestScan_Base64ImageOverDefaultBodyLimit(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "eco@warrior.com")

	image := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0xab}, 2<<20))
	w := s.do(t, http.MethodPost, "/api/v1/recycle/scan", token, ScanRequest{Image: image})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tooLarge := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0xab}, maxImageBytes+8<<10))
	w = s.do(t, http.MethodPost, "/api/v1/recycle/scan", token, ScanRequest{Image: tooLarge})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, s.classifier.calls)
}

func TestConfirm_OtherIdentity(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "owner@ecovend.ai")
	other := s.register(t, "other@ecovend.ai")

	image := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	w := s.do(t, http.MethodPost, "/api/v1/recycle/scan", owner, ScanRequest{Image: image})
	require.Equal(t, http.StatusOK, w.Code)
	scan := decode[ScanResponse](t, w)

	w = s.do(t, http.MethodPost, "/api/v1/recycle/confirm", other, ConfirmRequest{ScanID: scan.ScanID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/account", other, nil)
	assert.Equal(t, int64(100), decode[models.Summary](t, w).Balance)

	w = s.do(t, http.MethodPost, "/api/v1/recycle/confirm", owner, ConfirmRequest{ScanID: scan.ScanID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(115), decode[LedgerResponse](t, w).Account.Balance)
}

func TestScan_RateLimited(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "eco@warrior.com")
	image := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))

	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodPost, "/api/v1/recycle/scan", token, ScanRequest{Image: image})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := s.do(t, http.MethodPost, "/api/v1/recycle/scan", token, ScanRequest{Image: image})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 2, s.classifier.calls)
}

func TestScan_FailedClassificationKeepsQuota(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "eco@warrior.com")
	image := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))

	s.classifier.err = &services.ClassificationError{Kind: services.ErrClassifierTransport, Detail: "status 500"}
	for i := 0; i < 3; i++ {
		w := s.do(t, http.MethodPost, "/api/v1/recycle/scan", token, ScanRequest{Image: image})
		require.Equal(t, http.StatusBadGateway, w.Code)
	}

	s.classifier.err = nil
	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodPost, "/api/v1/recycle/scan", token, ScanRequest{Image: image})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := s.do(t, http.MethodPost, "/api/v1/recycle/scan", token, ScanRequest{Image: image})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestConfirm_FailedSaveKeepsScan(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "eco@warrior.com")

	image := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	w := s.do(t, http.MethodPost, "/api/v1/recycle/scan", token, ScanRequest{Image: image})
	require.Equal(t, http.StatusOK, w.Code)
	scan := decode[ScanResponse](t, w)

	s.store.putErr = models.ErrStaleAccount
	w = s.do(t, http.MethodPost, "/api/v1/recycle/confirm", token, ConfirmRequest{ScanID: scan.ScanID})
	assert.Equal(t, http.StatusConflict, w.Code)

	s.store.putErr = errors.New("disk full")
	w = s.do(t, http.MethodPost, "/api/v1/recycle/confirm", token, ConfirmRequest{ScanID: scan.ScanID})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/account", token, nil)
	assert.Equal(t, int64(100), decode[models.Summary](t, w).Balance)

	s.store.putErr = nil
	w = s.do(t, http.MethodPost, "/api/v1/recycle/confirm", token, ConfirmRequest{ScanID: scan.ScanID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(115), decode[LedgerResponse](t, w).Account.Balance)

	w = s.do(t, http.MethodPost, "/api/v1/recycle/confirm", token, ConfirmRequest{ScanID: scan.ScanID})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScan_ClassifierErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unusable", &services.ClassificationError{Kind: services.ErrClassificationUnusable, Detail: "confidence too low"}, http.StatusUnprocessableEntity},
		{"transport", &services.ClassificationError{Kind: services.ErrClassifierTransport, Detail: "status 500"}, http.StatusBadGateway},
		{"not configured", &services.ClassificationError{Kind: services.ErrClassifierNotConfigured}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.classifier.err = tt.err
			token := s.register(t, "eco@warrior.com")

			image := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
			w := s.do(t, http.MethodPost, "/api/v1/recycle/scan", token, ScanRequest{Image: image})
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestScan_InvalidImage(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "eco@warrior.com")

	w := s.do(t, http.MethodPost, "/api/v1/recycle/scan", token, ScanRequest{Image: "not base64!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, s.classifier.calls)
}

func TestRedeemAndVault(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "eco@warrior.com")

	w := s.do(t, http.MethodPost, "/api/v1/rewards/redeem", token, RedeemRequest{VoucherID: "v2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[LedgerResponse](t, w)
	assert.Equal(t, "Amazon Voucher", resp.Activity.Title)
	assert.Equal(t, int64(-100), resp.Activity.CoinDelta)
	assert.Equal(t, int64(0), resp.Account.Balance)

	detail, ok := resp.Activity.Detail.(models.VoucherRedemption)
	require.True(t, ok)
	assert.Regexp(t, `^[A-Z0-9]{8}$`, detail.Code)
	require.NotNil(t, detail.FaceValue)
	assert.True(t, decimal.NewFromInt(10).Equal(*detail.FaceValue))

	w = s.do(t, http.MethodPost, "/api/v1/rewards/redeem", token, RedeemRequest{VoucherID: "v2"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/rewards/redeem", token, RedeemRequest{VoucherID: "v99"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/rewards/vault", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	vault := decode[VaultResponse](t, w)
	require.Len(t, vault.Vouchers, 1)
	assert.False(t, vault.Vouchers[0].Expired)
	assert.Equal(t, "$10 Online Shopping Voucher", vault.Vouchers[0].Description)
	assert.NotEmpty(t, vault.Vouchers[0].Terms)

	w = s.do(t, http.MethodGet, "/api/v1/rewards/vault/"+resp.Activity.ID+"/qr?size=128", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = s.do(t, http.MethodGet, "/api/v1/rewards/vault/"+resp.Activity.ID+"/qr?size=5", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	welcome := vault.Vouchers[0].Activity.ID + "-missing"
	w = s.do(t, http.MethodGet, "/api/v1/rewards/vault/"+welcome+"/qr", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCashOut(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "eco@warrior.com")

	w := s.do(t, http.MethodPost, "/api/v1/wallet/cash-out", token, CashOutRequest{Coins: 50, MethodID: "upi"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[LedgerResponse](t, w)
	assert.Equal(t, int64(50), resp.Account.Balance)

	detail, ok := resp.Activity.Detail.(models.CashWithdrawal)
	require.True(t, ok)
	assert.Equal(t, "5.00", detail.Payout.StringFixed(2))

	w = s.do(t, http.MethodPost, "/api/v1/wallet/cash-out", token, CashOutRequest{Coins: 51, MethodID: "upi"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/wallet/cash-out", token, CashOutRequest{Coins: 10, MethodID: "carrier-pigeon"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/wallet/cash-out", token, CashOutRequest{Coins: 0, MethodID: "upi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPurchase(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "eco@warrior.com")

	w := s.do(t, http.MethodPost, "/api/v1/shop/purchase", token, PurchaseRequest{ProductID: "p1", Coins: 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[PurchaseResponse](t, w)
	assert.Equal(t, int64(99), resp.Account.Balance)
	assert.Equal(t, "Sparkling Water", resp.Activity.Title)
	assert.Equal(t, "1.00", resp.Discount.StringFixed(2))
	assert.Equal(t, "0.50", resp.FinalPrice.StringFixed(2))

	w = s.do(t, http.MethodPost, "/api/v1/shop/purchase", token, PurchaseRequest{ProductID: "p1", Coins: 16})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/shop/purchase", token, PurchaseRequest{ProductID: "p3", Coins: 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/shop/purchase", token, PurchaseRequest{ProductID: "p404", Coins: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActivities(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "eco@warrior.com")

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/wallet/cash-out", token, CashOutRequest{Coins: 10, MethodID: "paytm"}).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/shop/purchase", token, PurchaseRequest{ProductID: "p5", Coins: 5}).Code)

	w := s.do(t, http.MethodGet, "/api/v1/activities", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[HistoryResponse](t, w)
	assert.Equal(t, 3, all.Total)
	require.Len(t, all.Activities, 3)
	assert.Equal(t, models.KindStorePurchase, all.Activities[0].Kind())
	assert.Equal(t, models.KindRecycleCredit, all.Activities[2].Kind())

	w = s.do(t, http.MethodGet, "/api/v1/activities?kind=cash_withdrawal", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	filtered := decode[HistoryResponse](t, w)
	assert.Equal(t, 1, filtered.Total)
	assert.Equal(t, "Transfer to Paytm Wallet", filtered.Activities[0].Title)

	w = s.do(t, http.MethodGet, "/api/v1/activities?limit=1", token, nil)
	limited := decode[HistoryResponse](t, w)
	assert.Equal(t, 3, limited.Total)
	assert.Len(t, limited.Activities, 1)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/activities?kind=GIFT", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/activities?limit=0", token, nil).Code)
}

func TestStaticCatalogPlaceholder(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/static/catalog/p1.svg", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
}
