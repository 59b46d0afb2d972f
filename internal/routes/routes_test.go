package routes

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/paywallet/internal/auth"
	"github.com/congo-pay/paywallet/internal/config"
	"github.com/congo-pay/paywallet/internal/funding"
	"github.com/congo-pay/paywallet/internal/logging"
	"github.com/congo-pay/paywallet/internal/middleware"
)

const (
	testJWTSecret     = "routes-jwt-secret"
	testWebhookSecret = "routes-webhook-secret"
)

type testClient struct {
	t   *testing.T
	app *fiber.App
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	cfg := config.Config{
		AppName:              "paywallet-test",
		AppEnv:               "development",
		JWTSecret:            testJWTSecret,
		PaystackSecret:       testWebhookSecret,
		IdempotencyTTL:       time.Minute,
		WalletNumberAttempts: 10,
		DepositAmountCheck:   true,
		MaxActiveAPIKeys:     5,
	}
	app := fiber.New()
	require.NoError(t, Setup(app, Deps{
		Cfg:      cfg,
		Cache:    cache,
		Logger:   logging.Discard(),
		Provider: funding.NewStaticProvider(),
	}))
	return &testClient{t: t, app: app}
}

func (tc *testClient) token(userID string) string {
	tc.t.Helper()
	token, err := auth.IssueToken(userID, userID+"@example.com", []byte(testJWTSecret), time.Hour)
	require.NoError(tc.t, err)
	return token
}

func (tc *testClient) do(method, path, body string, headers map[string]string) (int, http.Header, map[string]any) {
	tc.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := tc.app.Test(req, -1)
	require.NoError(tc.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(tc.t, err)
	decoded := map[string]any{}
	switch {
	case len(raw) > 0 && raw[0] == '{':
		require.NoError(tc.t, json.Unmarshal(raw, &decoded))
	case len(raw) > 0:
		// fiber's default error handler answers in plain text
		decoded["message"] = string(raw)
	}
	return resp.StatusCode, resp.Header, decoded
}

func bearer(token string) map[string]string {
	return map[string]string{fiber.HeaderAuthorization: "Bearer " + token}
}

func TestWalletLifecycle(t *testing.T) {
	tc := newTestClient(t)
	alice := bearer(tc.token("alice"))
	bob := bearer(tc.token("bob"))

	status, _, body := tc.do(http.MethodGet, "/wallet/id", "", bob)
	require.Equal(t, http.StatusOK, status)
	bobNumber, _ := body["wallet_number"].(string)
	require.Len(t, bobNumber, 13)

	status, _, body = tc.do(http.MethodPost, "/wallet/deposit", `{"amount":500}`, alice)
	require.Equal(t, http.StatusOK, status)
	reference, _ := body["reference"].(string)
	require.True(t, strings.HasPrefix(reference, "ps_"))

	payload := fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"status":"success","amount":50000}}`, reference)
	sig := map[string]string{funding.SignatureHeader: funding.Sign(testWebhookSecret, []byte(payload))}
	status, _, body = tc.do(http.MethodPost, "/wallet/paystack/webhook", payload, sig)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "credited", body["result"])

	status, _, body = tc.do(http.MethodPost, "/wallet/paystack/webhook", payload, sig)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "already_processed", body["result"])

	status, _, body = tc.do(http.MethodGet, "/wallet/balance", "", alice)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 500, body["balance"])

	transfer := fmt.Sprintf(`{"wallet_number":%q,"amount":200}`, bobNumber)
	idem := bearer(tc.token("alice"))
	idem["Idempotency-Key"] = "transfer-1"
	status, _, first := tc.do(http.MethodPost, "/wallet/transfer", transfer, idem)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 300, first["balance"])

	status, headers, replay := tc.do(http.MethodPost, "/wallet/transfer", transfer, idem)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "true", headers.Get("Idempotent-Replayed"))
	require.Equal(t, first["reference"], replay["reference"])

	status, _, body = tc.do(http.MethodGet, "/wallet/balance", "", bob)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 200, body["balance"])

	status, _, body = tc.do(http.MethodGet, "/wallet/balance", "", alice)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 300, body["balance"])

	req := httptest.NewRequest(http.MethodGet, "/wallet/transactions", nil)
	req.Header.Set(fiber.HeaderAuthorization, alice[fiber.HeaderAuthorization])
	resp, err := tc.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var history []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history, 2)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	tc := newTestClient(t)
	payload := `{"event":"charge.success","data":{"reference":"ps_x","status":"success","amount":100}}`
	status, _, _ := tc.do(http.MethodPost, "/wallet/paystack/webhook", payload,
		map[string]string{funding.SignatureHeader: "deadbeef"})
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestTransferValidationStatuses(t *testing.T) {
	tc := newTestClient(t)
	alice := bearer(tc.token("alice"))

	status, _, body := tc.do(http.MethodGet, "/wallet/id", "", alice)
	require.Equal(t, http.StatusOK, status)
	own, _ := body["wallet_number"].(string)

	status, _, _ = tc.do(http.MethodPost, "/wallet/transfer", fmt.Sprintf(`{"wallet_number":%q,"amount":0}`, own), alice)
	require.Equal(t, http.StatusBadRequest, status)

	status, _, _ = tc.do(http.MethodPost, "/wallet/transfer", `{"wallet_number":"0000000000000","amount":10}`, alice)
	require.Equal(t, http.StatusNotFound, status)

	status, _, body = tc.do(http.MethodPost, "/wallet/transfer", `{"wallet_number":"","amount":0}`, alice)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "amount must be positive", body["message"])

	status, _, _ = tc.do(http.MethodPost, "/wallet/transfer", `{"amount":10}`, alice)
	require.Equal(t, http.StatusNotFound, status)

	status, _, _ = tc.do(http.MethodPost, "/wallet/transfer", fmt.Sprintf(`{"wallet_number":%q,"amount":10}`, own), alice)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestAPIKeyPermissionsAcrossRoutes(t *testing.T) {
	tc := newTestClient(t)
	alice := bearer(tc.token("alice"))

	status, _, body := tc.do(http.MethodPost, "/keys/create",
		`{"name":"reporting","permissions":["read"],"expiry":"1D"}`, alice)
	require.Equal(t, http.StatusCreated, status)
	secret, _ := body["api_key"].(string)
	keyID, _ := body["id"].(string)
	require.True(t, strings.HasPrefix(secret, "sk_live_"))

	withKey := map[string]string{middleware.APIKeyHeader: secret}
	status, _, _ = tc.do(http.MethodGet, "/wallet/balance", "", withKey)
	require.Equal(t, http.StatusOK, status)

	status, _, body = tc.do(http.MethodGet, "/wallet/api-key/id", "", withKey)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, keyID, body["id"])

	status, _, _ = tc.do(http.MethodPost, "/wallet/transfer", `{"wallet_number":"0000000000000","amount":1}`, withKey)
	require.Equal(t, http.StatusForbidden, status)

	status, _, _ = tc.do(http.MethodPost, "/keys/create", `{"name":"x","permissions":["read"],"expiry":"1D"}`, withKey)
	require.Equal(t, http.StatusForbidden, status)

	status, _, _ = tc.do(http.MethodPost, "/keys/"+keyID+"/revoke", "", alice)
	require.Equal(t, http.StatusNoContent, status)

	status, _, _ = tc.do(http.MethodGet, "/wallet/balance", "", withKey)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestUnauthenticatedWalletRoutes(t *testing.T) {
	tc := newTestClient(t)
	for _, path := range []string{"/wallet/balance", "/wallet/id", "/wallet/transactions", "/keys"} {
		status, _, _ := tc.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, status, path)
	}
}

func TestHealthz(t *testing.T) {
	tc := newTestClient(t)
	status, _, body := tc.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, map[string]any{"postgres": "disabled", "redis": "ok"}, body["status"])
}
