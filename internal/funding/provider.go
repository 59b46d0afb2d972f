package funding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/congo-pay/paywallet/internal/domain"
)

// DefaultPaystackBaseURL is the public Paystack API.
const DefaultPaystackBaseURL = "https://api.paystack.co"

// MaxDepositAmount is the largest deposit whose kobo value fits in an int64.
const MaxDepositAmount = math.MaxInt64 / koboPerUnit

const koboPerUnit = 100

// ErrProviderRejected is returned when the provider answers with status=false.
var ErrProviderRejected = errors.New("payment provider rejected the request")

// Provider is the boundary to the external payment processor.
type Provider interface {
	Initialize(ctx context.Context, req InitializeRequest) (Authorization, error)
	Verify(ctx context.Context, reference string) (Verification, error)
}

// InitializeRequest asks the provider to start collecting a deposit.
// Amount is in whole currency units.
type InitializeRequest struct {
	Email       string
	Amount      int64
	Reference   string
	CallbackURL string
}

// Authorization is where the payer completes a deposit.
type Authorization struct {
	AuthorizationURL string
	AccessCode       string
}

// Verification is the provider's view of a deposit. Amount is in whole
// currency units.
type Verification struct {
	Reference string
	Status    string
	Amount    int64
}

// Succeeded reports whether the provider confirmed the payment.
func (v Verification) Succeeded() bool {
	return v.Status == "success"
}

// PaystackClient talks to the Paystack transaction API.
type PaystackClient struct {
	baseURL string
	secret  string
	client  *http.Client
}

// NewPaystackClient builds a client authenticating with secret.
func NewPaystackClient(baseURL, secret string, client *http.Client) *PaystackClient {
	if baseURL == "" {
		baseURL = DefaultPaystackBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &PaystackClient{baseURL: strings.TrimRight(baseURL, "/"), secret: secret, client: client}
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize starts a transaction. Paystack expects the amount in kobo.
func (p *PaystackClient) Initialize(ctx context.Context, req InitializeRequest) (Authorization, error) {
	if req.Amount <= 0 || req.Amount > MaxDepositAmount {
		return Authorization{}, domain.ErrInvalidAmount
	}
	body, err := json.Marshal(map[string]any{
		"email":        req.Email,
		"amount":       req.Amount * koboPerUnit,
		"reference":    req.Reference,
		"callback_url": req.CallbackURL,
	})
	if err != nil {
		return Authorization{}, err
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
	}
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return Authorization{}, fmt.Errorf("paystack initialize: %w", err)
	}
	return Authorization{AuthorizationURL: data.AuthorizationURL, AccessCode: data.AccessCode}, nil
}

// Verify fetches the current state of a transaction.
func (p *PaystackClient) Verify(ctx context.Context, reference string) (Verification, error) {
	var data struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
	}
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return Verification{}, fmt.Errorf("paystack verify: %w", err)
	}
	if data.Reference == "" {
		data.Reference = reference
	}
	return Verification{Reference: data.Reference, Status: data.Status, Amount: fromKobo(data.Amount)}, nil
}

func (p *PaystackClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !env.Status {
		return fmt.Errorf("%w: %s", ErrProviderRejected, env.Message)
	}
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// fromKobo converts minor units to whole units, rounding down.
func fromKobo(kobo int64) int64 {
	return kobo / koboPerUnit
}

// StaticProvider simulates a provider for local development and tests. Every
// initialized deposit verifies as successful for the initialized amount.
type StaticProvider struct {
	mu       sync.Mutex
	deposits map[string]Verification
}

// NewStaticProvider builds an empty StaticProvider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{deposits: make(map[string]Verification)}
}

// Initialize records the deposit and returns a synthetic checkout URL.
func (s *StaticProvider) Initialize(_ context.Context, req InitializeRequest) (Authorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deposits[req.Reference] = Verification{Reference: req.Reference, Status: "success", Amount: req.Amount}
	return Authorization{
		AuthorizationURL: "https://checkout.local/" + req.Reference,
		AccessCode:       req.Reference,
	}, nil
}

// Verify reports the recorded deposit, or abandoned when it is unknown.
func (s *StaticProvider) Verify(_ context.Context, reference string) (Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.deposits[reference]; ok {
		return v, nil
	}
	return Verification{Reference: reference, Status: "abandoned"}, nil
}

// Set overrides what Verify reports for reference.
func (s *StaticProvider) Set(v Verification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deposits[v.Reference] = v
}
