package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/paywallet/internal/domain"
)

const (
	// DefaultMaxActive caps the active keys a user may hold.
	DefaultMaxActive = 5
	// DefaultCost is the bcrypt cost applied to key secrets.
	DefaultCost = 12

	secretPrefix = "sk_live_"
	secretBytes  = 24
)

var expiryPattern = regexp.MustCompile(`^[1-9]\d*[HDMY]$`)

// ErrNameRequired is returned when a key is created without a name.
var ErrNameRequired = errors.New("name is required")

// Service issues, rotates and verifies API keys.
type Service struct {
	repo      Repository
	maxActive int
	cost      int
	now       func() time.Time
	logger    *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithMaxActive overrides DefaultMaxActive.
func WithMaxActive(n int) Option {
	return func(s *Service) { s.maxActive = n }
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new API key service.
func NewService(repo Repository, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		maxActive: DefaultMaxActive,
		cost:      DefaultCost,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a new key.
type CreateInput struct {
	UserID      string
	Name        string
	Permissions []string
	Expiry      string
}

// Issued is a freshly minted key. Secret is only ever available here.
type Issued struct {
	Key    domain.APIKey
	Secret string
}

// Create mints a key for the user.
func (s *Service) Create(ctx context.Context, input CreateInput) (Issued, error) {
	if input.Name == "" {
		return Issued{}, ErrNameRequired
	}
	if len(input.Permissions) == 0 {
		return Issued{}, fmt.Errorf("%w: at least one permission is required", domain.ErrInvalidPermission)
	}
	perms := make([]domain.Permission, 0, len(input.Permissions))
	for _, raw := range input.Permissions {
		p, err := domain.ParsePermission(raw)
		if err != nil {
			return Issued{}, fmt.Errorf("%w: %q", err, raw)
		}
		perms = append(perms, p)
	}

	issued, err := s.issue(ctx, input.UserID, input.Name, perms, input.Expiry)
	if err != nil {
		return Issued{}, err
	}
	s.logger.Info("api key created",
		slog.String("user_id", input.UserID),
		slog.String("api_key_id", issued.Key.ID),
		slog.String("name", input.Name),
		slog.Time("expires_at", issued.Key.ExpiresAt),
	)
	return issued, nil
}

// Rollover replaces an expired key with a new one carrying the same name and
// permissions.
func (s *Service) Rollover(ctx context.Context, userID, expiredKeyID, expiry string) (Issued, error) {
	old, err := s.repo.FindByID(ctx, expiredKeyID)
	if err != nil {
		return Issued{}, err
	}
	if old.UserID != userID {
		return Issued{}, domain.ErrForbidden
	}
	if !old.Expired(s.now()) {
		return Issued{}, domain.ErrAPIKeyNotExpired
	}

	issued, err := s.issue(ctx, userID, old.Name, old.Permissions, expiry)
	if err != nil {
		return Issued{}, err
	}
	s.logger.Info("api key rolled over",
		slog.String("user_id", userID),
		slog.String("old_api_key_id", old.ID),
		slog.String("api_key_id", issued.Key.ID),
	)
	return issued, nil
}

// Revoke disables one of the user's keys.
func (s *Service) Revoke(ctx context.Context, userID, keyID string) error {
	k, err := s.repo.FindByID(ctx, keyID)
	if err != nil {
		return err
	}
	if k.UserID != userID {
		return domain.ErrForbidden
	}
	if err := s.repo.Revoke(ctx, keyID); err != nil {
		return err
	}
	s.logger.Info("api key revoked", slog.String("user_id", userID), slog.String("api_key_id", keyID))
	return nil
}

// List returns the user's keys.
func (s *Service) List(ctx context.Context, userID string) ([]domain.APIKey, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Authenticate resolves a presented secret to its key.
func (s *Service) Authenticate(ctx context.Context, secret string) (domain.APIKey, error) {
	if secret == "" {
		return domain.APIKey{}, domain.ErrInvalidAPIKey
	}
	k, err := s.repo.FindByFingerprint(ctx, fingerprint(secret))
	if errors.Is(err, domain.ErrAPIKeyNotFound) {
		return domain.APIKey{}, domain.ErrInvalidAPIKey
	}
	if err != nil {
		return domain.APIKey{}, err
	}
	if err := bcrypt.CompareHashAndPassword(k.Hash, []byte(secret)); err != nil {
		return domain.APIKey{}, domain.ErrInvalidAPIKey
	}
	if k.Revoked {
		return domain.APIKey{}, domain.ErrAPIKeyRevoked
	}
	if k.Expired(s.now()) {
		return domain.APIKey{}, domain.ErrAPIKeyExpired
	}
	return k, nil
}

func (s *Service) issue(ctx context.Context, userID, name string, perms []domain.Permission, expiry string) (Issued, error) {
	now := s.now()
	expiresAt, err := ParseExpiry(expiry, now)
	if err != nil {
		return Issued{}, err
	}

	secret, err := newSecret()
	if err != nil {
		return Issued{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return Issued{}, err
	}

	key := domain.APIKey{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Hash:        hash,
		Fingerprint: fingerprint(secret),
		Permissions: perms,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
	}
	if err := s.repo.Insert(ctx, key, s.maxActive, now); err != nil {
		return Issued{}, err
	}
	return Issued{Key: key, Secret: secret}, nil
}

// ParseExpiry turns a duration such as 1H, 30D, 6M or 1Y into an absolute
// expiry relative to now.
func ParseExpiry(raw string, now time.Time) (time.Time, error) {
	if !expiryPattern.MatchString(raw) {
		return time.Time{}, fmt.Errorf("%w: use 1H, 1D, 1M or 1Y", domain.ErrInvalidExpiry)
	}
	n, err := strconv.Atoi(raw[:len(raw)-1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", domain.ErrInvalidExpiry, err)
	}
	switch raw[len(raw)-1] {
	case 'H':
		return now.Add(time.Duration(n) * time.Hour), nil
	case 'D':
		return now.AddDate(0, 0, n), nil
	case 'M':
		return now.AddDate(0, n, 0), nil
	default:
		return now.AddDate(n, 0, 0), nil
	}
}

func newSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return secretPrefix + hex.EncodeToString(buf), nil
}

func fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
