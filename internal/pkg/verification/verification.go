// Package verification implements the single-use email verification flow:
// a signup hands out a short-lived token, following the link consumes it at
// most once, provisions the user in the admin API and sends the welcome
// mail. Token storage rides on the ephemeral token store, so a primary
// store outage degrades rather than blocking signups.
package verification

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/meetloom/billing-sync/internal/pkg/adminapi"
	"github.com/meetloom/billing-sync/internal/pkg/tokenstore"
)

// TokenTTL is the verification window.
const TokenTTL = 24 * time.Hour

const keyPrefix = "verification:"

var errEmailRequired = errors.New("email is required")

// TokenData is the signup payload carried by a verification token.
type TokenData struct {
	Email           string `json:"email"`
	Company         string `json:"company"`
	CompanyBusiness string `json:"companyBusiness,omitempty"`
	CompanySize     string `json:"companySize,omitempty"`
	UseCase         string `json:"useCase,omitempty"`
	CreatedAt       int64  `json:"createdAt"`
}

// Result is the terminal state of a verification attempt, mapped by the
// HTTP layer onto redirect targets.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailed  Result = "failed"
	ResultExpired Result = "expired"
)

// AdminClient is the slice of the admin API the flow needs.
type AdminClient interface {
	FindOrCreateUser(ctx context.Context, email, name string) (*adminapi.User, error)
}

// Service drives the token lifecycle: created → read → deleted on success
// or expired and purged.
type Service struct {
	store *tokenstore.Store
	admin AdminClient

	sendWelcome func(to, name string) error
	now         func() time.Time
}

// NewService wires the flow. sendWelcome may be nil to disable the welcome
// mail (tests, environments without SMTP).
func NewService(store *tokenstore.Store, admin AdminClient, sendWelcome func(to, name string) error) *Service {
	return &Service{
		store:       store,
		admin:       admin,
		sendWelcome: sendWelcome,
		now:         time.Now,
	}
}

// CreateToken stores data under a fresh unguessable token and returns it.
func (s *Service) CreateToken(ctx context.Context, data TokenData) (string, error) {
	if strings.TrimSpace(data.Email) == "" {
		return "", errEmailRequired
	}
	data.CreatedAt = s.now().Unix()

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	payload, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	s.store.Put(ctx, keyPrefix+token, payload, TokenTTL)
	return token, nil
}

// Verify consumes a token. The token is deleted on success; an expired
// token is purged on sight. Admin API trouble is logged but does not block
// the verification itself; the user record can be reconciled later by the
// next webhook.
func (s *Service) Verify(ctx context.Context, token string) Result {
	token = strings.TrimSpace(token)
	if token == "" {
		return ResultFailed
	}
	key := keyPrefix + token

	payload, ok := s.store.Get(ctx, key)
	if !ok {
		log.Printf("[verification] no data for token %s...", tokenPreview(token))
		return ResultFailed
	}

	var data TokenData
	if err := json.Unmarshal(payload, &data); err != nil {
		log.Printf("[verification] corrupt token payload: %v", err)
		s.store.Delete(ctx, key)
		return ResultFailed
	}

	// The store enforces the TTL, but the fallback table computes its own
	// deadline; the createdAt check keeps the 24h window authoritative.
	if data.CreatedAt > 0 && s.now().Sub(time.Unix(data.CreatedAt, 0)) > TokenTTL {
		s.store.Delete(ctx, key)
		return ResultExpired
	}

	if _, err := s.admin.FindOrCreateUser(ctx, data.Email, data.Company); err != nil {
		// Do not block the verification on admin API issues.
		log.Printf("[verification] admin user provisioning failed for %s: %v", data.Email, err)
	}

	if s.sendWelcome != nil {
		if err := s.sendWelcome(data.Email, data.Company); err != nil {
			log.Printf("[verification] welcome mail failed for %s: %v", data.Email, err)
		}
	}

	s.store.Delete(ctx, key)
	return ResultSuccess
}

func tokenPreview(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
