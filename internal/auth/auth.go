// Package auth provides optional external validation of the address a
// client claims in its hello.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lox/rpsforbots/internal/game"
)

// DefaultTimeout bounds one call to the validation service.
const DefaultTimeout = 500 * time.Millisecond

var (
	// ErrInvalidToken indicates the token is definitively invalid.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable indicates the auth service is unreachable or unavailable.
	ErrUnavailable = errors.New("auth: unavailable")
)

// Identity is the address a valid token is bound to.
type Identity struct {
	Address game.Address `json:"address"`
}

// Validator validates authentication tokens. A nil identity with a nil
// error means authentication is disabled.
type Validator interface {
	Validate(ctx context.Context, token string) (*Identity, error)
}

// HTTPValidator validates tokens via HTTP callback to external service.
type HTTPValidator struct {
	url         string
	client      *http.Client
	adminSecret string
	timeout     time.Duration
}

// NewHTTPValidator creates a validator that posts tokens to url.
func NewHTTPValidator(url string, adminSecret string) *HTTPValidator {
	return &HTTPValidator{
		url:         url,
		adminSecret: adminSecret,
		timeout:     DefaultTimeout,
		client:      &http.Client{Timeout: DefaultTimeout},
	}
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid   bool         `json:"valid"`
	Address game.Address `json:"address,omitempty"`
	Error   string       `json:"error,omitempty"`
}

func (v *HTTPValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	reqBody, err := json.Marshal(validateRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", v.adminSecret)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var authResp validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&authResp); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrUnavailable, err)
	}
	if !authResp.Valid || authResp.Address == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{Address: authResp.Address}, nil
}

// NoopValidator accepts every hello (dev mode).
type NoopValidator struct{}

func (NoopValidator) Validate(context.Context, string) (*Identity, error) {
	return nil, nil
}

// Check validates token and confirms it is bound to addr.
func Check(ctx context.Context, v Validator, addr game.Address, token string) error {
	id, err := v.Validate(ctx, token)
	if err != nil {
		return err
	}
	if id != nil && id.Address != addr {
		return fmt.Errorf("%w: token belongs to %s", ErrInvalidToken, id.Address)
	}
	return nil
}
