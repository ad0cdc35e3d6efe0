package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// refreshMargin triggers a refresh when the token is within this
// window of its expiry. A token that dies mid-request costs a whole
// resolution pass, so we renew early.
const refreshMargin = 120 * time.Second

// TokenProvider owns the marketplace OAuth token lifecycle. All
// access goes through the mutexed Token/ForceRefresh pair, so
// concurrent callers never issue overlapping refreshes: a stale
// refresh_token would invalidate the newer one.
type TokenProvider struct {
	mu           sync.Mutex
	path         string
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *zap.Logger

	cached *models.AccessToken
}

// NewTokenProvider creates a token provider backed by the JSON token
// record at path.
func NewTokenProvider(apiBase, clientID, clientSecret, path string) *TokenProvider {
	return &TokenProvider{
		path:         path,
		tokenURL:     apiBase + "/oauth/token",
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 20 * time.Second},
		logger:       util.GetLogger(),
	}
}

// Token returns a valid bearer token, refreshing first if the current
// record expires within the safety margin.
func (tp *TokenProvider) Token(ctx context.Context) (string, error) {
	return tp.token(ctx, false)
}

// ForceRefresh discards the current access token and refreshes
// immediately.
func (tp *TokenProvider) ForceRefresh(ctx context.Context) (string, error) {
	return tp.token(ctx, true)
}

func (tp *TokenProvider) token(ctx context.Context, force bool) (string, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.cached == nil {
		tok, err := tp.load()
		if err != nil {
			return "", err
		}
		tp.cached = tok
	}

	if !force && time.Now().Before(tp.cached.ExpiresAt.Add(-refreshMargin)) {
		return tp.cached.AccessToken, nil
	}

	tok, err := tp.refresh(ctx, tp.cached.RefreshToken)
	if err != nil {
		return "", err
	}
	tp.cached = tok
	return tok.AccessToken, nil
}

func (tp *TokenProvider) load() (*models.AccessToken, error) {
	raw, err := os.ReadFile(tp.path)
	if err != nil {
		return nil, &models.AuthError{Reason: "token record missing", Err: err}
	}
	var tok models.AccessToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, &models.AuthError{Reason: "token record corrupt", Err: err}
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return nil, &models.AuthError{Reason: "token record incomplete"}
	}
	return &tok, nil
}

// refreshResponse is the OAuth token endpoint payload.
type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (tp *TokenProvider) refresh(ctx context.Context, refreshToken string) (*models.AccessToken, error) {
	tp.logger.Debug("Refreshing marketplace token")

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {tp.clientID},
		"client_secret": {tp.clientSecret},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tp.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &models.AuthError{Reason: "refresh request build failed", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tp.httpClient.Do(req)
	if err != nil {
		return nil, &models.AuthError{Reason: "refresh call failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.AuthError{Reason: fmt.Sprintf("refresh returned %d", resp.StatusCode)}
	}

	var rr refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, &models.AuthError{Reason: "refresh response malformed", Err: err}
	}

	now := time.Now()
	tok := &models.AccessToken{
		AccessToken:  rr.AccessToken,
		RefreshToken: rr.RefreshToken,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(rr.ExpiresIn) * time.Second),
	}
	// Some refresh responses omit the rotated refresh token; keep the
	// last known one in that case.
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}

	if err := tp.persist(tok); err != nil {
		return nil, err
	}

	util.TokenRefreshTotal.Inc()
	tp.logger.Info("Marketplace token refreshed",
		zap.Time("expires_at", tok.ExpiresAt))
	return tok, nil
}

// persist writes the token record atomically: partial writes must
// never corrupt the only copy of the refresh token.
func (tp *TokenProvider) persist(tok *models.AccessToken) error {
	raw, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return &models.AuthError{Reason: "token record encode failed", Err: err}
	}

	tmp := tp.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(tp.path), 0o755); err != nil {
		return &models.AuthError{Reason: "token directory create failed", Err: err}
	}
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return &models.AuthError{Reason: "token record write failed", Err: err}
	}
	if err := os.Rename(tmp, tp.path); err != nil {
		return &models.AuthError{Reason: "token record rename failed", Err: err}
	}
	return nil
}
