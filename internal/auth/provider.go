package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"

	"github.com/emandor/course_service/internal/model"
)

const defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// IdentityProvider is the external half of the login flow.
type IdentityProvider interface {
	AuthURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*model.Profile, error)
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// overridable for tests
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	RPS     int
	Burst   int
	Timeout time.Duration
}

type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	client      *http.Client
	limiter     *rate.Limiter
}

func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultUserInfoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	lim := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RPS), max(cfg.Burst, 1))
	}

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userInfoURL: cfg.UserInfoURL,
		client:      &http.Client{Timeout: cfg.Timeout},
		limiter:     lim,
	}
}

func (p *GoogleProvider) AuthURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades the code for a token and resolves the caller's profile.
// Each step is attempted once.
func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (*model.Profile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("provider throttled: %w", err)
	}
	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("provider throttled: %w", err)
	}
	ui, err := p.fetchUserinfo(ctx, tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}
	return &model.Profile{
		Subject:   string(ui.Sub),
		Name:      ui.Name,
		Email:     ui.Email,
		AvatarURL: ui.Picture,
	}, nil
}

type googleUserInfo struct {
	Sub     subject `json:"sub"`
	Email   string  `json:"email"`
	Name    string  `json:"name"`
	Picture string  `json:"picture"`
}

// subject accepts both string and numeric identifiers.
type subject string

func (s *subject) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = subject(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = subject(n.String())
	return nil
}

func (p *GoogleProvider) fetchUserinfo(ctx context.Context, accessToken string) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var ui googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&ui); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if strings.TrimSpace(string(ui.Sub)) == "" {
		return nil, errors.New("missing sub")
	}
	return &ui, nil
}
