package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/emandor/course_service/internal/apperr"
	"github.com/emandor/course_service/internal/cache"
	"github.com/emandor/course_service/internal/config"
	"github.com/emandor/course_service/internal/metrics"
	"github.com/emandor/course_service/internal/middleware"
	"github.com/emandor/course_service/internal/model"
	"github.com/emandor/course_service/internal/telemetry"
)

const (
	StateCookie    = "oauth_state"
	VerifierCookie = "oauth_code_verifier"
)

// Users resolves provider profiles to local accounts.
type Users interface {
	Provision(ctx context.Context, p model.Profile) (*model.User, bool, error)
	Get(ctx context.Context, id int64) (*model.User, error)
}

type Handler struct {
	cfg      *config.Config
	provider IdentityProvider
	users    Users
	ledger   *NonceLedger
	sessions *Sessions
	metrics  *metrics.Collector
	now      func() time.Time
}

func NewHandler(cfg *config.Config, provider IdentityProvider, users Users, kv cache.Store, m *metrics.Collector) *Handler {
	return &Handler{
		cfg:      cfg,
		provider: provider,
		users:    users,
		ledger:   NewNonceLedger(kv, cfg.OAuthStateTTL),
		sessions: NewSessions(kv, cfg.SessionTTL),
		metrics:  m,
		now:      time.Now,
	}
}

func (h *Handler) CookieName() string { return h.cfg.SessionCookieName }

// Resolve implements middleware.SessionProvider.
func (h *Handler) Resolve(ctx context.Context, sid string) (int64, bool, error) {
	return h.sessions.Lookup(ctx, sid)
}

// GoogleLogin starts the authorization code flow.
func (h *Handler) GoogleLogin(c *fiber.Ctx) error {
	log := telemetry.Req(middleware.RequestIDFrom(c))

	state, err := newState(h.now())
	if err != nil {
		log.Error().Err(err).Msg("oauth_state_generation_failed")
		return err
	}
	verifier, err := newSecret()
	if err != nil {
		log.Error().Err(err).Msg("oauth_verifier_generation_failed")
		return err
	}

	h.setFlowCookie(c, StateCookie, state)
	h.setFlowCookie(c, VerifierCookie, verifier)

	log.Info().Msg("google_login_redirect")
	return c.Redirect(h.provider.AuthURL(state, verifier), http.StatusFound)
}

type callbackInput struct {
	Code        string
	State       string
	StoredState string
	Verifier    string
}

// validate runs every local check, cheapest first. Only the final step has a
// side effect: the state is burned so the pair cannot be replayed.
func (h *Handler) validate(ctx context.Context, in callbackInput) error {
	const op = "oauth.callback"
	switch {
	case in.Code == "":
		return apperr.Validation(op, "missing code")
	case in.State == "":
		return apperr.Validation(op, "missing state")
	case subtle.ConstantTimeCompare([]byte(in.State), []byte(in.StoredState)) != 1:
		return apperr.Validation(op, "state mismatch")
	case in.Verifier == "":
		return apperr.Validation(op, "missing verifier")
	}
	if err := checkStateAge(in.State, h.now(), h.cfg.OAuthStateTTL); err != nil {
		return &apperr.Error{Kind: apperr.KindValidation, Op: op, Public: "state expired", Err: err}
	}
	if err := h.ledger.Consume(ctx, in.State); err != nil {
		if errors.Is(err, errStateReplayed) {
			return &apperr.Error{Kind: apperr.KindValidation, Op: op, Public: "state already used", Err: err}
		}
		return apperr.Storage(op+".consume", err)
	}
	return nil
}

// GoogleCallback completes the flow started by GoogleLogin.
func (h *Handler) GoogleCallback(c *fiber.Ctx) error {
	log := telemetry.Req(middleware.RequestIDFrom(c))
	ctx := c.UserContext()

	in := callbackInput{
		Code:        c.Query("code"),
		State:       c.Query("state"),
		StoredState: c.Cookies(StateCookie),
		Verifier:    c.Cookies(VerifierCookie),
	}
	// the pair is single-use whatever the outcome
	if in.StoredState != "" || in.Verifier != "" {
		h.clearFlowCookies(c)
	}

	if err := h.validate(ctx, in); err != nil {
		if apperr.Status(err) == http.StatusBadRequest {
			log.Warn().Err(err).Msg("oauth_callback_rejected")
			h.metrics.Login("rejected")
		} else {
			log.Error().Err(err).Msg("oauth_nonce_ledger_failed")
			h.metrics.Login("error")
		}
		return err
	}

	profile, err := h.provider.Exchange(ctx, in.Code, in.Verifier)
	if err != nil {
		log.Error().Err(err).Msg("oauth_exchange_failed")
		h.metrics.Login("provider_error")
		return apperr.AuthProvider("oauth.exchange", err)
	}
	log.Info().Str("sub", profile.Subject).Msg("login_userinfo")

	u, created, err := h.users.Provision(ctx, *profile)
	if err != nil {
		log.Error().Err(err).Str("sub", profile.Subject).Msg("user_provision_failed")
		h.metrics.Login("storage_error")
		return authFailure(err)
	}
	log.Info().Int64("user_id", u.ID).Bool("created", created).Msg("user_provisioned")

	sid, err := h.sessions.Create(ctx, u.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", u.ID).Msg("session_create_failed")
		h.metrics.Login("storage_error")
		return authFailure(apperr.Storage("session.create", err))
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
		HTTPOnly: true,
		Secure:   h.cfg.Production(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	h.metrics.Login("success")
	return c.Redirect(h.cfg.FrontendURL+"/dashboard", http.StatusFound)
}

// authFailure keeps the failure kind for status mapping but hides which
// step broke.
func authFailure(err error) error {
	e, ok := apperr.As(err)
	if !ok {
		return &apperr.Error{Kind: apperr.KindStorage, Op: "oauth.callback", Public: "authentication failed", Err: err}
	}
	if e.Kind == apperr.KindValidation {
		return err
	}
	return &apperr.Error{Kind: e.Kind, Op: e.Op, Public: "authentication failed", Err: e.Err}
}

// Me returns the account bound to the current session.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid := middleware.UserIDFrom(c)
	u, err := h.users.Get(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Unauthorized("auth.me")
		}
		return err
	}
	return c.JSON(u.View())
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	sid := c.Cookies(h.cfg.SessionCookieName)
	if sid != "" {
		if err := h.sessions.Delete(c.UserContext(), sid); err != nil {
			telemetry.Req(middleware.RequestIDFrom(c)).Warn().Err(err).Msg("session_delete_failed")
		}
	}
	h.expireCookie(c, h.cfg.SessionCookieName)
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) setFlowCookie(c *fiber.Ctx, name, value string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(h.cfg.OAuthStateTTL.Seconds()),
		HTTPOnly: true,
		Secure:   h.cfg.Production(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *Handler) clearFlowCookies(c *fiber.Ctx) {
	h.expireCookie(c, StateCookie)
	h.expireCookie(c, VerifierCookie)
}

func (h *Handler) expireCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cfg.Production(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
