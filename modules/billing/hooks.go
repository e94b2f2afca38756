package billing

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/subsync/handler"
	"github.com/dmitrymomot/subsync/pkg/binder"
	"github.com/dmitrymomot/subsync/pkg/subscription"
	"github.com/dmitrymomot/subsync/pkg/validator"
)

// AccountHooks is the part of subscription.Engine driven by the host
// application's account lifecycle.
type AccountHooks interface {
	OnRegister(ctx context.Context, userID int64, email string) (*subscription.Record, error)
	OnLogin(ctx context.Context, userID int64)
	ResetTrial(ctx context.Context, userID int64) error
	Forget(ctx context.Context, userID int64) error
}

// WithAccountHooks mounts the internal account routes under /internal,
// guarded by a bearer token. An empty token leaves them unmounted.
func WithAccountHooks(h AccountHooks, token string) Option {
	return func(m *Module) {
		if h != nil && token != "" {
			m.hooks = h
			m.hooksToken = token
		}
	}
}

type registeredRequest struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

type recordResponse struct {
	UserID    int64  `json:"user_id"`
	Tier      string `json:"tier"`
	Status    string `json:"status"`
	TrialUsed bool   `json:"trial_used"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (m *Module) hookRoutes(r chi.Router) {
	r.Use(requireBearer(m.hooksToken))

	r.Post("/users/registered", handler.Wrap(handler.HandlerFunc[handler.Context, registeredRequest](m.registered),
		handler.WithBinder[handler.Context, registeredRequest](binder.JSON(binder.WithMaxSize(m.maxBody))),
		handler.WithErrorHandler[handler.Context, registeredRequest](m.errs),
	))
	r.Post("/users/{userID}/login", m.userHook(m.login))
	r.Post("/users/{userID}/reset-trial", m.userHook(m.resetTrial))
	r.Delete("/users/{userID}", m.userHook(m.forget))
}

func (m *Module) registered(ctx handler.Context, req registeredRequest) handler.Response {
	email := strings.TrimSpace(req.Email)
	rules := []validator.Rule{validator.Positive("user_id", req.UserID)}
	if email != "" {
		rules = append(rules, validator.ValidEmail("email", email))
	}
	if err := validator.Apply(rules...); err != nil {
		return handler.JSONError(err)
	}

	rec, err := m.hooks.OnRegister(ctx, req.UserID, email)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(recordResponse{
		UserID:    rec.UserID,
		Tier:      rec.Tier,
		Status:    rec.Status.String(),
		TrialUsed: rec.TrialUsed,
	})
}

func (m *Module) login(ctx handler.Context, userID int64) handler.Response {
	m.hooks.OnLogin(ctx, userID)
	return handler.JSON(okResponse{OK: true})
}

func (m *Module) resetTrial(ctx handler.Context, userID int64) handler.Response {
	if err := m.hooks.ResetTrial(ctx, userID); err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(okResponse{OK: true})
}

func (m *Module) forget(ctx handler.Context, userID int64) handler.Response {
	if err := m.hooks.Forget(ctx, userID); err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(okResponse{OK: true})
}

// userHook binds the {userID} path parameter.
func (m *Module) userHook(fn func(handler.Context, int64) handler.Response) http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[handler.Context, int64](fn),
		handler.WithBinder[handler.Context, int64](bindUserID),
		handler.WithErrorHandler[handler.Context, int64](m.errs),
	)
}

func bindUserID(r *http.Request, v any) error {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		return subscription.ErrInvalidUserID
	}
	*(v.(*int64)) = id
	return nil
}

// requireBearer rejects requests whose Authorization header does not carry token.
func requireBearer(token string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				_ = handler.JSONError(handler.ErrUnauthorized).Render(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
