// Package membership coordinates the household, emergency-group and admin
// invitation workflows. Every operation takes the acting principal
// explicitly.
package membership

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/email"
	"github.com/dukerupert/preppr/internal/model"
	"github.com/dukerupert/preppr/internal/password"
	"github.com/dukerupert/preppr/internal/store"
	"github.com/dukerupert/preppr/internal/token"
	"github.com/dukerupert/preppr/internal/websocket"
)

// Notifier receives membership events after their transaction commits.
type Notifier interface {
	PublishHousehold(householdID int64, msg websocket.Message)
	PublishUser(userID int64, msg websocket.Message)
}

type nopNotifier struct{}

func (nopNotifier) PublishHousehold(int64, websocket.Message) {}
func (nopNotifier) PublishUser(int64, websocket.Message)      {}

const defaultUsernameAttempts = 5

var validate = validator.New()

type Config struct {
	// FrontendURL is the base of links sent by email.
	FrontendURL string
	// UsernameAttempts bounds admin pseudo-username generation.
	UsernameAttempts uint64
}

type Coordinator struct {
	store    *store.Store
	codec    *token.Codec
	hasher   *password.Hasher
	mailer   email.Mailer
	notifier Notifier
	logger   *slog.Logger

	frontendURL      string
	usernameAttempts uint64
	newUsername      func() (string, error)
}

func New(st *store.Store, codec *token.Codec, hasher *password.Hasher, mailer email.Mailer, notifier Notifier, cfg Config, logger *slog.Logger) *Coordinator {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if cfg.UsernameAttempts == 0 {
		cfg.UsernameAttempts = defaultUsernameAttempts
	}
	return &Coordinator{
		store:            st,
		codec:            codec,
		hasher:           hasher,
		mailer:           mailer,
		notifier:         notifier,
		logger:           logger.With("component", "membership"),
		frontendURL:      strings.TrimRight(cfg.FrontendURL, "/"),
		usernameAttempts: cfg.UsernameAttempts,
		newUsername:      randomUsername,
	}
}

func (c *Coordinator) link(path, tok string) string {
	return c.frontendURL + path + "?token=" + url.QueryEscape(tok)
}

// actingUser loads the principal's user row.
func actingUser(ctx context.Context, st *store.Store, actor auth.Principal) (*model.User, error) {
	u, err := st.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Upstream(err, "load user")
	}
	if u == nil {
		return nil, apperr.NotFound("user not found")
	}
	return u, nil
}

// actingHousehold loads the principal's household. Users without one get
// NotFound.
func actingHousehold(ctx context.Context, st *store.Store, actor auth.Principal) (*model.User, *model.Household, error) {
	u, err := actingUser(ctx, st, actor)
	if err != nil {
		return nil, nil, err
	}
	if u.HouseholdID == nil {
		return u, nil, apperr.NotFound("household not found")
	}
	h, err := st.Households.GetByID(ctx, *u.HouseholdID)
	if err != nil {
		return u, nil, apperr.Upstream(err, "load household")
	}
	if h == nil {
		return u, nil, apperr.NotFound("household not found")
	}
	return u, h, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
