package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/handler"
	"github.com/dukerupert/preppr/internal/membership"
	"github.com/dukerupert/preppr/internal/middleware"
	"github.com/dukerupert/preppr/internal/session"
	"github.com/dukerupert/preppr/internal/token"
	ws "github.com/dukerupert/preppr/internal/websocket"
)

// Config carries the HTTP-level settings.
type Config struct {
	SecureCookie   bool
	AllowedOrigins []string
	// RateLimit caps requests per IP per minute on the credential endpoints.
	RateLimit int
	// TrustedProxies may set CF-Connecting-IP and X-Forwarded-For.
	TrustedProxies []netip.Prefix
}

type Server struct {
	codec       *token.Codec
	hub         *ws.Hub
	members     *membership.Coordinator
	authH       *handler.AuthHandler
	householdH  *handler.HouseholdHandler
	invitationH *handler.InvitationHandler
	groupH      *handler.EmergencyGroupHandler
	adminH      *handler.AdminHandler
	rateLimiter *middleware.RateLimiter
	clientIP    *middleware.ClientIP
	cfg         Config
	logger      *slog.Logger
}

func New(codec *token.Codec, sessions *session.Service, members *membership.Coordinator, hub *ws.Hub, cfg Config, logger *slog.Logger) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	return &Server{
		codec:       codec,
		hub:         hub,
		members:     members,
		authH:       handler.NewAuthHandler(sessions, cfg.SecureCookie, logger.With("component", "auth")),
		householdH:  handler.NewHouseholdHandler(members, logger.With("component", "household")),
		invitationH: handler.NewInvitationHandler(members, logger.With("component", "invitation")),
		groupH:      handler.NewEmergencyGroupHandler(members, logger.With("component", "emergency_group")),
		adminH:      handler.NewAdminHandler(members, logger.With("component", "admin")),
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimit, time.Minute),
		clientIP:    middleware.NewClientIP(cfg.TrustedProxies...),
		cfg:         cfg,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Auth
	mux.HandleFunc("POST /auth/register", s.rateLimitedHandler(s.authH.Register))
	mux.HandleFunc("POST /auth/login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("POST /auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /auth/verify-email", s.authH.VerifyEmail)
	mux.HandleFunc("POST /auth/verify-email/resend", s.rateLimitedHandler(s.authH.ResendVerification))
	mux.HandleFunc("POST /auth/password-reset", s.rateLimitedHandler(s.authH.RequestPasswordReset))
	mux.HandleFunc("POST /auth/password-reset/confirm", s.rateLimitedHandler(s.authH.ConfirmPasswordReset))
	mux.HandleFunc("POST /auth/2fa/verify", s.rateLimitedHandler(s.authH.VerifyTwoFactor))
	mux.HandleFunc("GET /auth/me", s.authH.Me)

	// Households
	member := middleware.RequireCapability(auth.CapManageMembership)
	mux.Handle("POST /households", member(http.HandlerFunc(s.householdH.Create)))
	mux.Handle("GET /households/me", member(http.HandlerFunc(s.householdH.Mine)))
	mux.Handle("POST /households/{householdId}/join-requests", member(http.HandlerFunc(s.householdH.RequestToJoin)))
	mux.Handle("GET /households/join-requests", member(http.HandlerFunc(s.householdH.ListJoinRequests)))
	mux.Handle("PATCH /households/join-requests/{requestId}/accept", member(http.HandlerFunc(s.householdH.AcceptJoinRequest)))
	mux.Handle("PATCH /households/join-requests/{requestId}/decline", member(http.HandlerFunc(s.householdH.DeclineJoinRequest)))

	// Household invitations; verify is open to anyone holding a link.
	mux.Handle("POST /household-invitations", member(http.HandlerFunc(s.invitationH.Create)))
	mux.HandleFunc("GET /household-invitations/verify", s.invitationH.Verify)
	mux.Handle("POST /household-invitations/accept", member(http.HandlerFunc(s.invitationH.Accept)))

	// Emergency groups
	mux.Handle("POST /emergency-groups", member(http.HandlerFunc(s.groupH.Create)))
	mux.Handle("POST /emergency-groups/invite/{householdName}", member(http.HandlerFunc(s.groupH.InviteHousehold)))
	mux.Handle("PATCH /emergency-groups/answer-invitation/{groupId}", member(http.HandlerFunc(s.groupH.AnswerInvitation)))
	mux.Handle("GET /emergency-groups/invitations", member(http.HandlerFunc(s.groupH.ListInvitations)))

	// Admins
	mux.Handle("POST /admin/invite", middleware.RequireCapability(auth.CapInviteAdmin)(http.HandlerFunc(s.adminH.Invite)))
	mux.HandleFunc("POST /admin/register", s.rateLimitedHandler(s.adminH.Register))
	superAdmin := middleware.RequireCapability(auth.CapRemoveAdmin)
	mux.Handle("GET /super-admin/admins", superAdmin(http.HandlerFunc(s.adminH.List)))
	mux.Handle("DELETE /super-admin/admins/{adminId}", superAdmin(http.HandlerFunc(s.adminH.Remove)))

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.members.HouseholdOf, s.cfg.AllowedOrigins, s.logger.With("component", "websocket")))

	authMiddleware := middleware.Authenticate(s.codec, s.logger.With("component", "gate"), middleware.PublicPrefixes...)
	return middleware.RequestLogger(s.logger.With("component", "http"), s.clientIP)(authMiddleware(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return s.clientIP.Resolve(r) + " " + r.URL.Path
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc)(h).ServeHTTP
}
