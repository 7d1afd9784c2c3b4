package websocket

import (
	"context"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/preppr/internal/auth"
)

// HouseholdFunc resolves the household a user currently belongs to. ok is
// false for users without one.
type HouseholdFunc func(ctx context.Context, userID int64) (householdID int64, ok bool, err error)

// HandleWebSocket upgrades authenticated requests and runs them as Hub
// clients.
func HandleWebSocket(hub *Hub, households HouseholdFunc, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := auth.Require(r.Context())
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		householdID, _, err := households(r.Context(), p.UserID)
		if err != nil {
			logger.Error("resolve household", "user_id", p.UserID, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, p.UserID, householdID)
		client.Run(r.Context())
	}
}
