package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/trivia-duel/pkg/http/errors"
)

type ctxKey struct{}

func IntoContext(ctx context.Context, p Player) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Player, bool) {
	p, ok := ctx.Value(ctxKey{}).(Player)
	return p, ok
}

// TokenFromRequest reads "Authorization: Bearer <token>", falling back to the token query
// parameter for WebSocket clients that cannot set headers.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Middleware resolves the player from the request token. Requests without a valid token
// are rejected.
func Middleware(m *Manager, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Identity token required")
				return
			}
			claims, err := m.Validate(token)
			if err != nil {
				logger.Warn().Err(err).Msg("identity token rejected")
				code := httperrors.ErrCodeInvalidToken
				if errors.Is(err, ErrExpiredToken) {
					code = httperrors.ErrCodeTokenExpired
				}
				httperrors.RespondUnauthorized(w, code, "Invalid or expired identity token")
				return
			}
			next.ServeHTTP(w, r.WithContext(IntoContext(r.Context(), claims.Player())))
		})
	}
}

// IssueResponse is returned by the identity endpoint.
type IssueResponse struct {
	Player
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Handler serves POST /v1/identity. A request carrying a valid token gets a renewed token
// for the same player; otherwise a new player is generated.
func Handler(m *Manager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Use POST")
			return
		}

		p := NewPlayer()
		if token := TokenFromRequest(r); token != "" {
			if claims, err := m.Validate(token); err == nil {
				p = claims.Player()
			}
		}

		signed, expires, err := m.Issue(p)
		if err != nil {
			logger.Error().Err(err).Msg("failed to sign identity token")
			httperrors.RespondInternalError(w, "Could not issue identity")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(IssueResponse{Player: p, Token: signed, ExpiresAt: expires})
	}
}
