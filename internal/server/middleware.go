package server

import (
	"context"
	"errors"
	"time"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
	"auction-house/services/bidding/helpers"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
)

// Authenticator resolves a session token to the account it belongs to
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.Account, error)
}

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"status":     c.Writer.Status(),
		"latency":    time.Since(start).String(),
		"account_id": helpers.AccountIDOf(helpers.CurrentAccount(c)),
	})
}

// SessionMiddleware attaches the signed-in account, if any, to the request.
// Requests without a valid session continue anonymously; each operation
// decides whether it needs an account.
func SessionMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := helpers.SessionToken(c)
		if token == "" {
			c.Next()
			return
		}

		account, err := auth.Authenticate(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(helpers.AccountContextKey, &account)
		case errors.Is(err, auctionerrors.ErrUnauthenticated):
			utils.Debug("SessionMiddleware: ignoring invalid session", map[string]any{"error": err.Error()})
		default:
			utils.Error("SessionMiddleware: failed to authenticate", map[string]any{"error": err.Error()})
		}

		c.Next()
	}
}
