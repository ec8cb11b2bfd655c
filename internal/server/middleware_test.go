package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
	"auction-house/services/bidding/helpers"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator map[string]error

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (model.Account, error) {
	if err, ok := s[token]; ok && err != nil {
		return model.Account{}, err
	}
	return model.Account{AccountID: "acc-" + token}, nil
}

func TestSessionMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	auth := stubAuthenticator{
		"good":    nil,
		"expired": fmt.Errorf("service: %w - session expired", auctionerrors.ErrUnauthenticated),
		"broken":  errors.New("db failure"),
	}

	router := gin.New()
	router.Use(SessionMiddleware(auth))
	router.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, helpers.AccountIDOf(helpers.CurrentAccount(c)))
	})

	tests := []struct {
		name     string
		token    string
		cookie   bool
		expected string
	}{
		{name: "anonymous", expected: ""},
		{name: "bearer", token: "good", expected: "acc-good"},
		{name: "cookie", token: "good", cookie: true, expected: "acc-good"},
		{name: "expired_is_anonymous", token: "expired", expected: ""},
		{name: "store_error_is_anonymous", token: "broken", expected: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			switch {
			case tc.token != "" && tc.cookie:
				req.AddCookie(&http.Cookie{Name: helpers.SessionCookie, Value: tc.token})
			case tc.token != "":
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			require.Equal(t, tc.expected, w.Body.String())
		})
	}
}
