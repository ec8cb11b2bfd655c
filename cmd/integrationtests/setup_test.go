package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auction-house/config"
	account "auction-house/internal/accountService"
	bidding "auction-house/internal/biddingService"
	"auction-house/internal/repository"
	"auction-house/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testCategories = []string{"electronics", "books", "art"}

// backends lists the stores every API test runs against
var backends = []struct {
	name string
	open func(t *testing.T) repository.AuctionDB
}{
	{name: "memory", open: func(*testing.T) repository.AuctionDB { return repository.NewMemoryRepo() }},
	{name: "sqlite", open: openSQLite},
}

func openSQLite(t *testing.T) repository.AuctionDB {
	t.Helper()

	db, err := repository.Open(context.Background(), &config.StoreConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewGormRepo(db)
}

// SetupTestRouter wires the full application on top of repo
func SetupTestRouter(repo repository.AuctionDB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	biddingSvc := bidding.NewBiddingService(repo, testCategories)
	accountSvc := account.NewAccountService(repo, time.Hour).WithHashCost(bcrypt.MinCost)
	return server.SetupRouter(biddingSvc, accountSvc, repo)
}

// forEachBackend runs test once per store with a fresh router
func forEachBackend(t *testing.T, test func(t *testing.T, router *gin.Engine)) {
	for _, b := range backends {
		b := b
		t.Run(b.name, func(t *testing.T) {
			test(t, SetupTestRouter(b.open(t)))
		})
	}
}

// apiResponse is the envelope every endpoint answers with
type apiResponse struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// ExecuteRequest sends a JSON request as the holder of token, if any, and
// parses the envelope.
func ExecuteRequest(t *testing.T, router *gin.Engine, method, url, token string, body any) (apiResponse, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		require.NoError(t, err, "failed to marshal body")
	}

	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "failed to unmarshal response: %s", w.Body.String())
	return resp, w
}

// decodeData unmarshals the envelope's data into out
func decodeData(t *testing.T, resp apiResponse, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

// registerAccount signs up username and returns its session token
func registerAccount(t *testing.T, router *gin.Engine, username string) string {
	t.Helper()

	resp, w := ExecuteRequest(t, router, http.MethodPost, "/register", "", map[string]string{
		"username":     username,
		"email":        username + "@example.com",
		"password":     "correct horse",
		"confirmation": "correct horse",
	})
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)

	var session struct {
		Token string `json:"token"`
	}
	decodeData(t, resp, &session)
	require.NotEmpty(t, session.Token)
	return session.Token
}

// createListing posts a listing as token's account and returns its id
func createListing(t *testing.T, router *gin.Engine, token, title, startingBid, category string) string {
	t.Helper()

	resp, w := ExecuteRequest(t, router, http.MethodPost, "/listings", token, map[string]string{
		"title":        title,
		"description":  title + " in good condition",
		"starting_bid": startingBid,
		"category":     category,
	})
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)

	var listing struct {
		ListingID string `json:"listing_id"`
	}
	decodeData(t, resp, &listing)
	require.NotEmpty(t, listing.ListingID)
	return listing.ListingID
}
