package handler

import (
	"context"
	"net/http"
	"time"

	account "auction-house/internal/accountService"
	model "auction-house/internal/models"
	"auction-house/services/bidding/helpers"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=account_handler.go -destination=mock_account_handler.go -package=handler

type AccountServiceInterface interface {
	Register(ctx context.Context, in account.RegisterInput) (model.Account, model.Session, error)
	Login(ctx context.Context, username, password string) (model.Account, model.Session, error)
	Logout(ctx context.Context, token string) error
}

type AccountHandler struct {
	service AccountServiceInterface
}

func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// RegisterHandler handles POST /register
func (h *AccountHandler) RegisterHandler(c *gin.Context) {
	var req helpers.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		helpers.HandleBindError(c, "RegisterHandler", err)
		return
	}

	acct, session, err := h.service.Register(c.Request.Context(), account.RegisterInput{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Password:     req.Password,
		Confirmation: req.Confirmation,
	})
	if err != nil {
		helpers.HandleServiceError(c, "RegisterHandler", err, map[string]any{"username": req.Username})
		return
	}

	setSessionCookie(c, session)
	utils.JSONResponse(c, http.StatusCreated, helpers.NewSessionResponse(acct, session), "account registered successfully")
	helpers.LogSuccess("RegisterHandler", "account registered successfully", map[string]any{
		"account_id": acct.AccountID,
		"username":   acct.Username,
	})
}

// LoginHandler handles POST /login
func (h *AccountHandler) LoginHandler(c *gin.Context) {
	var req helpers.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		helpers.HandleBindError(c, "LoginHandler", err)
		return
	}

	acct, session, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		helpers.HandleServiceError(c, "LoginHandler", err, map[string]any{"username": req.Username})
		return
	}

	setSessionCookie(c, session)
	utils.JSONResponse(c, http.StatusOK, helpers.NewSessionResponse(acct, session), "logged in successfully")
	helpers.LogSuccess("LoginHandler", "logged in successfully", map[string]any{"account_id": acct.AccountID})
}

// LogoutHandler handles POST /logout
func (h *AccountHandler) LogoutHandler(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), helpers.SessionToken(c)); err != nil {
		helpers.HandleServiceError(c, "LogoutHandler", err, nil)
		return
	}

	c.SetCookie(helpers.SessionCookie, "", -1, "/", "", false, true)
	utils.JSONResponse(c, http.StatusOK, nil, "logged out successfully")
	helpers.LogSuccess("LogoutHandler", "logged out successfully", map[string]any{
		"account_id": helpers.AccountIDOf(helpers.CurrentAccount(c)),
	})
}

func setSessionCookie(c *gin.Context, session model.Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(helpers.SessionCookie, session.Token, maxAge, "/", "", false, true)
}
