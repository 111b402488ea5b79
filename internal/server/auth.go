package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sevasetu/portal/internal/identity"
	"github.com/sevasetu/portal/internal/users"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

type signUpPayload struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func (h *httpHandler) handleSignUp(c *gin.Context) {
	var request signUpPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	session, err := h.identity.SignUp(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondIdentityError(c, err, http.StatusInternalServerError, "sign up rejected")
		return
	}

	// The provider remains the source of truth for credentials; the mirror
	// keeps only a one-way hash.
	hash, err := bcrypt.GenerateFromPassword([]byte(request.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if _, err := h.users.MirrorLocal(c.Request.Context(), request.Name, session, string(hash)); err != nil {
		h.logger.Error("failed to mirror local account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, "OK")
}

type signInPayload struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func (h *httpHandler) handleSignIn(c *gin.Context) {
	var request signInPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	session, err := h.identity.SignInWithPassword(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondIdentityError(c, err, http.StatusUnauthorized, "sign in rejected")
		return
	}

	h.setSessionCookies(c, session)
	c.JSON(http.StatusOK, "Success")
}

type signInWithProviderPayload struct {
	Provider string `json:"provider" binding:"required"`
}

func (h *httpHandler) handleSignInWithProvider(c *gin.Context) {
	var request signInWithProviderPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	provider, ok := users.ParseProvider(request.Provider)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_provider"})
		return
	}

	redirectTo := h.serverURL + "/api/auth/cb?provider=" + string(provider)
	forwardingTo := h.identity.AuthorizeURL(string(provider), redirectTo)
	h.logger.Info("starting provider sign-in", zap.String("provider", string(provider)))
	c.JSON(http.StatusOK, gin.H{"forwardingTo": forwardingTo})
}

type oauthCallbackQuery struct {
	Code             string `form:"code"`
	Provider         string `form:"provider" binding:"required"`
	Error            string `form:"error"`
	ErrorDescription string `form:"error_description"`
}

func (h *httpHandler) handleOAuthCallback(c *gin.Context) {
	var query oauthCallbackQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if query.Error != "" || query.ErrorDescription != "" {
		h.logger.Warn("oauth callback carried provider error",
			zap.String("error", query.Error),
			zap.String("description", query.ErrorDescription))
		c.JSON(http.StatusForbidden, gin.H{"error": "OAuth error: " + query.Error})
		return
	}

	provider, ok := users.ParseProvider(query.Provider)
	if !ok || strings.TrimSpace(query.Code) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	session, err := h.identity.ExchangeCode(c.Request.Context(), query.Code)
	if err != nil {
		h.respondIdentityError(c, err, http.StatusUnauthorized, "code exchange rejected")
		return
	}

	if _, err := h.users.MirrorSession(c.Request.Context(), provider, session); err != nil {
		h.logger.Error("failed to mirror provider account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.setSessionCookies(c, session)
	h.logger.Info("user logged in",
		zap.String("provider", string(provider)),
		zap.String("subject", session.User.ID))
	c.Redirect(http.StatusFound, h.clientURL+"/dashboard")
}

func (h *httpHandler) handleRefresh(c *gin.Context) {
	refreshToken, err := c.Cookie(refreshTokenCookie)
	if err != nil || strings.TrimSpace(refreshToken) == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "No refresh token"})
		return
	}

	session, err := h.identity.RefreshSession(c.Request.Context(), refreshToken)
	if err != nil {
		h.respondIdentityError(c, err, http.StatusForbidden, "session refresh rejected")
		return
	}

	if session.RefreshToken != "" {
		c.SetCookie(refreshTokenCookie, session.RefreshToken, 0, "/", "", false, true)
	}
	c.JSON(http.StatusOK, gin.H{"user": session.User})
}

func (h *httpHandler) handleUserData(c *gin.Context) {
	accessToken, err := c.Cookie(accessTokenCookie)
	if err != nil || strings.TrimSpace(accessToken) == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No access token"})
		return
	}

	providerID, err := h.resolveProviderID(c, accessToken)
	if err != nil {
		h.logger.Warn("access token validation failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	user, err := h.users.FindByProviderID(c.Request.Context(), providerID)
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		h.logger.Error("mirror lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// resolveProviderID prefers offline validation when the provider's JWT
// secret is configured and falls back to a collaborator round trip.
func (h *httpHandler) resolveProviderID(c *gin.Context, accessToken string) (string, error) {
	if h.tokenValidator != nil {
		return h.tokenValidator.Validate(accessToken)
	}
	profile, err := h.identity.GetUser(c.Request.Context(), accessToken)
	if err != nil {
		return "", err
	}
	return profile.ID, nil
}

func (h *httpHandler) setSessionCookies(c *gin.Context, session identity.Session) {
	c.SetCookie(accessTokenCookie, session.AccessToken, 0, "/", "", false, true)
	c.SetCookie(refreshTokenCookie, session.RefreshToken, 0, "/", "", false, true)
}

// respondIdentityError propagates the collaborator's status and message when
// available; anything else is logged and mapped to the fallback status with
// a generic body.
func (h *httpHandler) respondIdentityError(c *gin.Context, err error, fallbackStatus int, logMessage string) {
	var apiErr *identity.APIError
	if errors.As(err, &apiErr) {
		h.logger.Warn(logMessage, zap.Int("provider_status", apiErr.Status), zap.String("message", apiErr.Message))
		status := apiErr.Status
		if status < http.StatusBadRequest {
			status = fallbackStatus
		}
		c.JSON(status, gin.H{"error": apiErr.Message})
		return
	}
	h.logger.Error(logMessage, zap.Error(err))
	c.JSON(fallbackStatus, gin.H{"error": "Internal server error"})
}
