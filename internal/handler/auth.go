package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/PeraltaFrian/photo-sharing/internal/service"
	"github.com/PeraltaFrian/photo-sharing/internal/session"
	"github.com/gin-gonic/gin"
)

const (
	loginPage   = "/login.html"
	adminPage   = "/admin.html"
	galleryPage = "/gallery.html"
)

// OAuthProvider is the Google authorization code flow as seen by handlers.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*service.GoogleIdentity, error)
}

type AuthHandler struct {
	svc      *service.AuthService
	sessions *session.Store
	google   OAuthProvider
}

func NewAuthHandler(svc *service.AuthService, sessions *session.Store, google OAuthProvider) *AuthHandler {
	return &AuthHandler{svc: svc, sessions: sessions, google: google}
}

// Register godoc
// @Summary Register a new user
// @Description Creates a local account with role user. Disabled when ALLOW_SIGNUP is false.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.CredentialsRequest true "Email and password"
// @Success 201 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.CredentialsRequest
	_ = c.ShouldBindJSON(&req)

	if _, err := h.svc.Register(c.Request.Context(), req.Email, req.Password); err != nil {
		recordAuthEvent("register", "failure")
		writeServiceError(c, err, map[error]string{
			service.ErrInvalidInput: "Email and password are required.",
			service.ErrForbidden:    "Registration is disabled.",
			service.ErrConflict:     "Email already in use.",
			nil:                     "Server error during registration.",
		})
		return
	}

	recordAuthEvent("register", "success")
	c.JSON(http.StatusCreated, model.MessageResponse{Message: "User registered successfully."})
}

// Login godoc
// @Summary Login
// @Description Starts a new session and sets the token and refreshToken cookies.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.CredentialsRequest true "Email and password"
// @Success 200 {object} model.TokenResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 429 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.CredentialsRequest
	_ = c.ShouldBindJSON(&req)

	tokens, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		recordAuthEvent("login", "failure")
		writeServiceError(c, err, map[error]string{
			service.ErrInvalidInput: "Email and password are required.",
			service.ErrUnauthorized: "Invalid email or password.",
		})
		return
	}

	if err := h.startSession(c, tokens.User.ID.String(), false); err != nil {
		slog.Error("session start failed", "user_id", tokens.User.ID, "error", err)
		abortJSON(c, http.StatusInternalServerError, "Session error")
		return
	}

	h.setAuthCookies(c, tokens)
	recordAuthEvent("login", "success")
	c.JSON(http.StatusOK, model.TokenResponse{Message: "Login successful.", Token: tokens.AccessToken})
}

// RefreshToken godoc
// @Summary Refresh access token
// @Description Uses the refreshToken cookie.
// @Tags auth
// @Produce json
// @Success 200 {object} model.TokenResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/refresh-token [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	refreshToken, _ := c.Cookie(service.RefreshCookieName)

	accessToken, err := h.svc.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		recordAuthEvent("refresh", "failure")
		writeServiceError(c, err, map[error]string{
			service.ErrMissingToken: "Missing refresh token.",
			service.ErrInvalidToken: "Invalid refresh token.",
			service.ErrNotFound:     "User not found.",
		})
		return
	}

	h.setAccessCookie(c, accessToken)
	recordAuthEvent("refresh", "success")
	c.JSON(http.StatusOK, model.TokenResponse{Message: "Access token refreshed.", Token: accessToken})
}

// Logout godoc
// @Summary Logout
// @Description Clears both auth cookies and destroys the session.
// @Tags auth
// @Produce json
// @Success 200 {object} model.MessageResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.clearAuthCookies(c)
	if sess := getSession(c); sess != nil {
		if err := h.sessions.Destroy(c.Request, c.Writer, sess); err != nil {
			slog.Warn("session destroy failed", "error", err)
		}
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Logged out successfully"})
}

// Me godoc
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.MeResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		abortJSON(c, http.StatusUnauthorized, "Access token required")
		return
	}
	token := c.GetString(authTokenKey)
	if token == "" {
		token, _ = c.Cookie(service.AccessCookieName)
	}
	c.JSON(http.StatusOK, model.MeResponse{User: *user, Token: token})
}

// GoogleLogin godoc
// @Summary Start Google sign-in
// @Tags auth
// @Success 302
// @Failure 503 {object} model.ErrorResponse
// @Router /auth/google [get]
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if h.google == nil {
		abortJSON(c, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}
	sess := getSession(c)
	state, err := service.NewOAuthState()
	if err != nil || sess == nil {
		abortJSON(c, http.StatusInternalServerError, "Session error")
		return
	}

	sess.Values[session.KeyOAuthState] = state
	if err := h.sessions.Save(c.Request, c.Writer, sess); err != nil {
		slog.Error("session save failed", "error", err)
		abortJSON(c, http.StatusInternalServerError, "Session error")
		return
	}
	c.Redirect(http.StatusFound, h.google.AuthCodeURL(state))
}

// GoogleCallback godoc
// @Summary Google sign-in callback
// @Description Redirects to the admin or gallery page with the access token in the fragment, or to the login page on failure.
// @Tags auth
// @Param state query string true "OAuth state"
// @Param code query string true "Authorization code"
// @Success 302
// @Router /auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		c.Redirect(http.StatusFound, loginPage)
		return
	}

	sess := getSession(c)
	expected := session.StringValue(sess, session.KeyOAuthState)
	if sess != nil {
		delete(sess.Values, session.KeyOAuthState)
	}
	state := c.Query("state")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		h.oauthFailed(c, "state mismatch", nil)
		return
	}
	if reason := c.Query("error"); reason != "" {
		h.oauthFailed(c, "provider error", nil, "reason", reason)
		return
	}

	identity, err := h.google.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.oauthFailed(c, "code exchange", err)
		return
	}

	user, err := h.svc.FederatedLogin(c.Request.Context(), identity)
	if err != nil {
		h.oauthFailed(c, "account lookup", err)
		return
	}

	tokens, err := h.svc.IssueTokens(user)
	if err != nil {
		h.oauthFailed(c, "token issue", err)
		return
	}
	if err := h.startSession(c, user.ID.String(), true); err != nil {
		h.oauthFailed(c, "session start", err)
		return
	}

	h.setAuthCookies(c, tokens)
	recordAuthEvent("google", "success")

	target := galleryPage
	if user.Role == model.RoleAdmin {
		target = adminPage
	}
	c.Redirect(http.StatusFound, target+"#token="+url.QueryEscape(tokens.AccessToken))
}

// RequestPasswordReset godoc
// @Summary Request a password reset link
// @Description Always answers the same way whether or not the account exists.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.ResetRequest true "Account email"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /auth/password-reset/request [post]
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req model.ResetRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		writeServiceError(c, err, map[error]string{
			service.ErrInvalidInput: "Email is required.",
			service.ErrUnavailable:  "Password reset is not available.",
		})
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Reset email sent if account exists."})
}

// ResetPassword godoc
// @Summary Reset password with a token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/password-reset/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		recordAuthEvent("password_reset", "failure")
		writeServiceError(c, err, map[error]string{
			service.ErrInvalidInput:      "Token and password required.",
			service.ErrResetTokenInvalid: "Invalid or expired token.",
		})
		return
	}
	recordAuthEvent("password_reset", "success")
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Password reset successful."})
}

// startSession replaces the current session with a fresh one owned by userID.
func (h *AuthHandler) startSession(c *gin.Context, userID string, federated bool) error {
	sess := getSession(c)
	if sess == nil {
		return errNoSession
	}
	if err := h.sessions.Regenerate(c.Request, sess); err != nil {
		return err
	}
	sess.Values[session.KeyUserID] = userID
	if federated {
		sess.Values[session.KeyFederatedUserID] = userID
	}
	return h.sessions.Save(c.Request, c.Writer, sess)
}

func (h *AuthHandler) oauthFailed(c *gin.Context, stage string, err error, attrs ...any) {
	attrs = append(attrs, "stage", stage)
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	slog.Warn("google sign-in failed", attrs...)
	if sess := getSession(c); sess != nil && !sess.IsNew {
		if err := h.sessions.Save(c.Request, c.Writer, sess); err != nil {
			slog.Warn("session save failed", "error", err)
		}
	}
	recordAuthEvent("google", "failure")
	c.Redirect(http.StatusFound, loginPage)
}

func (h *AuthHandler) setAuthCookies(c *gin.Context, tokens *service.Tokens) {
	h.setAccessCookie(c, tokens.AccessToken)
	h.setCookie(c, service.RefreshCookieName, tokens.RefreshToken, int(h.svc.Tokens().RefreshTTL().Seconds()))
}

func (h *AuthHandler) setAccessCookie(c *gin.Context, token string) {
	h.setCookie(c, service.AccessCookieName, token, int(h.svc.Tokens().AccessTTL().Seconds()))
}

func (h *AuthHandler) clearAuthCookies(c *gin.Context) {
	h.setCookie(c, service.AccessCookieName, "", -1)
	h.setCookie(c, service.RefreshCookieName, "", -1)
}

func (h *AuthHandler) setCookie(c *gin.Context, name, value string, maxAge int) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(name, value, maxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
}
