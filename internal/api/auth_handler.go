package api

import (
	"net/http"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication and MFA service dependencies.
type AuthHandler struct {
	authService service.AuthService
	mfaService  service.MFAService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService, mfaService service.MFAService) *AuthHandler {
	return &AuthHandler{authService: authService, mfaService: mfaService}
}

// --- Request/Response Structs ---

type RegisterRequest struct {
	Name     string      `json:"name" binding:"required"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required"`
	Role     domain.Role `json:"role" binding:"required,oneof=therapist parent"`
}

// UserResponse excludes sensitive info like password hash and MFA secrets
type UserResponse struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	Role       domain.Role   `json:"role"`
	Tier       domain.Tier   `json:"tier,omitempty"`
	Usage      *domain.Usage `json:"usage,omitempty"`
	MFAEnabled bool          `json:"mfaEnabled"`
	Google     bool          `json:"googleLinked"`
	CreatedAt  time.Time     `json:"createdAt"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token       string        `json:"token,omitempty"`
	User        *UserResponse `json:"user,omitempty"`
	MFARequired bool          `json:"mfaRequired,omitempty"`
	MFAToken    string        `json:"mfaToken,omitempty"`
}

type MFALoginRequest struct {
	MFAToken string `json:"mfaToken" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type MFACodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// --- Handler Methods ---

// Register creates a therapist or parent account.
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapUserToResponse(user))
}

// Login authenticates with email and password. When MFA is enabled the response
// carries a short-lived mfaToken instead of an access token.
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapLoginResult(result))
}

// LoginMFA completes a login with a TOTP code.
// POST /api/auth/login/mfa
func (h *AuthHandler) LoginMFA(c *gin.Context) {
	var req MFALoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.LoginMFA(c.Request.Context(), req.MFAToken, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapLoginResult(result))
}

// GoogleLogin signs in with a Google ID token.
// POST /api/auth/google
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req GoogleLoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.GoogleLogin(c.Request.Context(), req.IDToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapLoginResult(result))
}

// ForgotPassword always answers 200 so the endpoint cannot be used to probe for accounts.
// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "If an account exists for this email, a reset link has been sent"})
}

// ResetPassword sets a new password from an emailed token.
// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}

// ChangePassword updates the password of the authenticated user.
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// Me returns the authenticated user's profile.
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(user))
}

// SetupMFA starts TOTP enrollment.
// POST /api/auth/mfa/setup
func (h *AuthHandler) SetupMFA(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	setup, err := h.mfaService.Setup(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, setup)
}

// EnableMFA confirms enrollment with a first code.
// POST /api/auth/mfa/enable
func (h *AuthHandler) EnableMFA(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req MFACodeRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.mfaService.Enable(c.Request.Context(), userID, req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mfaEnabled": true})
}

// DisableMFA turns MFA off after checking a current code.
// POST /api/auth/mfa/disable
func (h *AuthHandler) DisableMFA(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req MFACodeRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.mfaService.Disable(c.Request.Context(), userID, req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mfaEnabled": false})
}

func mapLoginResult(result *service.LoginResult) LoginResponse {
	resp := LoginResponse{
		Token:       result.Token,
		MFARequired: result.MFARequired,
		MFAToken:    result.MFAToken,
	}
	if result.User != nil && !result.MFARequired {
		user := MapUserToResponse(result.User)
		resp.User = &user
	}
	return resp
}

// MapUserToResponse converts a domain User to a UserResponse DTO.
// Crucially excludes PasswordHash, MFA secrets and billing identifiers.
func MapUserToResponse(user *domain.User) UserResponse {
	if user == nil {
		return UserResponse{}
	}

	resp := UserResponse{
		ID:         user.ID.Hex(),
		Name:       user.Name,
		Email:      user.Email,
		Role:       user.Role,
		MFAEnabled: user.MFA.Enabled,
		Google:     user.GoogleID != "",
		CreatedAt:  user.CreatedAt,
	}

	// Tier and usage are only meaningful for therapists
	if user.IsTherapist() {
		resp.Tier = user.EffectiveTier()
		usage := user.Usage
		resp.Usage = &usage
	}
	return resp
}
