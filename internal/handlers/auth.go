package handlers

import (
	"net/http"
	"time"

	"TodoAPI/internal/auth"
	"TodoAPI/internal/dto"
	"TodoAPI/internal/logging"
	"TodoAPI/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles register, login and logout.
type AuthHandler struct {
	users    *service.UserService
	tokens   *auth.TokenIssuer
	denylist *auth.Denylist
	tokenTTL time.Duration
}

// NewAuthHandler returns a new AuthHandler. denylist may be nil, in which
// case logout only acknowledges the request.
func NewAuthHandler(users *service.UserService, tokens *auth.TokenIssuer, denylist *auth.Denylist, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, denylist: denylist, tokenTTL: tokenTTL}
}

// Register godoc
// @Summary      Register
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      dto.RegisterRequest  true  "New account"
// @Success      201   {object}  dto.UserResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.users.Register(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		respondError(c, err, "user not found")
		return
	}
	c.JSON(http.StatusCreated, dto.NewUserResponse(user))
}

// Login godoc
// @Summary      Exchange credentials for a bearer token
// @Tags         users
// @Accept       x-www-form-urlencoded,json
// @Produce      json
// @Param        username  formData  string  true  "Username"
// @Param        password  formData  string  true  "Password"
// @Success      200       {object}  dto.TokenResponse
// @Failure      400       {object}  dto.ErrorResponse
// @Failure      401       {object}  dto.ErrorResponse
// @Failure      500       {object}  dto.ErrorResponse
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err, "user not found")
		return
	}
	token, claims, err := h.tokens.Issue(user.Username, h.tokenTTL)
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, dto.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   claims.ExpiresAt,
	})
}

// Logout godoc
// @Summary      Revoke the current token
// @Tags         users
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := auth.CurrentClaims(c)
	if ok {
		if err := h.denylist.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt); err != nil {
			logging.FromContext(c.Request.Context()).Error("revoke token", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
	}
	c.Status(http.StatusNoContent)
}
