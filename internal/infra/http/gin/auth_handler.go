package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/domain/directory"
	"staybook/internal/domain/shared/errs"
)

type AuthHTTP interface {
	Token(c *gin.Context)
	Me(c *gin.Context)
}

// PasswordComparer verifies a password against a stored hash.
type PasswordComparer interface {
	Compare(hash, password string) error
}

type AuthHandler struct {
	Directory directory.Directory
	Passwords PasswordComparer
	Tokens    TokenService
	Logger    *slog.Logger
}

type tokenRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type profileResponse struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

func (h AuthHandler) Token(c *gin.Context) {
	if h.Directory == nil || h.Passwords == nil || h.Tokens == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth service unavailable"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, err := h.Directory.UserByEmail(requestContext(c), directory.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.internal(c, err)
		return
	}
	if !user.Active || user.PasswordHash == "" || h.Passwords.Compare(user.PasswordHash, req.Password) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := h.Tokens.Issue(user)
	if err != nil {
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token.Token,
		"token_type":   "Bearer",
		"expires_at":   token.ExpiresAt,
	})
}

func (h AuthHandler) Me(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if h.Directory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth service unavailable"})
		return
	}
	user, err := h.Directory.User(requestContext(c), p.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, string(r))
	}
	c.JSON(http.StatusOK, profileResponse{ID: string(user.ID), Email: user.Email, Name: user.Name, Roles: roles})
}

func (h AuthHandler) internal(c *gin.Context, err error) {
	if h.Logger != nil {
		h.Logger.Error("auth operation failed", "error", err)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

var _ AuthHTTP = AuthHandler{}
