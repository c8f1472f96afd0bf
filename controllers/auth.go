package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"content-approval-api/exceptions"
	"content-approval-api/middleware"
	"content-approval-api/models"
	"content-approval-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token      string       `json:"token"`
	User       *models.User `json:"user"`
	IsApprover bool         `json:"is_approver"`
	Message    string       `json:"message"`
}

// UserDirectory is the part of the store the auth endpoints need.
type UserDirectory interface {
	FindUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type AuthController struct {
	users         UserDirectory
	secret        []byte
	expireHours   int
	approverRoles []string
	now           func() time.Time
}

func NewAuthController(users UserDirectory, secret string, expireHours int, approverRoles []string) *AuthController {
	if expireHours <= 0 {
		expireHours = 24
	}
	return &AuthController{
		users:         users,
		secret:        []byte(secret),
		expireHours:   expireHours,
		approverRoles: approverRoles,
		now:           time.Now,
	}
}

// Login handles user authentication
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest

	// Bind request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !utils.ValidateEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
		return
	}

	// Find user by email
	user, err := ac.users.FindUserByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if !errors.Is(err, exceptions.ErrNotFound) {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if !utils.CheckPasswordHash(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	// Generate JWT token
	token, err := ac.generateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:      token,
		User:       user,
		IsApprover: user.HasActiveRole(ac.approverRoles...),
		Message:    "Login successful",
	})
}

// GetProfile returns current user profile
func (ac *AuthController) GetProfile(c *gin.Context) {
	user, err := ac.users.FindUser(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":        user,
		"roles":       user.RoleCodes(),
		"is_approver": c.GetBool(middleware.ContextPrivileged),
	})
}

// generateToken creates JWT token
func (ac *AuthController) generateToken(user *models.User) (string, error) {
	now := ac.now()
	claims := middleware.Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ac.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ac.secret)
}
