package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/middleware"
	"taskmanager/internal/models"
	"taskmanager/internal/service"
	"taskmanager/internal/validation"
)

const invalidLogin = "Invalid login credentials"

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=30,password_policy"`
	Phone    string `json:"phone" binding:"omitempty,numeric,min=7,max=15"`
	Role     string `json:"role" binding:"omitempty,oneof=Admin Manager User"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newUserResponse(user models.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     models.UserRole(req.Role),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"msg": "User already exists with this email"})
		case errors.Is(err, service.ErrPhoneTaken):
			c.JSON(http.StatusConflict, gin.H{"msg": "User already exists with this phone number"})
		case errors.Is(err, service.ErrInvalidUsername):
			msg := "username must be between 3 and 30 characters long"
			c.JSON(http.StatusBadRequest, gin.H{
				"msg":    msg,
				"errors": []validation.FieldError{{Field: "username", Message: msg}},
			})
		case errors.Is(err, service.ErrInvalidRole):
			c.JSON(http.StatusBadRequest, gin.H{"msg": "role must be one of [Admin Manager User]"})
		default:
			h.serverError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, tokenResponse{Token: result.Token})
}

// loginRequest takes the identifier as emailOrUsername, or under the email
// or username key.
type loginRequest struct {
	EmailOrUsername string `json:"emailOrUsername" binding:"omitempty,login_identifier"`
	Email           string `json:"email" binding:"omitempty,login_identifier"`
	Username        string `json:"username" binding:"omitempty,login_identifier"`
	Password        string `json:"password" binding:"required,min=6"`
}

func (r loginRequest) identifier() string {
	for _, v := range []string{r.EmailOrUsername, r.Email, r.Username} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.identifier() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"msg": invalidLogin})
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Identifier: req.identifier(),
		Password:   req.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"msg": invalidLogin})
			return
		}
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse{Token: result.Token})
}

func (h HandlerSet) Logout(c *gin.Context) {
	h.auth.Logout(c.Request.Context(), middleware.CurrentToken(c))
	c.JSON(http.StatusOK, gin.H{"msg": "User logged out successfully"})
}

func (h HandlerSet) Me(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "No token, authorization denied"})
		return
	}

	user, err := h.auth.Me(c.Request.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"msg": "User not found"})
			return
		}
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

func validationFailed(c *gin.Context, err error) {
	errs := validation.Errors(err)
	c.JSON(http.StatusBadRequest, gin.H{"msg": errs[0].Message, "errors": errs})
}
