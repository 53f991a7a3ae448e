package controllers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"klik-api/config"
	"klik-api/middleware"
	"klik-api/models"
	"klik-api/services"
	"klik-api/utils"
)

// PasswordResetTTL is how long an emailed reset link stays valid.
const PasswordResetTTL = time.Hour

type AuthController struct {
	db           *gorm.DB
	config       *config.Config
	emailService *services.EmailService
}

func NewAuthController(db *gorm.DB, cfg *config.Config, emailService *services.EmailService) *AuthController {
	return &AuthController{
		db:           db,
		config:       cfg,
		emailService: emailService,
	}
}

type RegisterRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	Username    string `json:"username"` // Optional - derived from the display name if empty
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string         `json:"token"`
	User  models.Profile `json:"user"`
}

type RegisterResponse struct {
	Message string         `json:"message"`
	User    models.Profile `json:"user"`
}

func (ac *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if !utils.IsValidPassword(req.Password) {
		utils.SendValidationError(c, "Password must have at least 6 characters mixing letters, numbers or symbols")
		return
	}

	var existing models.Profile
	if err := ac.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		utils.SendError(c, http.StatusConflict, "Email already registered")
		return
	}

	username := req.Username
	if username == "" {
		username = ac.generateUniqueUsername(req.DisplayName)
	} else {
		if !utils.IsValidUsername(username) {
			utils.SendValidationError(c, "Username must be 3-30 letters, numbers or underscores")
			return
		}
		if err := ac.db.Where("username = ?", username).First(&existing).Error; err == nil {
			utils.SendError(c, http.StatusConflict, "Username already taken")
			return
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := models.Profile{
		ID:          uuid.New().String(),
		DisplayName: req.DisplayName,
		Username:    username,
		Email:       req.Email,
		Password:    string(hashedPassword),
		Role:        models.RoleUser,
	}

	err = ac.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		settings := models.DefaultUserSettings(user.ID)
		return tx.Create(&settings).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.SendError(c, http.StatusConflict, "Email or username already registered")
		return
	}
	if err != nil {
		slog.Error("failed to create user", "error", err)
		utils.SendError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	if _, err := ac.emailService.SendVerificationEmail(user.Email, user.DisplayName); err != nil {
		slog.Error("failed to send verification email", "email", user.Email, "error", err)
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Message: "Registration successful! Enter the code we emailed you to verify your account.",
		User:    user,
	})
}

func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	var user models.Profile
	if err := ac.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		utils.SendError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.SendError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if !user.EmailVerified {
		c.JSON(http.StatusForbidden, utils.ErrorResponse{
			Error:   "Email not verified",
			Message: "Please verify your email before logging in. Check your email for the verification code.",
			Code:    http.StatusForbidden,
		})
		return
	}

	token, err := middleware.IssueToken(ac.config.JWTSecret, user.ID, user.Email, ac.config.JWTTTL())
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Token: token,
		User:  user,
	})
}

func (ac *AuthController) Logout(c *gin.Context) {
	// Tokens are stateless; the client discards its copy.
	utils.SendSuccess(c, "Successfully logged out", nil)
}

type VerificationCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (ac *AuthController) SendVerificationCode(c *gin.Context) {
	var req VerificationCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	var user models.Profile
	if err := ac.db.Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "User not found")
		return
	}

	if user.EmailVerified {
		utils.SendError(c, http.StatusBadRequest, "Email already verified")
		return
	}

	code, err := ac.emailService.SendVerificationEmail(user.Email, user.DisplayName)
	if err != nil {
		slog.Error("failed to send verification email", "email", user.Email, "error", err)
		utils.SendError(c, http.StatusInternalServerError, "Failed to send verification email")
		return
	}

	response := gin.H{"message": "Verification code sent to your email"}
	if gin.Mode() == gin.DebugMode {
		response["debug_code"] = code
	}

	c.JSON(http.StatusOK, response)
}

type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

func (ac *AuthController) VerifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	var user models.Profile
	if err := ac.db.Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "User not found")
		return
	}

	if user.EmailVerified {
		utils.SendError(c, http.StatusBadRequest, "Email already verified")
		return
	}

	if !ac.emailService.VerifyCode(user.Email, req.Code) {
		utils.SendError(c, http.StatusBadRequest, "Invalid or expired verification code")
		return
	}

	if err := ac.db.Model(&user).Update("email_verified", true).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to verify email")
		return
	}
	user.EmailVerified = true

	go func(email, name string) {
		if err := ac.emailService.SendWelcomeEmail(email, name); err != nil {
			slog.Warn("failed to send welcome email", "email", email, "error", err)
		}
	}(user.Email, user.DisplayName)

	token, err := middleware.IssueToken(ac.config.JWTSecret, user.ID, user.Email, ac.config.JWTTTL())
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Email verified successfully",
		"token":   token,
		"user":    user,
	})
}

// GetVerificationCode exposes the live code in debug mode only.
func (ac *AuthController) GetVerificationCode(c *gin.Context) {
	if gin.Mode() != gin.DebugMode {
		utils.SendError(c, http.StatusNotFound, "Not found")
		return
	}
	email := strings.ToLower(c.Query("email"))
	c.JSON(http.StatusOK, gin.H{"email": email, "code": ac.emailService.GetVerificationCode(email)})
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPassword emails a one-hour reset link. The response never reveals
// whether the address is registered.
func (ac *AuthController) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	const message = "If the email exists, a reset link has been sent"

	var user models.Profile
	if err := ac.db.Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		utils.SendSuccess(c, message, nil)
		return
	}

	token, err := newResetToken()
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to create reset token")
		return
	}

	reset := models.PasswordReset{
		UserID:    user.ID,
		TokenHash: hashToken(token),
		ExpiresAt: time.Now().UTC().Add(PasswordResetTTL),
	}
	if err := ac.db.Create(&reset).Error; err != nil {
		slog.Error("failed to store password reset", "user_id", user.ID, "error", err)
		utils.SendError(c, http.StatusInternalServerError, "Failed to create reset token")
		return
	}

	if err := ac.emailService.SendPasswordResetEmail(user.Email, user.DisplayName, token); err != nil {
		slog.Error("failed to send password reset email", "email", user.Email, "error", err)
	}

	utils.SendSuccess(c, message, nil)
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

func (ac *AuthController) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}
	if !utils.IsValidPassword(req.Password) {
		utils.SendValidationError(c, "Password must have at least 6 characters mixing letters, numbers or symbols")
		return
	}

	var reset models.PasswordReset
	err := ac.db.Where("token_hash = ? AND used = ? AND expires_at > ?", hashToken(req.Token), false, time.Now().UTC()).
		First(&reset).Error
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	var user models.Profile
	err = ac.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", reset.UserID).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Update("password", string(hashedPassword)).Error; err != nil {
			return err
		}
		return tx.Model(&models.PasswordReset{}).Where("user_id = ?", reset.UserID).Update("used", true).Error
	})
	if err != nil {
		SendServiceError(c, err, "Failed to reset password")
		return
	}

	go ac.notifyPasswordChanged(user.Email, user.DisplayName)

	utils.SendSuccess(c, "Password updated successfully", nil)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

func (ac *AuthController) ChangePassword(c *gin.Context) {
	userID := currentUserID(c)

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}
	if !utils.IsValidPassword(req.NewPassword) {
		utils.SendValidationError(c, "Password must have at least 6 characters mixing letters, numbers or symbols")
		return
	}

	var user models.Profile
	if err := ac.db.First(&user, "id = ?", userID).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "User not found")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		utils.SendError(c, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}
	if err := ac.db.Model(&user).Update("password", string(hashedPassword)).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to update password")
		return
	}

	go ac.notifyPasswordChanged(user.Email, user.DisplayName)

	utils.SendSuccess(c, "Password updated successfully", nil)
}

func (ac *AuthController) notifyPasswordChanged(email, name string) {
	if err := ac.emailService.SendPasswordChangedEmail(email, name); err != nil {
		slog.Warn("failed to send password changed email", "email", email, "error", err)
	}
}

func (ac *AuthController) generateUniqueUsername(displayName string) string {
	base := models.GenerateUsernameFromName(displayName)
	username := base
	counter := 1

	for {
		var count int64
		ac.db.Model(&models.Profile{}).Where("username = ?", username).Count(&count)
		if count == 0 {
			return username
		}
		username = fmt.Sprintf("%s%d", base, counter)
		counter++
	}
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
