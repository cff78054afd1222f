package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/tidyapp/tidy/config"
	"github.com/tidyapp/tidy/models"
	"github.com/tidyapp/tidy/utils"
)

// AuthController handles registration, login and Google sign-in for the
// mobile client. Every new user gets a gamification account row alongside
// the user row.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// SendEmailCode sends a verification code to the user's email.
func (a *AuthController) SendEmailCode(ctx *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if !utils.EmailCooldownTrySet(email, time.Minute) {
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "please wait before requesting another code")
		return
	}

	code := utils.GenerateVerificationCode(6)
	utils.SaveCode(email, code, 10*time.Minute)

	body := fmt.Sprintf("Your Tidy verification code is %s. It expires in 10 minutes.", code)
	if err := utils.SendMail(email, "Tidy verification code", body); err != nil {
		utils.Sugar.Warnf("failed to send verification email to %s: %v", email, err)
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to send verification email")
		return
	}

	utils.Success(ctx, gin.H{"message": "verification code sent"})
}

// Register handles local account registration with bcrypt hashing. A
// gamification account starting at level 1 with zero XP is created in the
// same transaction as the user.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username  string `json:"username" binding:"required"`
		Email     string `json:"email" binding:"required,email"`
		Password  string `json:"password" binding:"required"`
		EmailCode string `json:"email_code" binding:"required"`
		Timezone  string `json:"timezone"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40011, "invalid request payload")
		return
	}

	ip := ctx.ClientIP()
	if !utils.RegistrationCooldownTry(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42911, "too many attempts, slow down")
		return
	}
	if !utils.RegistrationDailyLimitCheck(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42912, "registration limit reached for today")
		return
	}

	username := strings.TrimSpace(req.Username)
	if !validUsername(username) {
		utils.Error(ctx, http.StatusBadRequest, 40012, "username must be 3-32 letters, digits or underscores")
		return
	}
	if !validPassword(req.Password) {
		utils.Error(ctx, http.StatusBadRequest, 40013, "password must be at least 8 characters")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !utils.VerifyAndConsumeCode(email, strings.TrimSpace(req.EmailCode)) {
		utils.Error(ctx, http.StatusBadRequest, 40014, "invalid or expired email code")
		return
	}

	var existing models.User
	if err := a.db.Where("username = ? OR email = ?", username, email).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40910, "username or email already taken")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to process password")
		return
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Provider:     "local",
		RegisterIP:   ip,
		Timezone:     strings.TrimSpace(req.Timezone),
	}
	err = a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&models.Account{UserID: user.ID, TotalXP: 0, Level: 1}).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to create user")
		return
	}
	utils.RegistrationDailyIncrement(ip)

	token, err := utils.GenerateToken(user.ID, user.Username, 7*24*time.Hour)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to issue token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  sanitizeUserResponse(user),
	})
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40015, "invalid request payload")
		return
	}

	ident := strings.TrimSpace(req.Username)
	var user models.User
	if err := a.db.Where("username = ? OR email = ?", ident, strings.ToLower(ident)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "invalid credentials")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "invalid credentials")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, 7*24*time.Hour)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50014, "failed to issue token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  sanitizeUserResponse(user),
	})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		utils.Error(ctx, http.StatusBadRequest, 40016, "missing bearer token")
		return
	}
	tokenString := strings.TrimSpace(parts[1])
	claims, err := utils.ParseToken(tokenString)
	if err == nil && claims.ExpiresAt != nil {
		utils.BlacklistToken(tokenString, claims.ExpiresAt.Time)
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the current authenticated user's information including
// gamification state.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.Preload("Account").First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40420, "user not found")
		return
	}

	resp := sanitizeUserResponse(user)
	resp["is_admin"] = isAdminUsername(user.Username)
	if user.Account != nil {
		resp["account"] = user.Account
	}
	utils.Success(ctx, gin.H{"user": resp})
}

// UpdateProfile allows the authenticated user to update basic profile fields.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		AvatarURL *string `json:"avatar_url"`
		Timezone  *string `json:"timezone"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40017, "invalid request payload")
		return
	}

	updates := map[string]interface{}{}
	if req.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*req.AvatarURL)
	}
	if req.Timezone != nil {
		updates["timezone"] = strings.TrimSpace(*req.Timezone)
	}
	if len(updates) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40018, "nothing to update")
		return
	}

	if err := a.db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50015, "failed to update profile")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50016, "failed to load user")
		return
	}
	utils.Success(ctx, gin.H{"user": sanitizeUserResponse(user)})
}

// OAuthRedirect generates the Google authorization URL.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	conf, err := a.oauthConfig()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40019, err.Error())
		return
	}

	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)

	url := conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
	utils.Success(ctx, gin.H{"auth_url": url})
}

// OAuthCallback exchanges the authorization code for a user identity and issues a JWT.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	state := ctx.Query("state")
	code := ctx.Query("code")
	if state == "" || code == "" {
		utils.Error(ctx, http.StatusBadRequest, 40030, "missing state or code")
		return
	}
	if !utils.ConsumeState(state) {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid or expired state")
		return
	}

	conf, err := a.oauthConfig()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40032, err.Error())
		return
	}

	token, err := conf.Exchange(context.Background(), code)
	if err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50210, "oauth code exchange failed")
		return
	}

	data, err := fetchGoogleUser(token)
	if err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50211, "failed to fetch oauth profile")
		return
	}

	user, err := a.findOrCreateOAuthUser("google", data, ctx.ClientIP())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50017, "failed to create user")
		return
	}

	jwtToken, err := utils.GenerateToken(user.ID, user.Username, 7*24*time.Hour)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50018, "failed to issue token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": jwtToken,
		"user":  sanitizeUserResponse(*user),
	})
}

type oauthUser struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

func (a *AuthController) oauthConfig() (*oauth2.Config, error) {
	cfg := config.Get()
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil, errors.New("google oauth not configured")
	}
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.OAuthRedirectBase + "/api/v1/auth/oauth/google/callback",
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}, nil
}

func fetchGoogleUser(token *oauth2.Token) (*oauthUser, error) {
	client := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(token))
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &oauthUser{ID: payload.ID, Email: payload.Email, Name: payload.Name, AvatarURL: payload.Picture}, nil
}

func (a *AuthController) findOrCreateOAuthUser(provider string, data *oauthUser, ip string) (*models.User, error) {
	var user models.User
	err := a.db.Where("provider = ? AND provider_id = ?", provider, data.ID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// link by email when a local account already exists
	if data.Email != "" {
		if err := a.db.Where("email = ?", strings.ToLower(data.Email)).First(&user).Error; err == nil {
			user.Provider = provider
			user.ProviderID = data.ID
			if err := a.db.Save(&user).Error; err != nil {
				return nil, err
			}
			return &user, nil
		}
	}

	user = models.User{
		Username:   a.ensureUniqueUsername(sanitizeUsername(data.Name), provider, data.ID),
		Email:      strings.ToLower(data.Email),
		Provider:   provider,
		ProviderID: data.ID,
		AvatarURL:  data.AvatarURL,
		RegisterIP: ip,
	}
	err = a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&models.Account{UserID: user.ID, TotalXP: 0, Level: 1}).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Helpers for validation

func validUsername(s string) bool {
	if len(s) < 3 || len(s) > 32 {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}

func validPassword(s string) bool {
	return len(s) >= 8 && len(s) <= 128
}

func sanitizeUsername(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 32 {
		out = out[:32]
	}
	return out
}

func (a *AuthController) ensureUniqueUsername(base, provider, id string) string {
	if len(base) < 3 {
		base = provider + "_user"
	}
	candidate := base
	for i := 0; i < 5; i++ {
		var count int64
		if err := a.db.Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil || count == 0 {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%s", base, uuid.NewString()[:6])
	}
	return candidate
}

func sanitizeUserResponse(user models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"avatar_url": user.AvatarURL,
		"timezone":   user.Timezone,
		"provider":   user.Provider,
		"created_at": user.CreatedAt,
	}
}

// isAdminUsername checks whether the given username is configured as an admin (case-insensitive).
func isAdminUsername(username string) bool {
	for _, admin := range config.Get().AdminUsernames {
		if strings.EqualFold(admin, username) {
			return true
		}
	}
	return false
}
