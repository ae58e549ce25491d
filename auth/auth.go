package auth

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/mohinkhan13/MyBlog-Api/engagement"
	"github.com/mohinkhan13/MyBlog-Api/models"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour

	// one attempt every 2 seconds per IP on login/register
	loginRateLimit = rate.Limit(0.5)
	loginRateBurst = 5
)

type AuthModule struct {
	db       *gorm.DB
	recorder *engagement.Recorder
	secret   []byte
	limiter  *ipRateLimiter
}

func NewAuthModule(db *gorm.DB, recorder *engagement.Recorder) *AuthModule {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "insecure-dev-secret"
	}
	return &AuthModule{
		db:       db,
		recorder: recorder,
		secret:   []byte(secret),
		limiter:  newIPRateLimiter(loginRateLimit, loginRateBurst),
	}
}

func (a *AuthModule) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/register", a.rateLimit, a.register)
		api.POST("/login", a.rateLimit, a.login)
		api.POST("/logout", a.RequireAuth, a.logout)
		api.GET("/current-user", a.RequireAuth, a.currentUser)
		api.POST("/token/refresh", a.refreshToken)

		users := api.Group("/users")
		{
			users.GET("", a.RequireAuth, a.RequireAdmin, a.listUsers)
			users.GET("/:id", a.RequireAuth, a.RequireAdmin, a.getUser)
			users.POST("", a.rateLimit, a.register)
			users.PUT("/:id", a.RequireAuth, a.updateUser)
			users.PATCH("/:id", a.RequireAuth, a.updateUser)
			users.DELETE("/:id", a.RequireAuth, a.RequireAdmin, a.deleteUser)
		}
	}
}

// --- rate limiting (per client IP) ---

type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newIPRateLimiter(r rate.Limit, b int) *ipRateLimiter {
	return &ipRateLimiter{
		visitors: make(map[string]*rate.Limiter),
		rps:      r,
		burst:    b,
	}
}

func (rl *ipRateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, ok := rl.visitors[ip]
	if !ok {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
		rl.visitors[ip] = limiter
	}
	return limiter
}

func (a *AuthModule) rateLimit(c *gin.Context) {
	if !a.limiter.get(c.ClientIP()).Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please wait."})
		return
	}
	c.Next()
}

// --- tokens ---

type tokenClaims struct {
	UserID      int    `json:"user_id"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
	TokenType   string `json:"token_type"`
	jwt.RegisteredClaims
}

func (a *AuthModule) issueToken(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	claims := tokenClaims{
		UserID:      user.ID,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthModule) parseToken(raw, wantType string) (*tokenClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*tokenClaims)
	if !ok || claims.TokenType != wantType {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// --- middleware ---

func (a *AuthModule) RequireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	claims, err := a.parseToken(strings.TrimPrefix(header, "Bearer "), "access")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	var user models.User
	if err := a.db.First(&user, claims.UserID).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	c.Set("user_id", user.ID)
	c.Set("user", &user)
	c.Next()
}

// OptionalAuth resolves the caller when a valid token is present but lets
// anonymous requests through.
func (a *AuthModule) OptionalAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		if claims, err := a.parseToken(strings.TrimPrefix(header, "Bearer "), "access"); err == nil {
			var user models.User
			if err := a.db.First(&user, claims.UserID).Error; err == nil {
				c.Set("user_id", user.ID)
				c.Set("user", &user)
			}
		}
	}
	c.Next()
}

func (a *AuthModule) RequireAdmin(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil || !(user.IsAdmin || user.IsSuperuser) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin privilege required"})
		return
	}
	c.Next()
}

// CurrentUser returns the authenticated user set by the middleware, or nil.
func CurrentUser(c *gin.Context) *models.User {
	value, exists := c.Get("user")
	if !exists {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// --- handlers ---

type registerInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FName    string `json:"fname"`
	LName    string `json:"lname"`
	Phone    string `json:"phone"`
}

func (a *AuthModule) register(c *gin.Context) {
	var input registerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if fieldErrors := a.validateRegistration(&input); len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
		return
	}

	passwordHash, err := hashPassword(input.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	// Role flags are never client-supplied.
	user := models.User{
		Email:        input.Email,
		PasswordHash: passwordHash,
		FName:        input.FName,
		LName:        input.LName,
		Phone:        input.Phone,
	}
	if err := a.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"email": "Email already exists."}})
		return
	}

	c.JSON(http.StatusCreated, user)
}

type loginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *AuthModule) login(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	// Same message for unknown email and bad password.
	var user models.User
	if err := a.db.Where("email = ?", input.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email or password"})
		return
	}
	if !checkPasswordHash(input.Password, user.PasswordHash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email or password"})
		return
	}

	access, err := a.issueToken(&user, "access", accessTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	refresh, err := a.issueToken(&user, "refresh", refreshTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	now := time.Now()
	a.db.Model(&user).UpdateColumn("last_login", now)

	a.recorder.RecordAuthAction(engagement.ActionLogin, user.ID, c.ClientIP())
	if user.IsStaff || user.IsSuperuser {
		a.recorder.RecordAuthAction(engagement.ActionAdminLogin, user.ID, c.ClientIP())
	}

	c.JSON(http.StatusOK, gin.H{
		"access":  access,
		"refresh": refresh,
		"user":    user,
	})
}

type logoutInput struct {
	Refresh string `json:"refresh"`
}

func (a *AuthModule) logout(c *gin.Context) {
	userID := c.GetInt("user_id")

	var input logoutInput
	_ = c.ShouldBindJSON(&input)

	// Blacklist the presented refresh token so it cannot be replayed.
	if input.Refresh != "" {
		if claims, err := a.parseToken(input.Refresh, "refresh"); err == nil {
			revoked := models.RevokedToken{
				JTI:       claims.ID,
				ExpiresAt: claims.ExpiresAt.Time,
			}
			a.db.Create(&revoked)
		}
	}

	a.recorder.RecordAuthAction(engagement.ActionLogout, userID, c.ClientIP())

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (a *AuthModule) currentUser(c *gin.Context) {
	c.JSON(http.StatusOK, CurrentUser(c))
}

type refreshInput struct {
	Refresh string `json:"refresh" binding:"required"`
}

func (a *AuthModule) refreshToken(c *gin.Context) {
	var input refreshInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Refresh token is required"})
		return
	}

	claims, err := a.parseToken(input.Refresh, "refresh")
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		return
	}

	var revoked int64
	a.db.Model(&models.RevokedToken{}).Where("jti = ?", claims.ID).Count(&revoked)
	if revoked > 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		return
	}

	var user models.User
	if err := a.db.First(&user, claims.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		return
	}

	access, err := a.issueToken(&user, "access", accessTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access": access})
}

func (a *AuthModule) listUsers(c *gin.Context) {
	var users []models.User
	if err := a.db.Order("id ASC").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

func (a *AuthModule) getUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := a.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

type updateUserInput struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	FName    *string `json:"fname"`
	LName    *string `json:"lname"`
	Phone    *string `json:"phone"`
}

func (a *AuthModule) updateUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	caller := CurrentUser(c)
	if caller == nil || (caller.ID != id && !(caller.IsAdmin || caller.IsSuperuser)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to modify this user"})
		return
	}

	var user models.User
	if err := a.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var input updateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	fieldErrors := gin.H{}
	if input.Email != nil {
		if msg := validateEmail(*input.Email); msg != "" {
			fieldErrors["email"] = msg
		} else {
			var count int64
			a.db.Model(&models.User{}).Where("email = ? AND id <> ?", *input.Email, id).Count(&count)
			if count > 0 {
				fieldErrors["email"] = "Email already exists."
			} else {
				user.Email = *input.Email
			}
		}
	}
	if input.Password != nil {
		if msg := validatePassword(*input.Password); msg != "" {
			fieldErrors["password"] = msg
		} else {
			hash, err := hashPassword(*input.Password)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
				return
			}
			user.PasswordHash = hash
		}
	}
	if input.FName != nil {
		if msg := validateName(*input.FName); msg != "" {
			fieldErrors["fname"] = msg
		} else {
			user.FName = *input.FName
		}
	}
	if input.LName != nil {
		if msg := validateName(*input.LName); msg != "" {
			fieldErrors["lname"] = msg
		} else {
			user.LName = *input.LName
		}
	}
	if input.Phone != nil {
		if msg := validatePhone(*input.Phone); msg != "" {
			fieldErrors["phone"] = msg
		} else {
			user.Phone = *input.Phone
		}
	}
	if len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
		return
	}

	if err := a.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// deleteUser removes the account and nulls every weak reference to it
// (posts, comments, replies keep existing without an author).
func (a *AuthModule) deleteUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	err = a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).Where("author_id = ?", id).
			Update("author_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Comment{}).Where("user_id = ?", id).
			Update("user_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Reply{}).Where("user_id = ?", id).
			Update("user_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.User{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// --- validation (field-level, mirrored at the request boundary) ---

func (a *AuthModule) validateRegistration(input *registerInput) gin.H {
	fieldErrors := gin.H{}

	if msg := validateEmail(input.Email); msg != "" {
		fieldErrors["email"] = msg
	} else {
		var count int64
		a.db.Model(&models.User{}).Where("email = ?", input.Email).Count(&count)
		if count > 0 {
			fieldErrors["email"] = "Email already exists."
		}
	}
	if msg := validatePassword(input.Password); msg != "" {
		fieldErrors["password"] = msg
	}
	if msg := validateName(input.FName); msg != "" {
		fieldErrors["fname"] = msg
	}
	if msg := validateName(input.LName); msg != "" {
		fieldErrors["lname"] = msg
	}
	if input.Phone != "" {
		if msg := validatePhone(input.Phone); msg != "" {
			fieldErrors["phone"] = msg
		}
	}

	return fieldErrors
}

func validateEmail(email string) string {
	if !strings.Contains(email, "@") ||
		!(strings.HasSuffix(email, ".com") || strings.HasSuffix(email, ".in")) {
		return "Invalid email format."
	}
	return ""
}

func validatePassword(password string) string {
	if len(password) < 8 {
		return "Password should be at least 8 characters long."
	}
	hasDigit := false
	hasLetter := false
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		}
	}
	if !hasDigit {
		return "Password should contain at least one digit."
	}
	if !hasLetter {
		return "Password should contain at least one letter."
	}
	return ""
}

func validateName(name string) string {
	if len(name) < 2 || len(name) > 50 {
		return "Name should be between 2 and 50 characters long."
	}
	return ""
}

func validatePhone(phone string) string {
	if len(phone) < 10 || len(phone) > 13 {
		return "Invalid phone number format."
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return "Invalid phone number format."
		}
	}
	return ""
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
