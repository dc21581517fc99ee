package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"project_archive/internal/auth"
	"project_archive/internal/media"
	"project_archive/internal/models"
	"project_archive/internal/oauth"
	"project_archive/internal/service"
	"project_archive/internal/storage"
)

type Handler struct {
	serviceLayer service.Service
	mediaStore   *media.Store
	issuer       *auth.Issuer
	log          *slog.Logger
}

type errorResponse struct {
	Message string `json:"message"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Message: errMessage})
}

func NewHandler(srvc service.Service, mediaStore *media.Store, issuer *auth.Issuer, lgr *slog.Logger) *Handler {
	return &Handler{
		serviceLayer: srvc,
		mediaStore:   mediaStore,
		issuer:       issuer,
		log:          lgr,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	authApp := router.Group("/auth-app")
	{
		authApp.POST("/login", h.RequestOTP)
		authApp.POST("/verify-otp", h.VerifyOTP)
		authApp.POST("/oauth", h.OAuthLogin)
		authApp.POST("/refresh", h.RefreshToken)

		authApp.Use(AuthMiddleware(h.issuer))
		authApp.GET("/profile", h.GetProfile)
		authApp.PATCH("/profile/update", h.UpdateProfile)
	}

	adminApp := router.Group("/admin-app")
	{
		adminApp.POST("/login", h.AdminLogin)

		adminApp.Use(AuthMiddleware(h.issuer), h.AdminOnly())
		adminApp.GET("/profile", h.GetProfile)
	}

	return router
}

// POST /auth-app/login
//
// The acknowledgment is identical for new and existing users, so the
// endpoint cannot be used to probe which emails are registered.
func (h *Handler) RequestOTP(c *gin.Context) {
	const op = "handler.RequestOTP"

	log := h.log.With(slog.String("op", op))

	var payload struct {
		Email string `json:"email" binding:"required,email"`
	}

	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "not valid email")

		return
	}

	if err := h.serviceLayer.RequestOTP(c.Request.Context(), payload.Email); err != nil {
		log.Error("failed to send otp", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "Failed to send OTP")

		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "OTP Sent to your mail"})
}

// POST /auth-app/verify-otp
func (h *Handler) VerifyOTP(c *gin.Context) {
	const op = "handler.VerifyOTP"

	log := h.log.With(slog.String("op", op))

	var payload struct {
		Email string `json:"email" binding:"required,email"`
		OTP   string `json:"otp" binding:"required,len=6,numeric"`
	}

	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Error("invalid verify-otp payload", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "email and a 6-digit otp are required")

		return
	}

	result, err := h.serviceLayer.VerifyOTP(c.Request.Context(), payload.Email, payload.OTP)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUserNotFound):
			newErrorResponse(c, http.StatusNotFound, "User not found")
		case errors.Is(err, service.ErrInvalidOTP):
			newErrorResponse(c, http.StatusUnauthorized, "Invalid or expired OTP")
		default:
			log.Error("failed to verify otp", slog.Any("error", err))

			newErrorResponse(c, http.StatusInternalServerError, "internal error")
		}

		return
	}

	c.JSON(http.StatusOK, result)
}

// POST /auth-app/oauth
func (h *Handler) OAuthLogin(c *gin.Context) {
	const op = "handler.OAuthLogin"

	log := h.log.With(slog.String("op", op))

	var payload struct {
		Provider  string `json:"third_party_app" binding:"required"`
		AuthToken string `json:"auth_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Error("invalid oauth payload", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "third_party_app and auth_token are required")

		return
	}

	result, err := h.serviceLayer.OAuthLogin(c.Request.Context(), payload.Provider, payload.AuthToken)
	if err != nil {
		log.Error("oauth login failed",
			slog.String("provider", payload.Provider),
			slog.Any("error", err),
		)

		switch {
		case errors.Is(err, oauth.ErrUnsupportedProvider):
			newErrorResponse(c, http.StatusNotFound, "Provider is not supported")
		case errors.Is(err, oauth.ErrNotConfigured):
			newErrorResponse(c, http.StatusInternalServerError, "Provider is not configured")
		case errors.Is(err, oauth.ErrInvalidAudience):
			newErrorResponse(c, http.StatusBadRequest, "Invalid token: audience does not match client id")
		case errors.Is(err, oauth.ErrUpstream),
			errors.Is(err, oauth.ErrNoAccessToken),
			errors.Is(err, oauth.ErrNoEmail):
			newErrorResponse(c, http.StatusBadRequest, "Sign-in with "+payload.Provider+" failed")
		default:
			newErrorResponse(c, http.StatusInternalServerError, "internal error")
		}

		return
	}

	c.JSON(http.StatusOK, result)
}

// POST /auth-app/refresh
func (h *Handler) RefreshToken(c *gin.Context) {
	const op = "handler.RefreshToken"

	log := h.log.With(slog.String("op", op))

	var payload struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Error("missing refresh token", slog.Any("error", err))

		newErrorResponse(c, http.StatusUnauthorized, "Missing refresh token")

		return
	}

	tokens, err := h.serviceLayer.Refresh(c.Request.Context(), payload.RefreshToken)
	if err != nil {
		log.Error("failed to refresh tokens", slog.Any("error", err))

		newErrorResponse(c, http.StatusUnauthorized, "Invalid token")

		return
	}

	c.JSON(http.StatusOK, tokens)
}

// POST /admin-app/login
func (h *Handler) AdminLogin(c *gin.Context) {
	const op = "handler.AdminLogin"

	log := h.log.With(slog.String("op", op))

	var payload struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Error("invalid admin login payload", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "email and password are required")

		return
	}

	result, err := h.serviceLayer.AdminLogin(c.Request.Context(), payload.Email, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUserNotFound):
			newErrorResponse(c, http.StatusBadRequest, "Invalid Email")
		case errors.Is(err, service.ErrInvalidCredentials):
			newErrorResponse(c, http.StatusUnauthorized, "Invalid password")
		default:
			log.Error("admin login failed", slog.Any("error", err))

			newErrorResponse(c, http.StatusInternalServerError, "internal error")
		}

		return
	}

	c.JSON(http.StatusOK, result)
}

// GET /auth-app/profile
func (h *Handler) GetProfile(c *gin.Context) {
	const op = "handler.GetProfile"

	log := h.log.With(slog.String("op", op))

	userID, ok := userIDFromContext(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	user, err := h.serviceLayer.Profile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			newErrorResponse(c, http.StatusNotFound, "User not found")

			return
		}

		log.Error("failed to get profile", slog.Int64("user_id", userID), slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, "internal error")

		return
	}

	if user.Photo != nil {
		full := media.FullURL(requestBaseURL(c), *user.Photo)
		user.Photo = &full
	}

	c.JSON(http.StatusOK, user)
}

// PATCH /auth-app/profile/update
//
// Multipart form; only the supplied fields are persisted.
func (h *Handler) UpdateProfile(c *gin.Context) {
	const op = "handler.UpdateProfile"

	log := h.log.With(slog.String("op", op))

	userID, ok := userIDFromContext(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	var update storage.ProfileUpdate
	if v, ok := c.GetPostForm("first_name"); ok {
		update.FirstName = &v
	}
	if v, ok := c.GetPostForm("last_name"); ok {
		update.LastName = &v
	}
	if v, ok := c.GetPostForm("phone_no"); ok {
		update.PhoneNo = &v
	}

	if file, err := c.FormFile("photo"); err == nil {
		relURL, err := h.mediaStore.SavePhoto(file, "user/photos")
		if err != nil {
			if errors.Is(err, media.ErrExtensionNotAllowed) {
				newErrorResponse(c, http.StatusBadRequest, "Only .jpg, .jpeg and .png files are allowed")

				return
			}

			log.Error("failed to save photo", slog.Any("error", err))

			newErrorResponse(c, http.StatusInternalServerError, "failed to save photo")

			return
		}
		update.Photo = &relURL
	}

	if err := h.serviceLayer.UpdateProfile(c.Request.Context(), userID, update); err != nil {
		if errors.Is(err, service.ErrNoFieldsToUpdate) {
			newErrorResponse(c, http.StatusBadRequest, "No data provided")

			return
		}

		log.Error("failed to update profile", slog.Int64("user_id", userID), slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, "internal error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully"})
}

// AdminOnly requires the authenticated user to hold an elevated role.
// Non-admins get 404 rather than 403, hiding that the route exists.
func (h *Handler) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFromContext(c)
		if !ok {
			newErrorResponse(c, http.StatusUnauthorized, "invalid token")

			return
		}

		user, err := h.serviceLayer.Profile(c.Request.Context(), userID)
		if err != nil {
			newErrorResponse(c, http.StatusUnauthorized, "User not found")

			return
		}

		if user.Role != models.RoleAdmin && user.Role != models.RoleStaff {
			newErrorResponse(c, http.StatusNotFound, "User not found")

			return
		}

		c.Next()
	}
}

func userIDFromContext(c *gin.Context) (int64, bool) {
	value, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}

	userID, ok := value.(int64)
	return userID, ok
}

func requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
