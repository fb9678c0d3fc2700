// Package backend exposes the prediction-and-persistence workflow as a JSON
// API. It is the presentation boundary: every failure category maps to an
// HTTP status and a user-facing message, nothing crashes the process.
package backend

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jo-hoe/retiscan/internal/backend/database"
	"github.com/jo-hoe/retiscan/internal/common"
	"github.com/jo-hoe/retiscan/internal/core"
)

const (
	// uploads beyond this size are rejected before they reach the workflow
	maxUploadSize = "10M"

	userIDContextKey = "userID"
	tokenContextKey  = "sessionToken"
)

type APIService struct {
	coreService *core.CoreService
}

func NewAPIService(coreService *core.CoreService) *APIService {
	return &APIService{
		coreService: coreService,
	}
}

type signUpRequest struct {
	Username        string `json:"username" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	FullName        string `json:"full_name"`
}

type logInRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updateProfileRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

type logInResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})

	api := e.Group("/api")
	api.POST("/signup", s.signUpHandler)
	api.POST("/login", s.logInHandler)
	api.GET("/classes", s.classesHandler)

	authenticated := api.Group("", s.sessionMiddleware)
	authenticated.POST("/logout", s.logOutHandler)
	authenticated.GET("/profile", s.profileHandler)
	authenticated.PUT("/profile", s.updateProfileHandler)
	authenticated.POST("/analyze", s.analyzeHandler, middleware.BodyLimit(maxUploadSize))
	authenticated.GET("/history", s.historyHandler)
	authenticated.GET("/records/:id/image", s.recordImageHandler)
	authenticated.GET("/records/:id/thumbnail", s.recordThumbnailHandler)
}

// sessionMiddleware resolves the bearer token into a user id stored on the
// request context. There is no process-wide current-user state.
func (s *APIService) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if token == "" {
			return c.JSON(http.StatusUnauthorized, errorBody("missing bearer token"))
		}

		userID, err := s.coreService.ResolveSession(c.Request().Context(), token)
		if err != nil {
			if errors.Is(err, common.ErrInvalidCredentials) {
				return c.JSON(http.StatusUnauthorized, errorBody("session expired or invalid"))
			}
			slog.Error("failed to resolve session", "error", err)
			return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
		}

		c.Set(userIDContextKey, userID)
		c.Set(tokenContextKey, token)
		return next(c)
	}
}

func (s *APIService) signUpHandler(c echo.Context) error {
	var request signUpRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	user, err := s.coreService.SignUp(
		request.Username, request.Email, request.Password, request.ConfirmPassword, request.FullName)
	if err != nil {
		return s.writeError(c, "sign-up failed", err)
	}

	return c.JSON(http.StatusCreated, toUserResponse(user))
}

func (s *APIService) logInHandler(c echo.Context) error {
	var request logInRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	token, user, err := s.coreService.LogIn(c.Request().Context(), request.Username, request.Password)
	if err != nil {
		return s.writeError(c, "login failed", err)
	}

	return c.JSON(http.StatusOK, logInResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}

func (s *APIService) logOutHandler(c echo.Context) error {
	token, _ := c.Get(tokenContextKey).(string)
	if err := s.coreService.LogOut(c.Request().Context(), token); err != nil {
		return s.writeError(c, "logout failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIService) profileHandler(c echo.Context) error {
	user, err := s.coreService.Profile(currentUserID(c))
	if err != nil {
		return s.writeError(c, "failed to load profile", err)
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

func (s *APIService) updateProfileHandler(c echo.Context) error {
	var request updateProfileRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	userID := currentUserID(c)
	if err := s.coreService.UpdateProfile(userID, request.Email, request.FullName); err != nil {
		return s.writeError(c, "failed to update profile", err)
	}

	user, err := s.coreService.Profile(userID)
	if err != nil {
		return s.writeError(c, "failed to load profile", err)
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// analyzeHandler accepts a multipart image upload and runs the full
// classification workflow synchronously. The response carries the stored
// record, the per-class scores and the advisory text.
func (s *APIService) analyzeHandler(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("no image file provided, use 'image' as the form field name"))
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("failed to open uploaded file", "error", err, "filename", file.Filename)
		return c.JSON(http.StatusInternalServerError, errorBody("failed to open uploaded file"))
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	data, err := io.ReadAll(src)
	if err != nil {
		slog.Error("failed to read uploaded file", "error", err, "filename", file.Filename)
		return c.JSON(http.StatusInternalServerError, errorBody("failed to read uploaded file"))
	}

	result, err := s.coreService.Analyze(c.Request().Context(), currentUserID(c), file.Filename, data)
	if err != nil {
		return s.writeError(c, "analysis failed", err)
	}

	return c.JSON(http.StatusOK, result)
}

func (s *APIService) historyHandler(c echo.Context) error {
	entries, err := s.coreService.History(currentUserID(c))
	if err != nil {
		return s.writeError(c, "failed to load history", err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *APIService) recordImageHandler(c echo.Context) error {
	data, err := s.coreService.RecordImage(currentUserID(c), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody("record not found"))
	}
	return c.Blob(http.StatusOK, http.DetectContentType(data), data)
}

func (s *APIService) recordThumbnailHandler(c echo.Context) error {
	data, err := s.coreService.RecordThumbnail(currentUserID(c), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody("record not found"))
	}
	return c.Blob(http.StatusOK, "image/png", data)
}

func (s *APIService) classesHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"classes": s.coreService.Classes()})
}

// writeError maps the failure taxonomy to HTTP statuses. Internal failures
// are logged with detail but surfaced as a generic message.
func (s *APIService) writeError(c echo.Context, message string, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, common.ErrDecode):
		return c.JSON(http.StatusBadRequest, errorBody("the uploaded file is not a readable image"))
	case errors.Is(err, common.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, errorBody("invalid username or password"))
	case errors.Is(err, common.ErrDuplicateUsername):
		return c.JSON(http.StatusConflict, errorBody("username already taken"))
	default:
		slog.Error(message, "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody(message))
	}
}

func currentUserID(c echo.Context) string {
	userID, _ := c.Get(userIDContextKey).(string)
	return userID
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

func toUserResponse(user *database.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FullName:  user.FullName,
		CreatedAt: user.CreatedAt,
	}
}
