// internal/api/v2/auth.go
package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/africaresearchbase/arb/internal/datastore"
	"github.com/africaresearchbase/arb/internal/errors"
	"github.com/africaresearchbase/arb/internal/security"
)

// Context keys set by AuthMiddleware.
const (
	ctxUserID     = "user_id"
	ctxUserEmail  = "user_email"
	ctxAuthMethod = "auth_method"
)

const minPasswordLength = 8

// initAuthRoutes registers registration, login and API key endpoints.
func (c *Controller) initAuthRoutes() {
	c.Group.POST("/auth/register", c.Register, c.RateLimitMiddleware())
	c.Group.POST("/auth/login", c.Login, c.RateLimitMiddleware())
	c.Group.POST("/auth/apikey", c.CreateAPIKey, c.AuthMiddleware())
}

// AuthMiddleware authenticates requests via a bearer JWT or an API key
// header and stores the caller's identity in the request context.
func (c *Controller) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if apiKey := ctx.Request().Header.Get("X-Api-Key"); apiKey != "" {
				user, err := c.DS.GetUserByAPIKeyHash(security.HashAPIKey(apiKey))
				if err != nil {
					return c.HandleError(ctx, nil, "Invalid API key", http.StatusUnauthorized)
				}
				ctx.Set(ctxUserID, user.ID)
				ctx.Set(ctxUserEmail, user.Email)
				ctx.Set(ctxAuthMethod, string(security.AuthMethodAPIKey))
				return next(ctx)
			}

			claims, err := c.bearerClaims(ctx)
			if err != nil {
				return c.HandleError(ctx, nil, "Authentication required", http.StatusUnauthorized)
			}
			ctx.Set(ctxUserID, claims.UserID)
			ctx.Set(ctxUserEmail, claims.Email)
			ctx.Set(ctxAuthMethod, string(security.AuthMethodBearer))
			return next(ctx)
		}
	}
}

// bearerClaims parses and validates the Authorization header.
func (c *Controller) bearerClaims(ctx echo.Context) (*security.Claims, error) {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, errors.Newf("missing bearer token").Category(errors.CategoryAuth).Build()
	}
	return c.auth.ValidateToken(token)
}

// requesterID returns the authenticated user's ID, or "" on public routes.
func (c *Controller) requesterID(ctx echo.Context) string {
	id, _ := ctx.Get(ctxUserID).(string)
	return id
}

// optionalRequesterID identifies the caller on public routes when a
// valid bearer token or API key happens to be present.
func (c *Controller) optionalRequesterID(ctx echo.Context) string {
	if id := c.requesterID(ctx); id != "" {
		return id
	}
	if apiKey := ctx.Request().Header.Get("X-Api-Key"); apiKey != "" {
		if user, err := c.DS.GetUserByAPIKeyHash(security.HashAPIKey(apiKey)); err == nil {
			return user.ID
		}
	}
	if claims, err := c.bearerClaims(ctx); err == nil {
		return claims.UserID
	}
	return ""
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Institution string `json:"institution"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Institution string `json:"institution"`
	Points      int    `json:"points"`
}

func toUserResponse(u *datastore.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Institution: u.Institution,
		Points:      u.Points,
	}
}

// Register creates a new account and returns a session token.
func (c *Controller) Register(ctx echo.Context) error {
	var req registerRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return c.HandleError(ctx, nil, "A valid email address is required", http.StatusBadRequest)
	}
	if len(req.Password) < minPasswordLength {
		return c.HandleError(ctx, nil, "Password must be at least 8 characters", http.StatusBadRequest)
	}

	if _, err := c.DS.GetUserByEmail(req.Email); err == nil {
		return c.HandleError(ctx, nil, "An account with this email already exists", http.StatusConflict)
	} else if !errors.Is(err, datastore.ErrUserNotFound) {
		return c.HandleError(ctx, err, "Failed to create account", http.StatusInternalServerError)
	}

	hash, err := c.auth.HashPassword(req.Password)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create account", http.StatusInternalServerError)
	}

	user := &datastore.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		Institution:  req.Institution,
		PasswordHash: hash,
	}
	if err := c.DS.CreateUser(user); err != nil {
		return c.HandleError(ctx, err, "Failed to create account", http.StatusInternalServerError)
	}

	token, err := c.auth.IssueToken(user.ID, user.Email)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to issue session token", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"token":   token,
		"user":    toUserResponse(user),
	})
}

// Login verifies credentials and returns a session token.
func (c *Controller) Login(ctx echo.Context) error {
	var req loginRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	// The same message is returned whether the account exists or the
	// password is wrong.
	user, err := c.DS.GetUserByEmail(req.Email)
	if err != nil || !c.auth.CheckPassword(user.PasswordHash, req.Password) {
		return c.HandleError(ctx, nil, "Invalid email or password", http.StatusUnauthorized)
	}

	token, err := c.auth.IssueToken(user.ID, user.Email)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to issue session token", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"user":    toUserResponse(&user),
	})
}

// CreateAPIKey issues a fresh API key for the caller, replacing any
// previous key. The plaintext key is only ever returned here.
func (c *Controller) CreateAPIKey(ctx echo.Context) error {
	userID := c.requesterID(ctx)

	user, err := c.DS.GetUser(userID)
	if err != nil {
		return c.HandleError(ctx, err, "Account not found", http.StatusNotFound)
	}

	key, hash, err := c.auth.GenerateAPIKey()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to generate API key", http.StatusInternalServerError)
	}

	user.APIKeyHash = hash
	if err := c.DS.UpdateUser(&user); err != nil {
		return c.HandleError(ctx, err, "Failed to store API key", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"api_key": key,
	})
}
