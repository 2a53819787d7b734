package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/transfer"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

type AuthMiddleware struct {
	cfg config.Config
}

func NewAuthMiddleware(cfg config.Config) *AuthMiddleware {
	return &AuthMiddleware{cfg: cfg}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(transfer.ErrorResponse{
		Error: message,
		Code:  models.ErrorCodeUnauthorized,
	})
}

// AuthMiddleware accepts the session cookie or an Authorization bearer token
// and stores the user id in c.Locals("user_id").
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(m.cfg.CookieName)
		fromCookie := tokenString != ""

		if !fromCookie {
			auth := c.Get(fiber.HeaderAuthorization)
			if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
				tokenString = strings.TrimSpace(token)
			}
		}

		if tokenString == "" {
			return unauthorized(c, "Missing session token")
		}

		claims, err := utils.ValidateToken(m.cfg.SecretKey, tokenString)
		if err != nil {
			if fromCookie {
				c.Cookie(&fiber.Cookie{
					Name:   m.cfg.CookieName,
					Value:  "",
					Path:   "/",
					MaxAge: -1,
				})
			}

			slog.Info("token validation failed", "path", c.Path(), "error", err)
			return unauthorized(c, models.UserMessage(models.ErrorCodeUnauthorized))
		}

		c.Locals("user_id", claims.UserID)
		return c.Next()
	}
}
