// middleware/ws_auth.go
package middleware

import (
	"log"
	"strings"

	"quiz-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

// WSAuthMiddleware validates `token` and `device_id` query params via the
// auth service before the websocket upgrade. The browser websocket API cannot
// set headers, hence query params.
//
// Usage:
//
//	app.Get("/arena/ws", middleware.WSAuthMiddleware(authClient), websocket.New(...))
func WSAuthMiddleware(authClient *services.AuthServiceClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))

		if accessToken == "" || deviceID == "" {
			log.Printf("[WSAuth] ❌ missing query params on %s (token len=%d, device_id=%q)",
				c.Path(), len(accessToken), deviceID)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token or device_id in query",
			})
		}

		resp, err := authClient.ValidateToken(accessToken, deviceID)
		if err != nil {
			log.Printf("[WSAuth] ❌ validation failed for device %s: %v", deviceID, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals("user_id", resp.UserID)
		c.Locals("username", resp.Username)
		c.Locals("user_roles", resp.Roles)

		log.Printf("[WSAuth] ✅ authenticated user %s (device %s)", resp.UserID, resp.DeviceID)
		return c.Next()
	}
}
