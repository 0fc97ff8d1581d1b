package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theleywin/talentnest-graph/src/lib"
)

const userIDKey = "userId"

// ProtectRoute returns a middleware that checks for a valid JWT bearer token
// and attaches the authenticated user id to the request context
func ProtectRoute(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(lib.ErrorResponse("unauthorized", "Unauthorized - No Token Provided"))
		}

		// Expected format: "Bearer <token>"
		if len(authHeader) <= 7 || authHeader[:7] != "Bearer " {
			return c.Status(fiber.StatusUnauthorized).JSON(lib.ErrorResponse("unauthorized", "Unauthorized - Invalid Token Format"))
		}

		userID, err := lib.VerifyJWT(authHeader[7:], secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(lib.ErrorResponse("unauthorized", "Unauthorized - Invalid Token"))
		}

		c.Locals(userIDKey, userID)
		return c.Next()
	}
}

// UserID returns the id stored by ProtectRoute
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}
