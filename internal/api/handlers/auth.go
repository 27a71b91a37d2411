package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shoplens/shoplens-backend/internal/api/middleware"
	"github.com/shoplens/shoplens-backend/internal/auth"
)

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func setAccessCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    token,
		Expires:  time.Now().Add(auth.AccessTokenTTL),
		HTTPOnly: true,
		SameSite: "Strict",
	})
}

// Signup registers a new user
func Signup(authService *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req credentialsRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		user, token, err := authService.Signup(c.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidSignup):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Name, a valid email, and a password of at least 8 characters are required",
				})
			case errors.Is(err, auth.ErrEmailTaken):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "Email already registered",
				})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Failed to create account",
				})
			}
		}

		setAccessCookie(c, token)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"user":  user,
			"token": token,
		})
	}
}

// Login authenticates a user
func Login(authService *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req credentialsRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		user, token, err := authService.Login(c.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid email or password",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to log in",
			})
		}

		setAccessCookie(c, token)
		return c.JSON(fiber.Map{
			"user":  user,
			"token": token,
		})
	}
}

// CurrentUser returns the authenticated identity
func CurrentUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userContext := middleware.GetUserContext(c)
		if userContext == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Not authenticated",
			})
		}
		return c.JSON(fiber.Map{
			"user": userContext,
		})
	}
}
