package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func newProtectedApp(secret string) *fiber.App {
	app := fiber.New()
	app.Get("/me", JWTMiddleware(secret), func(c *fiber.Ctx) error {
		id, _ := c.Locals("device_id").(string)
		return c.SendString(id)
	})
	return app
}

func TestJWTMiddlewareSetsDevice(t *testing.T) {
	token, err := NewService("secret", nil).signToken("device-7", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := newProtectedApp("secret").Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "device-7" {
		t.Fatalf("unexpected device %q", body)
	}
}

func TestJWTMiddlewareRejects(t *testing.T) {
	other, _ := NewService("other", nil).signToken("device-7", time.Hour)
	cases := map[string]string{
		"missing":      "",
		"wrong scheme": "Basic abc",
		"garbage":      "Bearer not-a-token",
		"wrong secret": "Bearer " + other,
	}
	app := newProtectedApp("secret")
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", name, resp.StatusCode)
		}
	}
}

func TestBearerFromHeader(t *testing.T) {
	if got := bearerFromHeader("bearer  abc "); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := bearerFromHeader("Token abc"); got != "" {
		t.Fatalf("got %q", got)
	}
}
