package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/go-cmp/cmp"
)

func echoPlayerApp() *fiber.App {
	app := fiber.New()
	app.Use(EnsurePlayerID())
	app.Get("/who", func(c *fiber.Ctx) error {
		return c.SendString(PlayerID(c))
	})
	return app
}

func TestEnsurePlayerID(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"header", "/who", "alice", fiber.StatusOK, "alice"},
		{"query", "/who?playerId=bob", "", fiber.StatusOK, "bob"},
		{"header wins", "/who?playerId=bob", "alice", fiber.StatusOK, "alice"},
		{"missing", "/who", "", fiber.StatusUnauthorized, ""},
	}
	app := echoPlayerApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				req.Header.Set("X-Player-ID", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d; want %d", resp.StatusCode, tt.wantStatus)
			}
			body, _ := io.ReadAll(resp.Body)
			if tt.wantStatus != fiber.StatusOK {
				var payload map[string]string
				if err := json.Unmarshal(body, &payload); err != nil || payload["error"] == "" {
					t.Errorf("error body = %s", body)
				}
				return
			}
			if string(body) != tt.wantBody {
				t.Errorf("body = %q; want %q", body, tt.wantBody)
			}
		})
	}
}

func TestWebSocketUpgrade(t *testing.T) {
	app := fiber.New()
	app.Use("/ws", EnsurePlayerID(), WebSocketUpgrade())
	app.Get("/ws/game/:gameId", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusTeapot)
	})

	tests := []struct {
		name       string
		upgrade    bool
		wantStatus int
	}{
		{"plain request", false, fiber.StatusUpgradeRequired},
		{"upgrade request", true, fiber.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ws/game/g1?playerId=alice", nil)
			if tt.upgrade {
				req.Header.Set("Connection", "Upgrade")
				req.Header.Set("Upgrade", "websocket")
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d; want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestPlayerIDOutlivesRequest(t *testing.T) {
	var kept []string
	app := fiber.New()
	app.Use(EnsurePlayerID())
	app.Get("/keep", func(c *fiber.Ctx) error {
		kept = append(kept, PlayerID(c))
		return c.SendStatus(fiber.StatusNoContent)
	})

	players := []string{"alice", "zzzzz", "qq", "bob"}
	for i, player := range players {
		req := httptest.NewRequest("GET", "/keep", nil)
		if i%2 == 0 {
			req.Header.Set("X-Player-ID", player)
		} else {
			req = httptest.NewRequest("GET", "/keep?playerId="+player, nil)
		}
		if _, err := app.Test(req); err != nil {
			t.Fatalf("app.Test: %v", err)
		}
	}
	if diff := cmp.Diff(players, kept); diff != "" {
		t.Errorf("kept player ids changed (-want +got):\n%s", diff)
	}
}
