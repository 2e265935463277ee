package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benbeisheim/chess-backend/internal/middleware"
	"github.com/benbeisheim/chess-backend/internal/model"
	"github.com/benbeisheim/chess-backend/internal/service"
	"github.com/benbeisheim/chess-backend/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/google/go-cmp/cmp"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	st, err := store.Open("", true)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	app, _ := newTestAppWithStore(st)
	return app
}

// newTestAppWithStore serves the game routes over st. The fiber app keeps
// its default zero-copy request buffers.
func newTestAppWithStore(st service.Store) (*fiber.App, *service.GameManager) {
	gm := service.NewGameManager(st)
	app := fiber.New()
	NewGameController(service.NewGameService(gm)).Register(app.Group("/api/game", middleware.EnsurePlayerID()))
	return app, gm
}

// call sends a request as player and decodes the JSON response into out.
func call(t *testing.T, app *fiber.App, method, target, player string, body interface{}, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if player != "" {
		req.Header.Set("X-Player-ID", player)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, target, err)
		}
	}
	return resp.StatusCode
}

func createSeatedGame(t *testing.T, app *fiber.App) string {
	t.Helper()
	var created struct {
		GameID string `json:"game_id"`
	}
	if status := call(t, app, "POST", "/api/game/create", "alice", nil, &created); status != fiber.StatusOK {
		t.Fatalf("create status = %d", status)
	}
	for player, want := range map[string]string{"alice": "white", "bob": "black"} {
		var joined struct {
			Color string `json:"color"`
		}
		status := call(t, app, "POST", "/api/game/join/"+created.GameID, player, nil, &joined)
		if status != fiber.StatusOK || joined.Color != want {
			t.Fatalf("join as %s: status %d color %q; want %q", player, status, joined.Color, want)
		}
	}
	return created.GameID
}

func TestCreateJoinAndGetState(t *testing.T) {
	app := newTestApp(t)
	id := createSeatedGame(t, app)

	var snap service.Snapshot
	if status := call(t, app, "GET", "/api/game/"+id, "carol", nil, &snap); status != fiber.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if snap.ID != id || snap.ToMove != model.White || snap.Status != model.Ongoing {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Players != (service.Players{White: "alice", Black: "bob"}) {
		t.Errorf("players = %+v", snap.Players)
	}

	var full map[string]string
	if status := call(t, app, "POST", "/api/game/join/"+id, "carol", nil, &full); status != fiber.StatusConflict {
		t.Errorf("join full game status = %d; want 409", status)
	}
}

func TestMissingPlayerID(t *testing.T) {
	app := newTestApp(t)
	if status := call(t, app, "POST", "/api/game/create", "", nil, nil); status != fiber.StatusUnauthorized {
		t.Errorf("status = %d; want 401", status)
	}
}

func TestLegalMovesEndpoint(t *testing.T) {
	app := newTestApp(t)
	id := createSeatedGame(t, app)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		want       []model.Move
	}{
		{
			name:       "pawn",
			query:      "row=2&col=5",
			wantStatus: fiber.StatusOK,
			want: []model.Move{
				model.NewMove(model.NewPosition(2, 5), model.NewPosition(3, 5)),
				model.NewMove(model.NewPosition(2, 5), model.NewPosition(4, 5)),
			},
		},
		{"empty square", "row=4&col=4", fiber.StatusOK, nil},
		{"not a number", "row=two&col=5", fiber.StatusBadRequest, nil},
		{"missing col", "row=2", fiber.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp struct {
				Moves []model.Move `json:"moves"`
			}
			target := fmt.Sprintf("/api/game/%s/moves?%s", id, tt.query)
			if status := call(t, app, "GET", target, "alice", nil, &resp); status != tt.wantStatus {
				t.Fatalf("status = %d; want %d", status, tt.wantStatus)
			}
			if diff := cmp.Diff(tt.want, resp.Moves); diff != "" {
				t.Errorf("moves mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if status := call(t, app, "GET", "/api/game/missing/moves?row=2&col=5", "alice", nil, nil); status != fiber.StatusNotFound {
		t.Errorf("unknown game status = %d; want 404", status)
	}
}

func TestMakeMoveEndpoint(t *testing.T) {
	app := newTestApp(t)
	id := createSeatedGame(t, app)
	e2e4 := model.NewMove(model.NewPosition(2, 5), model.NewPosition(4, 5))
	e7e5 := model.NewMove(model.NewPosition(7, 5), model.NewPosition(5, 5))

	steps := []struct {
		name       string
		gameID     string
		player     string
		move       model.Move
		wantStatus int
	}{
		{"unknown game", "missing", "alice", e2e4, fiber.StatusNotFound},
		{"black first", id, "bob", e7e5, fiber.StatusForbidden},
		{"spectator", id, "carol", e2e4, fiber.StatusForbidden},
		{"illegal", id, "alice", model.NewMove(model.NewPosition(1, 1), model.NewPosition(3, 1)), fiber.StatusBadRequest},
		{"white", id, "alice", e2e4, fiber.StatusOK},
		{"white again", id, "alice", e2e4, fiber.StatusForbidden},
		{"black", id, "bob", e7e5, fiber.StatusOK},
	}
	for _, step := range steps {
		var body map[string]interface{}
		status := call(t, app, "POST", "/api/game/"+step.gameID+"/move", step.player, step.move, &body)
		if status != step.wantStatus {
			t.Fatalf("%s: status = %d; want %d (%v)", step.name, status, step.wantStatus, body)
		}
		if status != fiber.StatusOK && body["error"] == nil {
			t.Errorf("%s: error body missing: %v", step.name, body)
		}
	}

	var snap service.Snapshot
	call(t, app, "GET", "/api/game/"+id, "alice", nil, &snap)
	if diff := cmp.Diff([]model.Move{e2e4, e7e5}, snap.Moves); diff != "" {
		t.Errorf("moves mismatch (-want +got):\n%s", diff)
	}
}

func TestMakeMoveBadBody(t *testing.T) {
	app := newTestApp(t)
	id := createSeatedGame(t, app)
	req := httptest.NewRequest("POST", "/api/game/"+id+"/move", bytes.NewReader([]byte(`{"start":`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Player-ID", "alice")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d; want 400", resp.StatusCode)
	}
}

func TestMatchmakingEndpoints(t *testing.T) {
	app := newTestApp(t)
	var resp map[string]string
	if status := call(t, app, "POST", "/api/game/matchmaking/join", "alice", nil, &resp); status != fiber.StatusOK || resp["status"] != "queued" {
		t.Fatalf("join: status %d body %v", status, resp)
	}
	if status := call(t, app, "POST", "/api/game/matchmaking/join", "alice", nil, &resp); status != fiber.StatusConflict {
		t.Errorf("second join status = %d; want 409", status)
	}
	if status := call(t, app, "POST", "/api/game/matchmaking/leave", "alice", nil, &resp); status != fiber.StatusOK || resp["status"] != "left" {
		t.Errorf("leave: status %d body %v", status, resp)
	}
	if status := call(t, app, "POST", "/api/game/matchmaking/join", "alice", nil, &resp); status != fiber.StatusOK {
		t.Errorf("join after leave status = %d; want 200", status)
	}
}

// sendNoise issues requests whose player ids and paths reuse the request
// buffers of earlier calls.
func sendNoise(t *testing.T, app *fiber.App, idLen int) {
	t.Helper()
	for _, player := range []string{"zzzzz", "qq", "mallory-with-a-long-id"} {
		call(t, app, "GET", "/api/game/"+strings.Repeat("x", idLen), player, nil, nil)
		call(t, app, "GET", "/api/game/"+strings.Repeat("y", idLen)+"?playerId="+player, "", nil, nil)
	}
}

func TestStoredIDsSurviveLaterRequests(t *testing.T) {
	t.Run("seats", func(t *testing.T) {
		app := newTestApp(t)
		id := createSeatedGame(t, app)
		sendNoise(t, app, len(id))
		e2e4 := model.NewMove(model.NewPosition(2, 5), model.NewPosition(4, 5))

		var snap service.Snapshot
		call(t, app, "GET", "/api/game/"+id, "alice", nil, &snap)
		if want := (service.Players{White: "alice", Black: "bob"}); snap.Players != want {
			t.Errorf("players = %+v; want %+v", snap.Players, want)
		}
		if status := call(t, app, "POST", "/api/game/join/"+id, "carol", nil, nil); status != fiber.StatusConflict {
			t.Errorf("third join status = %d; want 409", status)
		}
		if status := call(t, app, "POST", "/api/game/"+id+"/move", "zzzzz", e2e4, nil); status != fiber.StatusForbidden {
			t.Errorf("stranger move status = %d; want 403", status)
		}
		if status := call(t, app, "POST", "/api/game/"+id+"/move", "alice", e2e4, nil); status != fiber.StatusOK {
			t.Errorf("white move status = %d; want 200", status)
		}
	})

	t.Run("matchmaking queue", func(t *testing.T) {
		app := newTestApp(t)
		if status := call(t, app, "POST", "/api/game/matchmaking/join", "alice", nil, nil); status != fiber.StatusOK {
			t.Fatalf("join status = %d", status)
		}
		sendNoise(t, app, 8)
		if status := call(t, app, "POST", "/api/game/matchmaking/join", "alice", nil, nil); status != fiber.StatusConflict {
			t.Errorf("second join status = %d; want 409", status)
		}
	})

	t.Run("restored game id", func(t *testing.T) {
		st, err := store.Open("", true)
		if err != nil {
			t.Fatal(err)
		}
		defer st.Close()

		first, _ := newTestAppWithStore(st)
		id := createSeatedGame(t, first)

		app, gm := newTestAppWithStore(st)
		if status := call(t, app, "GET", "/api/game/"+id, "alice", nil, nil); status != fiber.StatusOK {
			t.Fatalf("get after restart status = %d", status)
		}
		restored, err := gm.GetGame(id)
		if err != nil {
			t.Fatal(err)
		}
		sendNoise(t, app, len(id))

		again, err := gm.GetGame(id)
		if err != nil {
			t.Fatal(err)
		}
		if again != restored {
			t.Error("restored game lost from memory and loaded a second time")
		}
	})
}

func TestDeleteGameEndpoint(t *testing.T) {
	app := newTestApp(t)
	id := createSeatedGame(t, app)

	if status := call(t, app, "DELETE", "/api/game/"+id, "alice", nil, nil); status != fiber.StatusConflict {
		t.Errorf("delete ongoing status = %d; want 409", status)
	}

	foolsMate := []struct {
		player string
		move   model.Move
	}{
		{"alice", model.NewMove(model.NewPosition(2, 6), model.NewPosition(3, 6))},
		{"bob", model.NewMove(model.NewPosition(7, 5), model.NewPosition(5, 5))},
		{"alice", model.NewMove(model.NewPosition(2, 7), model.NewPosition(4, 7))},
		{"bob", model.NewMove(model.NewPosition(8, 4), model.NewPosition(4, 8))},
	}
	for _, m := range foolsMate {
		if status := call(t, app, "POST", "/api/game/"+id+"/move", m.player, m.move, nil); status != fiber.StatusOK {
			t.Fatalf("move %v status = %d", m.move, status)
		}
	}

	steps := []struct {
		name       string
		player     string
		wantStatus int
	}{
		{"stranger", "carol", fiber.StatusForbidden},
		{"seated player", "bob", fiber.StatusOK},
		{"gone", "bob", fiber.StatusNotFound},
	}
	for _, step := range steps {
		if status := call(t, app, "DELETE", "/api/game/"+id, step.player, nil, nil); status != step.wantStatus {
			t.Errorf("%s: status = %d; want %d", step.name, status, step.wantStatus)
		}
	}
}
