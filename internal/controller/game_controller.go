package controller

import (
	"errors"
	"strconv"

	"github.com/benbeisheim/chess-backend/internal/middleware"
	"github.com/benbeisheim/chess-backend/internal/model"
	"github.com/benbeisheim/chess-backend/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

type GameController struct {
	gameService *service.GameService
}

func NewGameController(gameService *service.GameService) *GameController {
	return &GameController{gameService: gameService}
}

// Register mounts the game routes on router.
func (gc *GameController) Register(router fiber.Router) {
	router.Post("/matchmaking/join", gc.JoinMatchmaking)
	router.Post("/matchmaking/leave", gc.LeaveMatchmaking)
	router.Post("/create", gc.CreateGame)
	router.Post("/join/:gameId", gc.JoinGame)
	router.Get("/:gameId", gc.GetGameState)
	router.Get("/:gameId/moves", gc.LegalMoves)
	router.Post("/:gameId/move", gc.MakeMove)
	router.Delete("/:gameId", gc.DeleteGame)
}

// statusFor maps service and rules errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrGameNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, model.ErrInvalidMove):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrNotInGame), errors.Is(err, service.ErrNotYourTurn):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrGameFull), errors.Is(err, service.ErrAlreadyQueued),
		errors.Is(err, service.ErrGameOngoing):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// gameID returns the :gameId route parameter as a string the server may
// keep after the request ends.
func gameID(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("gameId"))
}

func errorResponse(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func (gc *GameController) CreateGame(c *fiber.Ctx) error {
	id, err := gc.gameService.CreateGame()
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Game created",
		"game_id": id,
	})
}

func (gc *GameController) JoinGame(c *fiber.Ctx) error {
	color, err := gc.gameService.JoinGame(gameID(c), middleware.PlayerID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Game joined",
		"color":   color,
	})
}

func (gc *GameController) GetGameState(c *fiber.Ctx) error {
	snap, err := gc.gameService.GetSnapshot(gameID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(snap)
}

// LegalMoves answers which moves the piece on ?row=&col= may make. moves is
// null for an empty square.
func (gc *GameController) LegalMoves(c *fiber.Ctx) error {
	row, rowErr := queryInt(c, "row")
	col, colErr := queryInt(c, "col")
	if rowErr != nil || colErr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "row and col query parameters must be integers",
		})
	}

	moves, err := gc.gameService.LegalMoves(gameID(c), model.NewPosition(row, col))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"moves": moves,
	})
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	return strconv.Atoi(c.Query(key))
}

func (gc *GameController) MakeMove(c *fiber.Ctx) error {
	var move model.Move
	if err := c.BodyParser(&move); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid move body: " + err.Error(),
		})
	}

	snap, err := gc.gameService.HandleMove(gameID(c), middleware.PlayerID(c), move)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(snap)
}

func (gc *GameController) DeleteGame(c *fiber.Ctx) error {
	if err := gc.gameService.DeleteGame(gameID(c), middleware.PlayerID(c)); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Game deleted",
	})
}

func (gc *GameController) JoinMatchmaking(c *fiber.Ctx) error {
	if err := gc.gameService.JoinMatchmaking(middleware.PlayerID(c)); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "queued",
	})
}

func (gc *GameController) LeaveMatchmaking(c *fiber.Ctx) error {
	gc.gameService.LeaveMatchmaking(middleware.PlayerID(c))
	return c.JSON(fiber.Map{
		"status": "left",
	})
}
