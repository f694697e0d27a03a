// handlers/arena.go
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"quiz-arena-system/middleware"
	"quiz-arena-system/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ArenaDeps bundles the services the arena surface needs
type ArenaDeps struct {
	Hub        *services.Hub
	Matchmaker *services.Matchmaker
	Matches    *services.MatchManager
	Raids      *services.RaidManager
	Ledger     *services.LedgerService
	Store      *services.ArenaStore
	Auth       *services.AuthServiceClient
}

// SetupArenaRoutes registers the websocket endpoint and the HTTP surface
func SetupArenaRoutes(app *fiber.App, deps *ArenaDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "server_time": time.Now().UnixMilli()})
	})

	// the browser websocket API cannot set headers, so the handshake
	// authenticates with query params against the auth service
	app.Use("/arena/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/arena/ws", middleware.WSAuthMiddleware(deps.Auth), websocket.New(func(conn *websocket.Conn) {
		deps.handleSocket(conn)
	}))

	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/user/matches", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, err := strconv.Atoi(c.Query("limit", "20"))
		if err != nil || limit <= 0 || limit > 100 {
			limit = 20
		}
		matches, err := deps.Store.MatchHistory(userID, limit)
		if err != nil {
			log.Printf("DB Error fetching match history for %s: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch match history"})
		}
		return c.JSON(matches)
	})

	secured.Get("/arena/boss", func(c *fiber.Ctx) error {
		boss, err := deps.Store.ActiveBoss()
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.JSON(fiber.Map{"active": false})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
		}
		return c.JSON(fiber.Map{"active": true, "boss": boss})
	})

	admin := secured.Group("/admin", middleware.RequireRole("admin"))

	admin.Post("/boss", func(c *fiber.Ctx) error {
		var req struct {
			Name    string     `json:"name" validate:"required"`
			MaxHP   int64      `json:"max_hp" validate:"required,min=1"`
			SpawnAt *time.Time `json:"spawn_at"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		boss, err := deps.Raids.SpawnBoss(req.Name, req.MaxHP, req.SpawnAt)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(boss)
	})
}

// handleSocket owns one player's channel for its whole lifetime: presence
// registration, message dispatch, presence teardown.
func (deps *ArenaDeps) handleSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	username, _ := conn.Locals("username").(string)
	if userID == "" {
		conn.Close()
		return
	}

	rating := 1000
	if ledger, err := deps.Ledger.EnsureLedger(userID, username); err == nil {
		rating = ledger.Rating
		if username == "" {
			username = ledger.Username
		}
	} else {
		log.Printf("arena: failed to ensure ledger for %s: %v", userID, err)
	}

	client := deps.Hub.Connect(userID, username, rating, conn)
	defer func() {
		deps.Matchmaker.Dequeue(userID)
		deps.Hub.Disconnect(client)
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg services.Envelope
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Printf("arena: discarding malformed message from %s: %v", userID, err)
			continue
		}

		if err := deps.dispatch(userID, msg); err != nil {
			deps.Hub.SendTo(userID, "error", services.ErrorPayload{Message: err.Error()})
		}
	}
}

// dispatch routes one inbound message. Ratings are never taken from the
// connect-time snapshot; the matchmaker reads the ledger per operation.
func (deps *ArenaDeps) dispatch(userID string, msg services.Envelope) error {
	switch msg.Type {
	case "join_queue":
		return deps.Matchmaker.Enqueue(userID)

	case "leave_queue":
		deps.Matchmaker.Dequeue(userID)
		return nil

	case "challenge":
		var p services.ChallengePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errors.New("invalid challenge payload")
		}
		return deps.Matchmaker.Challenge(userID, p.TargetID)

	case "challenge_response":
		var p services.ChallengeResponsePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errors.New("invalid challenge_response payload")
		}
		return deps.Matchmaker.Respond(userID, p.TargetID, p.Accept)

	case "submit_answer":
		var p services.SubmitAnswerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errors.New("invalid submit_answer payload")
		}
		return deps.Matches.SubmitAnswer(userID, p)

	case "raid_join":
		var p services.RaidJoinPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errors.New("invalid raid_join payload")
		}
		return deps.Raids.Join(userID, p.RoomID)

	case "raid_submit_damage":
		var p services.RaidDamagePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errors.New("invalid raid_submit_damage payload")
		}
		return deps.Raids.SubmitDamage(userID, p)

	default:
		log.Printf("arena: unknown message type %q from %s", msg.Type, userID)
		return errors.New("unknown message type: " + msg.Type)
	}
}
