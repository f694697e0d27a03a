package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quiz-arena-system/handlers"
	"quiz-arena-system/middleware"
	"quiz-arena-system/models"
	"quiz-arena-system/services"
	"quiz-arena-system/utils"
	"quiz-arena-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		ReadBufferSize: 8192, // websocket handshakes carry long query strings
	})

	// 🔐 GLOBAL: only Gateway requests allowed. The websocket handshake and
	// the load balancer health probe are the two carve-outs — browsers cannot
	// attach the gateway header to a websocket upgrade, so /arena/ws
	// authenticates per-connection against the auth service instead.
	gatewayAuth := middleware.GatewayAuthMiddleware()
	app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/health" || strings.HasPrefix(path, "/arena/ws") {
			return c.Next()
		}
		return gatewayAuth(c)
	})

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := utils.MustEnv("DATABASE_URL")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.PlayerLedger{},
		&models.PlayerBoost{},
		&models.CosmeticItem{},
		&models.PlayerCosmetic{},
		&models.StudyGroup{},
		&models.QuizItem{},
		&models.MatchSession{},
		&models.RaidBoss{},
		&models.RaidContribution{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	arenaServiceToken := utils.MustEnv("ARENA_SERVICE_TOKEN")
	authClient := services.NewAuthServiceClient(utils.MustEnv("AUTH_SERVICE_URL"), arenaServiceToken)

	ledgerService := services.NewLedgerService(db)
	itemBank := services.NewItemBank(db)
	arenaStore := services.NewArenaStore(db)
	hub := services.NewHub()

	matchCfg := services.MatchConfig{
		ItemCount:         utils.EnvInt("MATCH_ITEM_COUNT", 5),
		Countdown:         utils.EnvSeconds("MATCH_COUNTDOWN_SEC", 3*time.Second),
		Duration:          utils.EnvSeconds("MATCH_DURATION_SEC", 60*time.Second),
		BasePoints:        utils.EnvInt("MATCH_BASE_POINTS", 10),
		SpeedBonusCeiling: utils.EnvInt("MATCH_SPEED_BONUS_CEILING", 10),
		KFactor:           utils.EnvInt("ELO_K_FACTOR", 32),
		WinXP:             utils.EnvInt("MATCH_WIN_XP", 50),
		WinCoins:          utils.EnvInt("MATCH_WIN_COINS", 25),
		LoseXP:            utils.EnvInt("MATCH_LOSE_XP", 15),
	}
	matchManager := services.NewMatchManager(matchCfg, itemBank, ledgerService, arenaStore, hub)

	raidUpdates := make(chan services.RaidUpdate, 256)
	raidCfg := services.RaidConfig{
		Capacity:        utils.EnvInt("RAID_CAPACITY", 20),
		Duration:        utils.EnvSeconds("RAID_DURATION_SEC", 300*time.Second),
		AbilityInterval: utils.EnvSeconds("RAID_ABILITY_INTERVAL_SEC", 30*time.Second),
		MaxHit:          int64(utils.EnvInt("RAID_MAX_HIT", 50)),
		RewardXP:        utils.EnvInt("RAID_REWARD_XP", 40),
		RewardCoins:     utils.EnvInt("RAID_REWARD_COINS", 20),
		ItemCount:       utils.EnvInt("MATCH_ITEM_COUNT", 5),
	}
	raidManager := services.NewRaidManager(raidCfg, itemBank, ledgerService, arenaStore, hub, raidUpdates)

	matchmaker := services.NewMatchmaker(utils.EnvInt("QUEUE_RATING_RANGE", 200), hub, ledgerService, matchManager)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persistWorker := workers.NewRaidPersistWorker(arenaStore, raidUpdates)
	persistWorker.Start(ctx)

	profileSync := workers.NewProfileSyncWorker(db, utils.MustEnv("PROFILE_SYNC_URL"), "/api/v1/public/profiles", arenaServiceToken)
	profileSync.Start(ctx)

	services.StartBossScheduler(arenaStore, raidManager)

	handlers.SetupArenaRoutes(app, &handlers.ArenaDeps{
		Hub:        hub,
		Matchmaker: matchmaker,
		Matches:    matchManager,
		Raids:      raidManager,
		Ledger:     ledgerService,
		Store:      arenaStore,
		Auth:       authClient,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Raid Persist Worker running")
	log.Println("✅ Profile Sync Worker running (every 1m)")
	log.Println("✅ GatewayAuthMiddleware enforced (except /health and /arena/ws handshake)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	matchManager.SettleAll()
	raidManager.TeardownLiveRooms()
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
