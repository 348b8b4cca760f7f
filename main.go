package main

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/Matteo-Daniele/useTeam-PT/api"
	"github.com/Matteo-Daniele/useTeam-PT/export"
	"github.com/Matteo-Daniele/useTeam-PT/kanban"
	"github.com/Matteo-Daniele/useTeam-PT/realtime"
	"github.com/Matteo-Daniele/useTeam-PT/storage"
)

func main() {
	_ = godotenv.Load()

	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	boardsTable := os.Getenv("BOARDS_TABLE")
	columnsTable := os.Getenv("COLUMNS_TABLE")
	cardsTable := os.Getenv("CARDS_TABLE")
	if connStr == "" || boardsTable == "" || columnsTable == "" || cardsTable == "" {
		log.Fatal("missing storage config")
	}
	if err := storage.EnsureTables(context.Background(), connStr, boardsTable, columnsTable, cardsTable); err != nil {
		log.Fatalf("provision tables: %v", err)
	}
	store, err := storage.New(connStr, boardsTable, columnsTable, cardsTable)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(parseRedisConn(redisConn))

	snapshotTTL := 5 * time.Minute
	if v := os.Getenv("SNAPSHOT_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid SNAPSHOT_CACHE_TTL: %v", err)
		}
		snapshotTTL = d
	}
	cache := storage.NewCache(store, rc, snapshotTTL)

	logger := log.New()

	hub := realtime.NewHub(logger)
	channel := os.Getenv("EVENTS_CHANNEL")
	if channel == "" {
		channel = "kanban:updates"
	}
	relay := realtime.NewRelay(hub, rc, channel, logger)
	hub.SetPublisher(relay.Publish)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)

	svc := kanban.New(cache, hub, kanban.DefaultLimits(), logger)

	webhookURL := os.Getenv("EXPORT_WEBHOOK_URL")
	if webhookURL == "" {
		log.Fatal("missing export webhook config")
	}
	dedupeTTL := 10 * time.Minute
	if v := os.Getenv("EXPORT_DEDUPE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid EXPORT_DEDUPE_TTL: %v", err)
		}
		dedupeTTL = d
	}
	deduper := export.NewRedisDeduper(rc, dedupeTTL)
	exporter := export.NewService(cache, hub, deduper, webhookURL, export.Options{}, logger)
	defer exporter.Close()

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	api.Register(e, svc, hub, exporter, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// parseRedisConn accepts either a redis URL or the comma separated
// "host:port,password=...,ssl=true" form Azure hands out.
func parseRedisConn(connStr string) *redis.Options {
	opts, err := redis.ParseURL(connStr)
	if err == nil {
		return opts
	}
	parts := strings.Split(connStr, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
