package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"eventhub/internal/config"
	"eventhub/internal/database"
	"eventhub/internal/handler"
	"eventhub/internal/hub"
	"eventhub/internal/model"
	"eventhub/internal/notify"
	"eventhub/internal/service"
	"eventhub/internal/store"
)

func main() {
	seed := flag.Bool("seed", false, "insert demo listings on startup")
	flag.Parse()

	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  .env file not found, using default values: %v", err)
	}

	// 環境変数を読み込み
	cfg := config.Load()

	// データベース接続を初期化
	db, err := database.Init(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	defer db.Close()

	st := store.New(db)
	if *seed {
		if err := seedListings(st); err != nil {
			log.Fatalf("❌ Failed to seed listings: %v", err)
		}
		log.Println("🌱 Demo listings seeded")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// イベント配信: REDIS_URL があればインスタンス間で共有
	var broker hub.Broker = hub.NewLocalBroker()
	if cfg.RedisURL != "" {
		rb, err := hub.NewRedisBroker(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, using in-process broker: %v", err)
		} else {
			broker = rb
		}
	}
	defer broker.Close()

	hb := hub.New(broker)
	go hb.Run(ctx)

	// ベンダー通知
	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Printf("⚠️  Telegram unavailable, logging notices instead: %v", err)
		} else {
			notifier = tg
		}
	}

	svc := service.New(st, hb, notify.NewAsync(notifier))

	// ハンドラー初期化
	h := handler.New(svc, hb, cfg)
	router := h.SetupRouter()

	// CORS対応
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-User-ID", "X-User-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           300,
		AllowCredentials: true,
	})

	httpHandler := c.Handler(router)

	fmt.Println("========================================")
	fmt.Println("  EventHub Negotiation API Server")
	fmt.Println("========================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Server: http://localhost:%s\n", cfg.ServerPort)
	fmt.Printf("  WebSocket: ws://localhost:%s/ws\n", cfg.ServerPort)
	if cfg.DBDriver == database.DriverSQLite {
		fmt.Printf("  Database: sqlite3 %s\n", cfg.DBPath)
	} else if cfg.DBName != "" {
		fmt.Printf("  Database: %s@%s:%s/%s\n", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	fmt.Printf("  Allowed Origins: %v\n", cfg.AllowedOrigins)
	fmt.Println("========================================")
	log.Println("🚀 Server started successfully")
	log.Fatal(http.ListenAndServe(":"+cfg.ServerPort, httpHandler))
}

func seedListings(st *store.Store) error {
	listings := []model.Listing{
		{ID: "lst-photo", VendorID: "vendor-1", Name: "Wedding photography", Price: 45000, MinimumQuantity: 1, Unit: "event", Active: true},
		{ID: "lst-decor", VendorID: "vendor-1", Name: "Stage decoration", Price: 30000, MinimumQuantity: 1, Unit: "event", Active: true},
		{ID: "lst-catering", VendorID: "vendor-2", Name: "Veg buffet", Price: 650, MinimumQuantity: 100, Unit: "plate", Active: true},
	}
	for _, l := range listings {
		if err := st.UpsertListing(context.Background(), l); err != nil {
			return err
		}
	}
	return nil
}
