package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	// Database settings. DBDriver is "mysql" or "sqlite3".
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string

	// Server settings
	ServerPort string
	Env        string

	// CORS settings
	AllowedOrigins []string

	// Cross-instance event fan-out; empty keeps it in process
	RedisURL string

	// Vendor notifications; empty token falls back to log output
	TelegramToken  string
	TelegramChatID int64

	// Client settings
	APIURL          string
	WSURL           string
	UserID          string
	UserType        string
	ReconnectDelay  time.Duration
	HeartbeatPeriod time.Duration
	HistoryPageSize int
}

// Load loads configuration from environment variables
func Load() Config {
	dbDriver := os.Getenv("DB_DRIVER")
	if dbDriver == "" {
		dbDriver = "mysql"
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "3306"
	}

	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./eventhub.db"
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://127.0.0.1:3000"
	}

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:" + serverPort
	}

	wsURL := os.Getenv("WS_URL")
	if wsURL == "" {
		wsURL = "ws://localhost:" + serverPort + "/ws"
	}

	userType := os.Getenv("USER_TYPE")
	if userType == "" {
		userType = "CUSTOMER"
	}

	cfg := Config{
		DBDriver:        dbDriver,
		DBHost:          dbHost,
		DBPort:          dbPort,
		DBUser:          dbUser,
		DBPassword:      dbPassword,
		DBName:          dbName,
		DBPath:          dbPath,
		ServerPort:      serverPort,
		Env:             env,
		AllowedOrigins:  strings.Split(allowedOrigins, ","),
		RedisURL:        os.Getenv("REDIS_URL"),
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:  getInt64("TELEGRAM_CHAT_ID", 0),
		APIURL:          strings.TrimRight(apiURL, "/"),
		WSURL:           wsURL,
		UserID:          os.Getenv("USER_ID"),
		UserType:        strings.ToUpper(userType),
		ReconnectDelay:  getDuration("WS_RECONNECT_DELAY", 10*time.Second),
		HeartbeatPeriod: getDuration("WS_HEARTBEAT", 10*time.Second),
		HistoryPageSize: int(getInt64("HISTORY_PAGE_SIZE", 50)),
	}

	for i := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(cfg.AllowedOrigins[i])
	}

	return cfg
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️  invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func getInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("⚠️  invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}
