package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"traffic-probe-service/internal/adapters/cache"
	"traffic-probe-service/internal/adapters/flow"
	"traffic-probe-service/internal/adapters/repositories"
	"traffic-probe-service/internal/api"
	"traffic-probe-service/internal/domain"
	"traffic-probe-service/internal/platform/db"
	"traffic-probe-service/internal/ports"
	"traffic-probe-service/internal/ratelimit"
	"traffic-probe-service/internal/services"
)

// main is the application composition root.
// It wires concrete adapters (SQLite/Postgres/Redis cache, TomTom flow)
// behind ports and starts the dashboard HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	apiKey := flow.PlausibleAPIKey(os.Getenv("TOMTOM_API_KEY"))
	allowSample := getEnvBool("TT_ALLOW_SAMPLE", true)
	if apiKey == "" && !allowSample {
		log.Fatal("TOMTOM_API_KEY is required when TT_ALLOW_SAMPLE is disabled")
	}

	mode := domain.ModeFlow
	if apiKey == "" {
		mode = domain.ModeSample
	}
	if raw := getEnv("TRAFFIC_MODE", ""); raw != "" {
		switch raw {
		case string(domain.ModeFlow), string(domain.ModeSample):
			mode = domain.Mode(raw)
		default:
			log.Fatalf("TRAFFIC_MODE must be %q or %q, got %q", domain.ModeFlow, domain.ModeSample, raw)
		}
	}

	dbPath := getEnv("DB_PATH", "data/traffic.db")
	sqliteDB, err := openSqlite(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer sqliteDB.Close()

	if err := repositories.InitSchema(sqliteDB); err != nil {
		log.Fatal(err)
	}
	runRepo := repositories.NewSqliteRunRepository(sqliteDB)

	flowCache, err := buildCache(sqliteDB)
	if err != nil {
		log.Fatal(err)
	}

	limiter := ratelimit.New(time.Duration(getEnvInt("RATE_LIMIT_SECONDS", 60)) * time.Second)
	quotaPerHour := getEnvInt("TOMTOM_QUOTA_PER_HOUR", 2500)

	provider := flow.NewTomTomProvider(flow.Config{
		APIKey:             apiKey,
		AllowSample:        allowSample,
		ConfidenceMin:      getEnvFloat("TT_CONFIDENCE_MIN", 0.5),
		DensityVehPerKm:    getEnvFloat("TT_DEFAULT_DENSITY_VEH_PER_KM", 25),
		FlowCapVPH:         getEnvInt("TT_FLOW_VPH_CAP", 6000),
		PolylineHalfWindow: getEnvInt("TT_POLYLINE_HALF_WINDOW", 8),
		QuotaPerHour:       quotaPerHour,
	}, limiter)

	collector := services.NewCollector(
		domain.DefaultProbes(),
		provider,
		flowCache,
		limiter,
		services.CollectorConfig{
			Service:       flow.ServiceName,
			HasCredential: provider.HasCredential(),
			CacheTTL:      time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second,
		},
	)

	router := api.NewRouter(collector, runRepo, limiter, api.RouterConfig{
		DefaultMode:      mode,
		Service:          flow.ServiceName,
		QuotaPerHour:     quotaPerHour,
		CredentialLoaded: provider.HasCredential(),
	})

	port := getEnv("PORT", "8080")
	log.Printf("Server listening addr=:%s mode=%s credential_loaded=%t", port, mode, provider.HasCredential())
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}

// buildCache selects the flow cache backend. SQLite shares the run-history
// database file; Postgres and Redis are for deployments with shared state.
func buildCache(sqliteDB *sql.DB) (ports.Cache, error) {
	backend := getEnv("CACHE_BACKEND", "sqlite")
	switch backend {
	case "sqlite":
		if err := cache.InitSqliteSchema(sqliteDB); err != nil {
			return nil, err
		}
		return cache.NewSqliteCache(sqliteDB), nil

	case "postgres":
		url := os.Getenv("DATABASE_URL")
		if strings.TrimSpace(url) == "" {
			return nil, fmt.Errorf("CACHE_BACKEND=postgres requires DATABASE_URL")
		}
		pgDB, err := db.Open(url)
		if err != nil {
			return nil, err
		}
		if err := cache.InitPGSchema(pgDB); err != nil {
			return nil, err
		}
		return cache.NewPGCache(pgDB), nil

	case "redis":
		addr := getEnv("REDIS_ADDR", "localhost:6379")
		client := redis.NewClient(&redis.Options{Addr: addr})
		return cache.NewRedisCache(client), nil

	default:
		return nil, fmt.Errorf("unknown CACHE_BACKEND %q (want sqlite, postgres, or redis)", backend)
	}
}

func openSqlite(dbPath string) (*sql.DB, error) {
	sqliteDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("openSqlite: open database %q: %w", dbPath, err)
	}

	if err := sqliteDB.Ping(); err != nil {
		return nil, fmt.Errorf("openSqlite: verify connection to %q: %w", dbPath, err)
	}

	return sqliteDB, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("%s must be an integer, got %q", key, v)
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("%s must be a number, got %q", key, v)
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("%s must be a boolean, got %q", key, v)
	}
	return b
}
