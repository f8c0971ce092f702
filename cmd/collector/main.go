package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"traffic-probe-service/internal/adapters/cache"
	"traffic-probe-service/internal/adapters/flow"
	"traffic-probe-service/internal/adapters/repositories"
	"traffic-probe-service/internal/domain"
	"traffic-probe-service/internal/ratelimit"
	"traffic-probe-service/internal/services"
)

// main runs the acquisition loop: one collect cycle per interval, each cycle
// summarized into the run history. With --once it performs a single cycle and
// exits, for cron-style deployments and smoke tests.
func main() {
	once := flag.Bool("once", false, "run a single acquisition cycle and exit")
	flag.Parse()

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
	if err := cache.InitSqliteSchema(sqliteDB); err != nil {
		log.Fatal(err)
	}
	runRepo := repositories.NewSqliteRunRepository(sqliteDB)
	flowCache := cache.NewSqliteCache(sqliteDB)

	limiter := ratelimit.New(time.Duration(getEnvInt("RATE_LIMIT_SECONDS", 60)) * time.Second)

	provider := flow.NewTomTomProvider(flow.Config{
		APIKey:             apiKey,
		AllowSample:        allowSample,
		ConfidenceMin:      getEnvFloat("TT_CONFIDENCE_MIN", 0.5),
		DensityVehPerKm:    getEnvFloat("TT_DEFAULT_DENSITY_VEH_PER_KM", 25),
		FlowCapVPH:         getEnvInt("TT_FLOW_VPH_CAP", 6000),
		PolylineHalfWindow: getEnvInt("TT_POLYLINE_HALF_WINDOW", 8),
		QuotaPerHour:       getEnvInt("TOMTOM_QUOTA_PER_HOUR", 2500),
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(getEnvInt("COLLECT_INTERVAL_SECONDS", 300)) * time.Second
	log.Printf("Collector starting mode=%s interval=%s once=%t credential_loaded=%t",
		mode, interval, *once, provider.HasCredential())

	if err := runCycle(ctx, collector, runRepo, mode); err != nil {
		if *once {
			log.Fatalf("cycle failed: %v", err)
		}
		log.Printf("cycle failed: %v", err)
	}
	if *once {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Collector stopping")
			return
		case <-ticker.C:
			if err := runCycle(ctx, collector, runRepo, mode); err != nil {
				log.Printf("cycle failed: %v", err)
			}
		}
	}
}

func runCycle(ctx context.Context, collector *services.Collector, runRepo *repositories.SqliteRunRepository, mode domain.Mode) error {
	batch, err := collector.CollectWithFallback(ctx, mode)
	if err != nil {
		return err
	}

	rec := domain.SummarizeRun(uuid.NewString(), time.Now().UTC(), mode, batch)
	if err := runRepo.RecordRun(ctx, rec); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	log.Printf("cycle done run_id=%s segments=%d vehicles=%d length_km=%.2f mode=%s degraded=%t",
		rec.RunID, rec.SegmentCount, rec.TotalVehicleCount, rec.TotalLengthKm, rec.VehicleCountMode, rec.Degraded)
	return nil
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
