// Command mdbdemo runs an embedded mdb instance behind a small HTTP
// surface: /health, /metrics (Prometheus text format), and /query for
// ad-hoc Fetch calls against a synthetic workload. It exists
// to exercise mdb end to end, the way a host daemon would embed it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"ncollectd-mdb"
	"ncollectd-mdb/internal/match"
	"ncollectd-mdb/internal/series"
	"ncollectd-mdb/internal/storage"
)

var (
	version   = "0.1.0"
	startTime = time.Now()
)

type config struct {
	Port             string
	RingCapacity     int
	WorkloadEnabled  bool
	WorkloadInterval time.Duration
}

func main() {
	configFlag := flag.String("config", "", "path to config file (optional, env vars take precedence)")
	flag.Parse()
	if *configFlag != "" {
		log.Printf("config flag provided: %s (note: environment variables take precedence)", *configFlag)
	}

	cfg := loadConfig()

	log.Printf("starting mdbdemo v%s", version)
	log.Printf("ring capacity: %d", cfg.RingCapacity)
	log.Printf("port: %s", cfg.Port)

	opts := mdb.DefaultOptions()
	opts.RingCapacity = cfg.RingCapacity
	db, err := mdb.New(opts)
	if err != nil {
		log.Fatalf("failed to create mdb instance: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.WorkloadEnabled {
		go runSyntheticWorkload(ctx, db, cfg.WorkloadInterval)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth())
	mux.HandleFunc("/metrics", handleMetrics(db))
	mux.HandleFunc("/query", handleQuery(db))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("shutdown signal received, gracefully stopping...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	log.Println("mdbdemo stopped")
}

func loadConfig() config {
	cfg := config{
		Port:             os.Getenv("PORT"),
		RingCapacity:     parseIntEnv("RING_CAPACITY", storage.DefaultCapacity),
		WorkloadInterval: parseDurationEnv("WORKLOAD_INTERVAL", 2*time.Second),
	}
	cfg.WorkloadEnabled = os.Getenv("WORKLOAD_ENABLED") == "true"

	if cfg.Port == "" {
		cfg.Port = "8200"
		log.Println("PORT not set, using default 8200")
	}
	return cfg
}

func parseIntEnv(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("warning: invalid %s value %q, using default %d", key, val, defaultValue)
		return defaultValue
	}
	return parsed
}

func parseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("warning: invalid %s value %q, using default %v", key, val, defaultValue)
		return defaultValue
	}
	return parsed
}

// runSyntheticWorkload inserts a gauge family on a fixed interval so the
// HTTP surface has something to show immediately after startup.
func runSyntheticWorkload(ctx context.Context, db *mdb.DB, interval time.Duration) {
	fam := series.Family{Name: "mdbdemo_load", Help: "synthetic load gauge", Type: series.Gauge}
	var tick int64
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := atomic.AddInt64(&tick, 1)
			labels := series.LabelSet{{Name: "shard", Value: fmt.Sprintf("%d", n%4)}}
			v := storage.GaugeF64(float64(n))
			sample := mdb.Sample{Labels: labels, Value: &v}
			if err := db.InsertMetricFamily(ctx, fam, []mdb.Sample{sample}); err != nil {
				log.Printf("synthetic workload insert failed: %v", err)
			}
		}
	}
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service": "mdbdemo",
			"version": version,
			"status":  "healthy",
			"uptime":  time.Since(startTime).String(),
		})
	}
}

func handleMetrics(db *mdb.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		db.Metrics().WriteText(w)
	}
}

// handleQuery answers ?name=<metric> as an EQL-name Fetch at the current
// time, returning each matched series' labels and latest value.
func handleQuery(db *mdb.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "name query parameter is required", http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		now := storage.FromTime(time.Now())
		points, err := db.Fetch(ctx, match.EQLName(name), now)
		if err != nil {
			http.Error(w, fmt.Sprintf("query failed: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"name":   name,
			"series": points,
			"count":  len(points),
		})
	}
}
