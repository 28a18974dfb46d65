package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/crashla/incident.report/internal/api"
	"github.com/crashla/incident.report/internal/config"
	"github.com/crashla/incident.report/internal/db"
	"github.com/crashla/incident.report/internal/exposure"
	"github.com/crashla/incident.report/internal/incident"
	"github.com/crashla/incident.report/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dbFile        = flag.String("db", "incident_report.db", "Path to the sqlite database")
	migrationsDir = flag.String("migrations", "migrations", "Path to the schema migrations directory")
	exposurePath  = flag.String("exposure", "exposure.csv", "Path to the exposure ledger CSV")
	incidentsPath = flag.String("incidents", "incidents.json", "Path to the incident reports JSON")
	configPath    = flag.String("config", "", "Optional path to an analysis config JSON")
)

func loadDatasets() (*exposure.Ledger, []incident.Record, error) {
	ef, err := os.Open(*exposurePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open exposure ledger: %w", err)
	}
	defer ef.Close()
	ledger, err := exposure.ParseLedger(ef)
	if err != nil {
		return nil, nil, fmt.Errorf("exposure ledger %s: %w", *exposurePath, err)
	}

	inf, err := os.Open(*incidentsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open incident reports: %w", err)
	}
	defer inf.Close()
	records, err := incident.ParseRecords(inf, config.Raters)
	if err != nil {
		return nil, nil, fmt.Errorf("incident reports %s: %w", *incidentsPath, err)
	}

	return ledger, records, nil
}

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("incident.report %s", version.String())

	// Datasets are validated whole before anything else happens. A single
	// malformed row aborts startup rather than skewing every estimate
	// built on top of it.
	ledger, records, err := loadDatasets()
	if err != nil {
		log.Fatalf("Failed to load datasets: %v", err)
	}

	cfg := &config.Analysis{}
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	if err := database.ReplaceExposureRows(ledger.Rows()); err != nil {
		log.Fatalf("Failed to persist exposure ledger: %v", err)
	}
	if err := database.ReplaceIncidents(records); err != nil {
		log.Fatalf("Failed to persist incident reports: %v", err)
	}

	server, err := api.NewServer(database, cfg, ledger, records)
	if err != nil {
		log.Fatalf("Failed to build estimates: %v", err)
	}

	runID, err := server.Snapshot()
	if err != nil {
		log.Fatalf("Failed to record initial run: %v", err)
	}
	log.Printf("Loaded %d exposure rows and %d incidents (run %s)", len(ledger.Rows()), len(records), runID)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		if err := database.AttachDebugHandlers(mux, "incident.report"); err != nil {
			log.Printf("failed to attach debug handlers: %v", err)
		}

		apiMux := server.ServeMux()
		mux.Handle("/api/", apiMux)
		mux.Handle("/charts/", apiMux)
		mux.Handle("/plots/", apiMux)

		httpServer := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("Listening on %s", *listen)

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
