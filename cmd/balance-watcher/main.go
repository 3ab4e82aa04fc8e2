package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/Linhcute123/biendongsodu/internal/config"
	"github.com/Linhcute123/biendongsodu/internal/db"
	"github.com/Linhcute123/biendongsodu/internal/notify"
	"github.com/Linhcute123/biendongsodu/internal/watcher"
	"github.com/Linhcute123/biendongsodu/internal/web"
)

func main() {
	var (
		configPath = flag.String("config", "", "Optional config file (env vars take precedence)")
		oneshot    = flag.Bool("oneshot", false, "Run a single poll cycle and exit (for testing)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	database, err := db.NewDatabase(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	dispatcher := notify.NewDispatcher()
	defer dispatcher.Stop()

	w := watcher.New(database, database, database, dispatcher)

	if *oneshot {
		log.Info("Running a single poll cycle...")
		w.RunCycle(context.Background())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx)

	server := web.NewServer(database, w, cfg.AdminPassword)
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: server.Handler(),
	}

	go func() {
		log.Infof("Dashboard API listening on http://%s", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Received shutdown signal, exiting...")
	cancel()
	_ = httpServer.Shutdown(context.Background())
}
