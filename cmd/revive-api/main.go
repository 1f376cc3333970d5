package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/marcusmcb/revive-hq-demo/internal/cache"
	"github.com/marcusmcb/revive-hq-demo/internal/config"
	"github.com/marcusmcb/revive-hq-demo/internal/events"
	"github.com/marcusmcb/revive-hq-demo/internal/httpapi"
	"github.com/marcusmcb/revive-hq-demo/internal/provider"
	"github.com/marcusmcb/revive-hq-demo/internal/store"
)

func main() {
	cfg := config.Load()

	st, err := store.New(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("store init: %v", err)
	}
	defer st.Close()

	recency := cache.New(cfg.RedisAddr, cfg.CacheTTL)
	defer recency.Close()

	publisher := events.NewPublisher(cfg.KafkaBroker)
	defer publisher.Close()

	listings := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.PhotoCDNBase, cfg.ProviderTimeout)

	r := mux.NewRouter()
	svc := httpapi.NewService(listings, st, recency, publisher, cfg.RecentLimit)
	svc.RegisterRoutes(r)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Println("Shutting down...")
		_ = server.Shutdown(context.Background())
	}()

	log.Printf("revive-hq API listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
