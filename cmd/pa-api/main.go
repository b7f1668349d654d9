package main

import (
	"Go2NetPeriod/internal/api"
	"Go2NetPeriod/internal/config"
	"Go2NetPeriod/internal/factory"
	"Go2NetPeriod/internal/metrics"
	"Go2NetPeriod/internal/publish"
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	publishers, err := factory.Create(cfg)
	if err != nil {
		log.Fatalf("Failed to create publishers: %v", err)
	}

	// Follow the summaries of every enabled NATS publisher.
	summaries := api.NewSummaryLog(500)
	var subscribers []*publish.Subscriber
	for _, def := range cfg.Publishers {
		if !def.Enabled || def.Type != "nats" {
			continue
		}
		sub, err := publish.NewSubscriber(def.NATS)
		if err != nil {
			log.Fatalf("Failed to create subscriber: %v", err)
		}
		if err := sub.Start(summaries.Add); err != nil {
			log.Fatalf("Failed to subscribe: %v", err)
		}
		subscribers = append(subscribers, sub)
	}

	handler := api.NewHandler(cfg, m, reg, publishers, summaries)

	// Run gRPC health server
	grpcServer, health := api.NewGRPCServer()
	lis, err := net.Listen("tcp", cfg.API.GRPCAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.API.GRPCAddr, err)
	}
	go func() {
		log.Printf("gRPC health server starting on %s", cfg.API.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("Failed to serve gRPC: %v", err)
		}
	}()

	// Run HTTP server
	httpServer := &http.Server{
		Addr:    cfg.API.HTTPAddr,
		Handler: handler.Router(),
	}
	go func() {
		log.Printf("API server starting on %s", cfg.API.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", cfg.API.HTTPAddr, err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Servers shutting down...")

	health.Shutdown()
	grpcServer.GracefulStop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	for _, sub := range subscribers {
		sub.Close()
	}
	for _, p := range publishers {
		if err := p.Close(); err != nil {
			log.Warnf("Failed to close publisher: %v", err)
		}
	}
	log.Println("All servers exited.")
}
