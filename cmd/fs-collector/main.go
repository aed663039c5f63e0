package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"FlowSentry/internal/alerter"
	"FlowSentry/internal/api"
	"FlowSentry/internal/config"
	"FlowSentry/internal/engine/export"
	"FlowSentry/internal/engine/meter"
	"FlowSentry/internal/metrics"
	"FlowSentry/internal/model"
	"FlowSentry/internal/notification"
	"FlowSentry/internal/probe"

	"github.com/prometheus/client_golang/prometheus"
)

// fs-collector meters packet descriptors published by remote sensors over
// NATS instead of capturing locally.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	reg := prometheus.NewRegistry()
	pipe := metrics.NewPipeline(reg)

	m := meter.New(cfg.Meter, pipe)
	m.Start()

	var writers []model.Writer
	if cfg.Output.CSV.Enabled || !cfg.Output.ClickHouse.Enabled {
		csvWriter, err := export.NewCSVWriter(cfg.Output.CSV.Path, cfg.Output.Columns)
		if err != nil {
			log.Fatalf("Failed to create CSV writer: %v", err)
		}
		writers = append(writers, csvWriter)
	}
	if cfg.Output.ClickHouse.Enabled {
		chWriter, err := export.NewClickHouseWriter(cfg.Output.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to create ClickHouse writer: %v", err)
		}
		writers = append(writers, chWriter)
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API.ListenAddr, pipe, reg)
		apiServer.Start()
	}

	var alert *alerter.Alerter
	if cfg.Alerter.Enabled {
		notifier := notification.NewEmailNotifier(cfg.Alerter.SMTP)
		alert, err = alerter.NewAlerter(cfg.Alerter, notifier)
		if err != nil {
			log.Fatalf("Failed to create alerter: %v", err)
		}
		alert.Start()
	}

	var consumerWg sync.WaitGroup
	consumerWg.Add(1)
	go func() {
		defer consumerWg.Done()
		for rec := range m.Output() {
			for _, w := range writers {
				if err := w.Write(rec); err != nil {
					log.Printf("Sink write error: %v", err)
				}
			}
			if alert != nil {
				alert.Observe(rec)
			}
		}
	}()

	sub, err := probe.NewSubscriber(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}

	// The ingress gates deliveries so no packet reaches the meter after the
	// drain begins.
	ing := probe.NewIngress(m.Input())
	if err := sub.Start(ing.Handle); err != nil {
		log.Fatalf("Subscriber failed to start: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received, draining...")

	sub.Close()
	ing.Stop()

	m.Stop()
	consumerWg.Wait()
	if alert != nil {
		alert.Stop()
	}
	for _, w := range writers {
		if err := w.Close(); err != nil {
			log.Printf("Sink close error: %v", err)
		}
	}

	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Shutdown(ctx); err != nil {
			log.Printf("Diagnostics server shutdown error: %v", err)
		}
		cancel()
	}

	log.Println("Shutdown complete.")
}
