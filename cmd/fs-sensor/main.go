package main

import (
	"context"
	"flag"
	"io"
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
	"FlowSentry/internal/engine/protocol"
	"FlowSentry/internal/metrics"
	"FlowSentry/internal/model"
	"FlowSentry/internal/notification"
	"FlowSentry/internal/probe"
	"FlowSentry/pkg/capture"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file.")
	iface := flag.String("iface", "", "Interface to capture from (overrides config).")
	pcapFile := flag.String("pcap", "", "Replay a pcap file instead of live capture.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *iface != "" {
		cfg.Capture.Interface = *iface
	}

	// Packet source: live capture unless a replay file was given.
	var source capture.Source
	if *pcapFile != "" {
		source, err = capture.NewOfflineSource(*pcapFile)
		if err != nil {
			log.Fatalf("Failed to open pcap file: %v", err)
		}
		log.Printf("Replaying packets from '%s'...", *pcapFile)
	} else {
		source, err = capture.NewLiveSource(cfg.Capture)
		if err != nil {
			log.Fatalf("Failed to open capture device: %v", err)
		}
		log.Printf("Capturing on interface %s...", cfg.Capture.Interface)
	}
	defer source.Close()

	reg := prometheus.NewRegistry()
	pipe := metrics.NewPipeline(reg)

	m := meter.New(cfg.Meter, pipe)
	if *pcapFile != "" {
		// Replayed timestamps are historical; timeouts run on the packet
		// clock only, the wall-clock scanner stays off.
		m.StartReplay()
	} else {
		m.Start()
	}

	// Record sinks.
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

	var publisher *probe.Publisher
	if cfg.Probe.Enabled {
		publisher, err = probe.NewPublisher(cfg.Probe)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer publisher.Close()
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

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API.ListenAddr, pipe, reg)
		apiServer.Start()
	}

	// Record consumer: the single reader of the meter output channel.
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

	// Stop signal: external interrupt, replay EOF or a capture read failure.
	stop := make(chan struct{})
	var stopOnce sync.Once
	requestStop := func() { stopOnce.Do(func() { close(stop) }) }

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, draining...")
		requestStop()
	}()

	// Ingestion feed: pull packets, dissect, publish, meter. The stop signal
	// is observed between packets; a poll timeout is the observation point
	// when the wire is quiet.
	var feedWg sync.WaitGroup
	feedWg.Add(1)
	go func() {
		defer feedWg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}

			data, ci, err := source.ReadPacket()
			if err == capture.ErrTimeout {
				continue
			}
			if err == io.EOF {
				log.Println("Finished reading all packets.")
				requestStop()
				return
			}
			if err != nil {
				log.Printf("Capture read failure: %v", err)
				requestStop()
				return
			}

			info, err := protocol.Parse(data, ci.Timestamp)
			if err != nil {
				pipe.ParseErrors.Add(1)
				continue
			}
			if publisher != nil {
				if err := publisher.Publish(info); err != nil {
					log.Printf("Failed to publish packet: %v", err)
				}
			}
			m.Input() <- info
		}
	}()

	<-stop
	feedWg.Wait()

	// Drain: every remaining open flow is emitted before the output closes.
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

	s := pipe.Snapshot()
	log.Printf("Shutdown complete: %d packets, %d parse errors, %d flows emitted.",
		s.Packets, s.ParseErrors, s.Emitted)
}
