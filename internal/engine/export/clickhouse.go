package export

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"FlowSentry/internal/config"
	"FlowSentry/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS flow_records (
    StartTime       DateTime64(6),
    FlowID          String,
    SrcIP           String,
    SrcPort         UInt16,
    DstIP           String,
    DstPort         UInt16,
    Protocol        UInt8,
    EndReason       String,
    DurationMicros  Int64,
    FwdPackets      UInt64,
    BwdPackets      UInt64,
    FwdBytes        UInt64,
    BwdBytes        UInt64,
    FlowBytesPerSec Float64,
    FlowPktsPerSec  Float64,
    FlowIATMean     Float64,
    FinCount        UInt64,
    SynCount        UInt64,
    RstCount        UInt64,
    InitFwdWin      UInt64,
    InitBwdWin      UInt64,
    ActiveMean      Float64,
    IdleMean        Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(StartTime)
ORDER BY (StartTime, FlowID);
`

const defaultBatchSize = 500

// ClickHouseWriter batches terminated flow records into the flow_records
// table. It implements model.Writer.
type ClickHouseWriter struct {
	conn      driver.Conn
	batchSize int
	interval  time.Duration

	mu      sync.Mutex
	pending []*model.FlowRecord

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewClickHouseWriter connects, ensures the table exists and starts the
// periodic flusher.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	w := &ClickHouseWriter{
		conn:      conn,
		batchSize: batchSize,
		interval:  config.Duration(cfg.FlushInterval, 5*time.Second),
		done:      make(chan struct{}),
	}

	w.wg.Add(1)
	go w.flusher()
	return w, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Write buffers one record; a full batch flushes inline.
func (w *ClickHouseWriter) Write(record *model.FlowRecord) error {
	w.mu.Lock()
	w.pending = append(w.pending, record)
	flush := len(w.pending) >= w.batchSize
	w.mu.Unlock()

	if flush {
		return w.Flush()
	}
	return nil
}

// Flush sends all pending records as one batch.
func (w *ClickHouseWriter) Flush() error {
	w.mu.Lock()
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO flow_records")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, r := range pending {
		err = batch.Append(
			r.StartTime,
			r.FlowID,
			r.Tuple.SrcIP.String(),
			r.Tuple.SrcPort,
			r.Tuple.DstIP.String(),
			r.Tuple.DstPort,
			r.Tuple.Protocol,
			r.EndReason.String(),
			r.FlowDuration,
			r.TotFwdPkts,
			r.TotBwdPkts,
			r.TotLenFwd,
			r.TotLenBwd,
			r.FlowBytsPerSec,
			r.FlowPktsPerSec,
			r.FlowIATMean,
			r.FINFlagCnt,
			r.SYNFlagCnt,
			r.RSTFlagCnt,
			r.InitFwdWinByts,
			r.InitBwdWinByts,
			r.ActiveMean,
			r.IdleMean,
		)
		if err != nil {
			return fmt.Errorf("failed to append record to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	log.Printf("Wrote %d flow records to ClickHouse", len(pending))
	return nil
}

func (w *ClickHouseWriter) flusher() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.Flush(); err != nil {
				log.Printf("ClickHouse flush error: %v", err)
			}
		case <-w.done:
			return
		}
	}
}

// Close flushes the final batch and closes the connection.
func (w *ClickHouseWriter) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		err = w.Flush()
		if cerr := w.conn.Close(); err == nil {
			err = cerr
		}
	})
	return err
}
