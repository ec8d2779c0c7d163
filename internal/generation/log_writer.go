package generation

import (
	"database/sql"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// LogEntry 一次生成请求的记录
type LogEntry struct {
	ID           string
	RequestID    string
	CreatedAt    time.Time
	ClientID     string
	ModelID      *string
	Provider     *string
	RowCount     int
	RowsReturned int
	StatusCode   int
	ErrorKind    *string
	ErrorMessage *string
	Attempts     int
	LatencyMs    int64
	InputTokens  *int64
	OutputTokens *int64
	CostMicros   *int64
	CostUsd      *string
}

// Recorder 记录生成结果，实现不得阻塞调用方
type Recorder interface {
	Record(entry LogEntry) bool
}

// LogWriter 异步批量日志写入器
type LogWriter struct {
	db            *sql.DB
	entryChan     chan LogEntry
	batchSize     int
	flushInterval time.Duration
	wg            sync.WaitGroup
	stopChan      chan struct{}
	stopped       bool
	mu            sync.Mutex
}

// NewLogWriter 创建日志写入器
func NewLogWriter(db *sql.DB, bufferSize, batchSize int, flushInterval time.Duration) *LogWriter {
	w := &LogWriter{
		db:            db,
		entryChan:     make(chan LogEntry, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopChan:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Record 异步写入日志（非阻塞），队列满时丢弃
func (w *LogWriter) Record(entry LogEntry) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return false
	}

	select {
	case w.entryChan <- entry:
		return true
	default:
		log.Warn("log writer: queue full, dropping entry")
		return false
	}
}

// Stop 停止写入器并刷新剩余日志
func (w *LogWriter) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
}

// run 后台运行的写入循环
func (w *LogWriter) run() {
	defer w.wg.Done()

	batch := make([]LogEntry, 0, w.batchSize)
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-w.entryChan:
			batch = append(batch, entry)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-w.stopChan:
			// 处理剩余的日志；stopped 已置位，不会再有写入
			close(w.entryChan)
			for entry := range w.entryChan {
				batch = append(batch, entry)
			}
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

// flush 批量写入数据库
func (w *LogWriter) flush(entries []LogEntry) {
	if len(entries) == 0 {
		return
	}

	tx, err := w.db.Begin()
	if err != nil {
		log.Errorf("log writer: failed to begin transaction: %v", err)
		return
	}

	stmt, err := tx.Prepare(`
		INSERT INTO generation_logs (
			id, request_id, created_at, client_id, model_id, provider, row_count, rows_returned,
			status_code, error_kind, error_message, attempts, latency_ms,
			input_tokens, output_tokens, cost_micros, cost_usd
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		log.Errorf("log writer: failed to prepare statement: %v", err)
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.Exec(
			e.ID, e.RequestID, e.CreatedAt.UTC().Format(time.RFC3339), e.ClientID, e.ModelID, e.Provider, e.RowCount, e.RowsReturned,
			e.StatusCode, e.ErrorKind, e.ErrorMessage, e.Attempts, e.LatencyMs,
			e.InputTokens, e.OutputTokens, e.CostMicros, e.CostUsd,
		)
		if err != nil {
			log.Errorf("log writer: failed to insert entry: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Errorf("log writer: failed to commit transaction: %v", err)
		tx.Rollback()
		return
	}

	log.Debugf("log writer: flushed %d entries", len(entries))
}
