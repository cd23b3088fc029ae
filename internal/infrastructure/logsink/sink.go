// Package logsink ships log entries to an optional remote collector. The
// sink hangs off zap as a hook: logging never blocks on the network, entries
// queue into a bounded buffer and a single worker posts them in batches.
package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aibtcdev/x402-api/internal/config"
)

const (
	queueSize     = 256
	maxBatch      = 32
	flushInterval = 2 * time.Second
	postTimeout   = 10 * time.Second

	// dropWarnWindow rate-limits the overflow warning, which goes through
	// the stdlib logger: warning through zap would feed the hook again.
	dropWarnWindow = time.Minute
)

type entry struct {
	Level   string    `json:"level"`
	Time    time.Time `json:"ts"`
	Logger  string    `json:"logger,omitempty"`
	Message string    `json:"msg"`
}

// Sink buffers and ships log entries. Zero-value is unusable; New returns
// nil when no collector is configured and callers treat a nil sink as off.
type Sink struct {
	url    string
	client *http.Client

	queue        chan entry
	stop         chan struct{}
	done         chan struct{}
	lastDropWarn atomic.Int64
}

// New builds a sink for the configured collector, nil when unset.
func New(cfg config.LogSinkConfig) *Sink {
	if cfg.URL == "" {
		return nil
	}
	return &Sink{
		url:    cfg.URL,
		client: &http.Client{Timeout: postTimeout},
		queue:  make(chan entry, queueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// ZapOption attaches the sink to a logger. Pass to logger.Init.
func (s *Sink) ZapOption() zap.Option {
	return zap.Hooks(func(e zapcore.Entry) error {
		s.offer(entry{
			Level:   e.Level.String(),
			Time:    e.Time,
			Logger:  e.LoggerName,
			Message: e.Message,
		})
		return nil
	})
}

// offer enqueues without blocking; a full queue sheds its oldest entry.
func (s *Sink) offer(e entry) {
	for {
		select {
		case s.queue <- e:
			return
		default:
		}
		select {
		case <-s.queue:
			s.warnDrop()
		default:
		}
	}
}

func (s *Sink) warnDrop() {
	now := time.Now().UnixNano()
	last := s.lastDropWarn.Load()
	if now-last < int64(dropWarnWindow) {
		return
	}
	if s.lastDropWarn.CompareAndSwap(last, now) {
		log.Println("logsink: queue full, dropping oldest entries")
	}
}

// Start runs the shipping loop until the context is cancelled or Stop is
// called. Pending entries are flushed on the way out.
func (s *Sink) Start(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]entry, 0, maxBatch)
	for {
		select {
		case e := <-s.queue:
			batch = append(batch, e)
			if len(batch) >= maxBatch {
				s.post(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.post(batch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			s.flushRemaining(batch)
			return
		case <-s.stop:
			s.flushRemaining(batch)
			return
		}
	}
}

// Stop halts the worker and waits for the final flush.
func (s *Sink) Stop() {
	if s == nil {
		return
	}
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}

func (s *Sink) flushRemaining(batch []entry) {
	for len(s.queue) > 0 && len(batch) < cap(s.queue) {
		batch = append(batch, <-s.queue)
	}
	for len(batch) > 0 {
		n := len(batch)
		if n > maxBatch {
			n = maxBatch
		}
		s.post(batch[:n])
		batch = batch[n:]
	}
}

// post ships one batch. Failures are reported through the stdlib logger and
// the batch is dropped; the collector is best effort.
func (s *Sink) post(batch []entry) {
	body, err := json.Marshal(batch)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		log.Printf("logsink: bad request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("logsink: post failed: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("logsink: collector answered %d", resp.StatusCode)
	}
}
