package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	"github.com/aibtcdev/x402-api/pkg/logger"
)

const (
	// scanQueueSize bounds the side channel; writes never wait on it.
	scanQueueSize = 64

	// scanTimeout bounds one classifier call.
	scanTimeout = 30 * time.Second

	// scanDropWarnWindow rate-limits the overflow warning.
	scanDropWarnWindow = time.Minute

	// scanMaxContentChars truncates what is sent to the classifier.
	scanMaxContentChars = 4000

	scanModel       = "openai/gpt-4o-mini"
	scanTemperature = 0.0
)

const scanSystemPrompt = `You are a content safety classifier. Classify the user content for malware, phishing, credential theft, illegal material or abuse infrastructure. Respond with only a JSON object: {"safe": <bool>, "confidence": <0..1>, "reason": "<short reason>"}.`

// scanUnavailableVerdict is stored when classification cannot run, so every
// scheduled scan leaves a row behind.
var scanUnavailableVerdict = entities.ScanVerdict{Safe: true, Confidence: 0, Reason: "scan_unavailable"}

// ChatClassifier is the slice of the inference adapter the scanner needs.
type ChatClassifier interface {
	ChatCompletion(ctx context.Context, req *entities.ChatRequest) (*entities.ChatCompletion, error)
}

type scanTask struct {
	payer       string
	contentID   string
	contentType string
	content     string
}

// SafetyScanner classifies stored content off the request path. Writes
// enqueue; a single worker drains the queue, calls the classifier and upserts
// the verdict into the payer's shard. The queue drops its oldest entry on
// overflow rather than ever blocking a write.
type SafetyScanner struct {
	classifier ChatClassifier
	shards     ShardSource

	queue        chan scanTask
	stop         chan struct{}
	done         chan struct{}
	lastDropWarn atomic.Int64 // unix nanos
}

// NewSafetyScanner builds the scanner. A nil classifier still stores
// unavailable verdicts so the scan tables reflect what was written.
func NewSafetyScanner(classifier ChatClassifier, shards ShardSource) *SafetyScanner {
	return &SafetyScanner{
		classifier: classifier,
		shards:     shards,
		queue:      make(chan scanTask, scanQueueSize),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Schedule queues content for scanning. Never blocks: on a full queue the
// oldest pending scan is dropped and a rate-limited warning logged.
func (s *SafetyScanner) Schedule(payer, contentID, contentType, content string) {
	task := scanTask{payer: payer, contentID: contentID, contentType: contentType, content: content}
	for {
		select {
		case s.queue <- task:
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

func (s *SafetyScanner) warnDrop() {
	now := timeNow().UnixNano()
	last := s.lastDropWarn.Load()
	if now-last < int64(scanDropWarnWindow) {
		return
	}
	if s.lastDropWarn.CompareAndSwap(last, now) {
		logger.Warn(context.Background(), "scan queue full, dropping oldest")
	}
}

// Start runs the worker until the context is cancelled or Stop is called.
func (s *SafetyScanner) Start(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case task := <-s.queue:
			s.scan(ctx, task)
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		}
	}
}

// Stop halts the worker and waits for it to exit.
func (s *SafetyScanner) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}

// scan classifies one task and stores the verdict. Every failure path stores
// the unavailable verdict instead of dropping the task silently.
func (s *SafetyScanner) scan(ctx context.Context, task scanTask) {
	scanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scanTimeout)
	defer cancel()

	verdict := s.classify(scanCtx, task)

	shard, err := s.shards.Shard(scanCtx, task.payer)
	if err != nil {
		logger.Warn(scanCtx, "scan verdict dropped", zap.String("payer", task.payer), zap.Error(err))
		return
	}
	if err := shard.ScanStore(scanCtx, task.contentID, task.contentType, verdict); err != nil {
		logger.Warn(scanCtx, "scan verdict store failed",
			zap.String("payer", task.payer), zap.String("contentId", task.contentID), zap.Error(err))
	}
}

// classify asks the model for a strict JSON verdict. Anything that is not a
// clean verdict becomes the unavailable default.
func (s *SafetyScanner) classify(ctx context.Context, task scanTask) entities.ScanVerdict {
	if s.classifier == nil {
		return scanUnavailableVerdict
	}

	content := task.content
	if len(content) > scanMaxContentChars {
		content = content[:scanMaxContentChars]
	}
	temperature := scanTemperature
	completion, err := s.classifier.ChatCompletion(ctx, &entities.ChatRequest{
		Model: scanModel,
		Messages: []entities.ChatMessage{
			{Role: "system", Content: scanSystemPrompt},
			{Role: "user", Content: content},
		},
		Temperature: &temperature,
	})
	if err != nil {
		logger.Warn(ctx, "scan classification failed", zap.String("contentId", task.contentID), zap.Error(err))
		return scanUnavailableVerdict
	}

	verdict, err := parseScanVerdict(completion.Raw)
	if err != nil {
		logger.Warn(ctx, "scan verdict unreadable", zap.String("contentId", task.contentID), zap.Error(err))
		return scanUnavailableVerdict
	}
	return verdict
}

// parseScanVerdict extracts the assistant's message and decodes the verdict.
// Confidence is clamped to [0, 1].
func parseScanVerdict(raw json.RawMessage) (entities.ScanVerdict, error) {
	var envelope struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return entities.ScanVerdict{}, err
	}
	if len(envelope.Choices) == 0 {
		return entities.ScanVerdict{}, errors.New("completion has no choices")
	}

	content := strings.TrimSpace(envelope.Choices[0].Message.Content)
	var verdict entities.ScanVerdict
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return entities.ScanVerdict{}, err
	}
	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	} else if verdict.Confidence > 1 {
		verdict.Confidence = 1
	}
	return verdict, nil
}
