package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/classifier"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/repository"
)

// ErrExternalService marks mailbox failures. The pipeline retries on its
// next scheduled run instead of blocking the current batch.
var ErrExternalService = errors.New("external mailbox service failed")

// State names a step of the per-message state machine.
type State string

const (
	StateFetched          State = "fetched"
	StateClassified       State = "classified"
	StateAutoResponded    State = "auto_responded"
	StateSkipped          State = "skipped"
	StateStored           State = "stored"
	StateDuplicateSkipped State = "duplicate_skipped"
	StateFailed           State = "failed"
)

// RawMessage is one inbound message as delivered by the mailbox.
type RawMessage struct {
	GmailID string
	Subject string
	Body    string
	From    string
	To      string
}

// Mailbox is the Gmail collaborator contract consumed by the pipeline.
type Mailbox interface {
	FetchNewMessages(ctx context.Context, maxCount int) ([]RawMessage, error)
	SendReply(ctx context.Context, gmailID, body string) error
	// MarkProcessed keeps a handled message out of the next fetch.
	MarkProcessed(ctx context.Context, gmailID string) error
}

// Generator is the response-text collaborator contract.
type Generator interface {
	GenerateResponse(ctx context.Context, category models.Category, subject, body string) (string, error)
}

// Result records the terminal state of processing one raw message.
type Result struct {
	GmailID       string          `json:"gmail_id"`
	State         State           `json:"state"`
	EmailID       int64           `json:"email_id,omitempty"`
	Category      models.Category `json:"category,omitempty"`
	Confidence    float64         `json:"confidence,omitempty"`
	AutoResponded bool            `json:"auto_response_sent"`
	Err           error           `json:"-"`
}

type Config struct {
	ConfidenceThreshold float64
	AutoResponseEnabled bool
	MaxFetch            int
	Workers             int
	PollInterval        time.Duration
}

// Pipeline orchestrates fetch, classify, auto-respond and persist. It is
// the only creator of email rows.
type Pipeline struct {
	mailbox    Mailbox
	generator  Generator // may be nil when response generation is disabled
	classifier *classifier.Service
	emails     repository.EmailRepository
	cfg        Config
	logger     *zap.Logger
}

func NewPipeline(
	mailbox Mailbox,
	generator Generator,
	classifierSvc *classifier.Service,
	emails repository.EmailRepository,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.MaxFetch <= 0 {
		cfg.MaxFetch = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	return &Pipeline{
		mailbox:    mailbox,
		generator:  generator,
		classifier: classifierSvc,
		emails:     emails,
		cfg:        cfg,
		logger:     logger,
	}
}

// ProcessMessage drives one message through
// Fetched -> Classified -> {AutoResponded|Skipped} -> Stored.
// Terminal states are Stored, DuplicateSkipped, and Failed.
func (p *Pipeline) ProcessMessage(ctx context.Context, msg RawMessage) *Result {
	result := &Result{GmailID: msg.GmailID, State: StateFetched}

	// Fast-path dedup before spending classification and generation work.
	// The storage insert below is the authoritative atomic check.
	if msg.GmailID != "" {
		exists, err := p.emails.ExistsByGmailID(ctx, msg.GmailID)
		if err != nil {
			result.State = StateFailed
			result.Err = err
			return result
		}
		if exists {
			result.State = StateDuplicateSkipped
			return result
		}
	}

	prediction, err := p.classifier.Predict(msg.Subject, msg.Body)
	if err != nil {
		result.State = StateFailed
		result.Err = err
		return result
	}
	result.State = StateClassified
	result.Category = prediction.Category
	result.Confidence = prediction.Confidence

	// Auto-response failures are independent of persistence: the
	// classification is stored either way, with auto_response left null.
	var autoResponse *string
	if p.cfg.AutoResponseEnabled && p.generator != nil && prediction.Confidence >= p.cfg.ConfidenceThreshold {
		if text := p.respond(ctx, msg, prediction.Category); text != "" {
			autoResponse = &text
			result.State = StateAutoResponded
			result.AutoResponded = true
		} else {
			// Response generation or sending failed; the message is
			// stored without a reply, same as a below-threshold one.
			result.State = StateSkipped
		}
	} else {
		result.State = StateSkipped
	}

	email := &models.Email{
		Subject:               msg.Subject,
		Body:                  msg.Body,
		Category:              prediction.Category,
		Confidence:            prediction.Confidence,
		Probabilities:         prediction.Probabilities,
		AutoResponse:          autoResponse,
		ClassifiedByVersionID: &prediction.VersionID,
	}
	if msg.GmailID != "" {
		gmailID := msg.GmailID
		email.GmailID = &gmailID
	}
	if msg.From != "" {
		from := msg.From
		email.FromEmail = &from
	}
	if msg.To != "" {
		to := msg.To
		email.ToEmail = &to
	}

	inserted, err := p.emails.InsertIfAbsent(ctx, email)
	if err != nil {
		result.State = StateFailed
		result.Err = err
		return result
	}
	if !inserted {
		// A concurrent ingestion of the same gmail_id won the insert.
		result.State = StateDuplicateSkipped
		return result
	}

	result.State = StateStored
	result.EmailID = email.ID
	return result
}

// respond asks the generator for reply text and dispatches it. Returns
// "" when either step fails; the pipeline then stores a null
// auto_response instead of failing the message.
func (p *Pipeline) respond(ctx context.Context, msg RawMessage, category models.Category) string {
	genCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	text, err := p.generator.GenerateResponse(genCtx, category, msg.Subject, msg.Body)
	if err != nil {
		p.logger.Warn("Response generation failed, storing without auto-response",
			zap.Error(err), zap.String("gmail_id", msg.GmailID))
		return ""
	}

	if err := p.mailbox.SendReply(ctx, msg.GmailID, text); err != nil {
		p.logger.Warn("Reply dispatch failed, storing without auto-response",
			zap.Error(err), zap.String("gmail_id", msg.GmailID))
		return ""
	}
	return text
}

// RunOnce fetches one batch and processes it on a bounded worker pool.
func (p *Pipeline) RunOnce(ctx context.Context) ([]*Result, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	messages, err := p.mailbox.FetchNewMessages(fetchCtx, p.cfg.MaxFetch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	results := make([]*Result, len(messages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, msg := range messages {
		i, msg := i, msg
		g.Go(func() error {
			results[i] = p.ProcessMessage(gctx, msg)
			return nil
		})
	}
	_ = g.Wait()

	for _, result := range results {
		switch result.State {
		case StateStored, StateDuplicateSkipped:
			if err := p.mailbox.MarkProcessed(ctx, result.GmailID); err != nil {
				p.logger.Warn("Failed to mark message processed",
					zap.Error(err), zap.String("gmail_id", result.GmailID))
			}
		case StateFailed:
			p.logger.Error("Message processing failed",
				zap.Error(result.Err), zap.String("gmail_id", result.GmailID))
		}
	}
	return results, nil
}

// Run polls the mailbox until the context is canceled.
func (p *Pipeline) Run(ctx context.Context) {
	p.logger.Info("Ingestion pipeline started",
		zap.Duration("poll_interval", p.cfg.PollInterval))

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Ingestion pipeline stopped")
			return
		case <-ticker.C:
			results, err := p.RunOnce(ctx)
			if err != nil {
				// Fetch failures are retried on the next tick.
				p.logger.Error("Failed to fetch new messages", zap.Error(err))
				continue
			}
			if len(results) > 0 {
				p.logger.Info("Batch processed", zap.Int("count", len(results)))
			}
		}
	}
}
