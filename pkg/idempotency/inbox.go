// Package idempotency provides the Inbox pattern for exactly-once message
// processing. Report sends are keyed by a deterministic hash so a redelivered
// send request never reaches the patient twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Status represents the processing status of an inbox entry.
type Status string

const (
	StatusStarted     Status = "STARTED"
	StatusFinished    Status = "FINISHED"
	StatusRecoverable Status = "RECOVERABLE"
	StatusFailed      Status = "FAILED"
)

// InboxEntry represents an idempotency inbox record.
type InboxEntry struct {
	IdempotencyKey string
	HandlerName    string
	Status         Status
	Payload        json.RawMessage
	Result         json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      *time.Time
}

// InboxConfig holds configuration for the inbox.
type InboxConfig struct {
	// DefaultTTL is the time-to-live for finished entries
	DefaultTTL time.Duration
	// CleanupInterval is how often to clean expired entries
	CleanupInterval time.Duration
	// RecoveryTimeout is when to consider a STARTED entry as stale
	RecoveryTimeout time.Duration
}

// DefaultInboxConfig returns sensible defaults.
func DefaultInboxConfig() InboxConfig {
	return InboxConfig{
		DefaultTTL:      7 * 24 * time.Hour,
		CleanupInterval: 1 * time.Hour,
		RecoveryTimeout: 5 * time.Minute,
	}
}

// Key derives a deterministic idempotency key from the given parts.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// ErrDuplicateMessage indicates the message was already processed.
var ErrDuplicateMessage = errors.New("duplicate message: already processed")

// ErrMessageInProgress indicates the message is being processed elsewhere.
var ErrMessageInProgress = errors.New("message in progress by another handler")

// Inbox manages idempotent message processing.
type Inbox struct {
	pool   *pgxpool.Pool
	config InboxConfig
	logger *zap.Logger
	tracer trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewInbox creates a new inbox manager.
func NewInbox(pool *pgxpool.Pool, cfg InboxConfig, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Inbox{
		pool:   pool,
		config: cfg,
		logger: logger,
		tracer: otel.Tracer("inbox"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ProcessResult represents the result of idempotent processing.
type ProcessResult struct {
	IsNew        bool
	WasRecovered bool
	Result       json.RawMessage
}

// ProcessFunc is the function signature for idempotent handlers.
type ProcessFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Process executes a handler with idempotency guarantees. A key that was
// already processed returns the stored result without re-running the
// handler; a stale STARTED entry past the recovery timeout is retried.
func (i *Inbox) Process(ctx context.Context, key, handlerName string, payload json.RawMessage, fn ProcessFunc) (*ProcessResult, error) {
	ctx, span := i.tracer.Start(ctx, "inbox_process",
		trace.WithAttributes(
			attribute.String("idempotency_key", key),
			attribute.String("handler", handlerName),
		))
	defer span.End()

	entry, err := i.getEntry(ctx, key)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check inbox: %w", err)
	}

	recovered := false
	if entry != nil {
		switch entry.Status {
		case StatusFinished:
			span.SetAttributes(attribute.Bool("duplicate", true))
			return &ProcessResult{IsNew: false, Result: entry.Result}, nil

		case StatusFailed:
			span.SetAttributes(attribute.Bool("previously_failed", true))
			return nil, fmt.Errorf("message previously failed permanently: %s", key)

		case StatusStarted:
			if time.Since(entry.UpdatedAt) < i.config.RecoveryTimeout {
				return nil, ErrMessageInProgress
			}
			// Stale claim from a crashed handler; take it over.
			recovered = true

		case StatusRecoverable:
			recovered = true
		}
	}

	if entry == nil {
		if err := i.insertStarted(ctx, key, handlerName, payload); err != nil {
			return nil, err
		}
	} else if err := i.markStatus(ctx, key, StatusStarted, nil); err != nil {
		return nil, err
	}

	result, err := fn(ctx, payload)
	if err != nil {
		if markErr := i.markStatus(ctx, key, StatusRecoverable, nil); markErr != nil {
			i.logger.Error("failed to mark entry recoverable",
				zap.String("key", key), zap.Error(markErr))
		}
		span.RecordError(err)
		return nil, fmt.Errorf("handler failed: %w", err)
	}

	if err := i.markStatus(ctx, key, StatusFinished, result); err != nil {
		return nil, fmt.Errorf("failed to mark finished: %w", err)
	}

	return &ProcessResult{IsNew: true, WasRecovered: recovered, Result: result}, nil
}

// MarkFailed marks a key permanently failed so it is never retried.
func (i *Inbox) MarkFailed(ctx context.Context, key string) error {
	return i.markStatus(ctx, key, StatusFailed, nil)
}

func (i *Inbox) getEntry(ctx context.Context, key string) (*InboxEntry, error) {
	entry := &InboxEntry{}
	err := i.pool.QueryRow(ctx, `
		SELECT idempotency_key, handler_name, status, payload, result,
		       created_at, updated_at, expires_at
		FROM inbox
		WHERE idempotency_key = $1
	`, key).Scan(
		&entry.IdempotencyKey, &entry.HandlerName, &entry.Status,
		&entry.Payload, &entry.Result, &entry.CreatedAt,
		&entry.UpdatedAt, &entry.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (i *Inbox) insertStarted(ctx context.Context, key, handlerName string, payload json.RawMessage) error {
	expiresAt := time.Now().Add(i.config.DefaultTTL)
	_, err := i.pool.Exec(ctx, `
		INSERT INTO inbox (idempotency_key, handler_name, status, payload, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO UPDATE
		SET status = $3, updated_at = NOW()
	`, key, handlerName, StatusStarted, payload, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to claim inbox entry: %w", err)
	}
	return nil
}

func (i *Inbox) markStatus(ctx context.Context, key string, status Status, result json.RawMessage) error {
	_, err := i.pool.Exec(ctx, `
		UPDATE inbox
		SET status = $2, result = $3, updated_at = NOW()
		WHERE idempotency_key = $1
	`, key, status, result)
	if err != nil {
		return fmt.Errorf("failed to update inbox status: %w", err)
	}
	return nil
}

// StartCleanup begins the background expiry loop.
func (i *Inbox) StartCleanup() {
	go func() {
		defer close(i.done)

		ticker := time.NewTicker(i.config.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-i.ctx.Done():
				return
			case <-ticker.C:
				if n, err := i.cleanupExpired(i.ctx); err != nil {
					i.logger.Error("inbox cleanup failed", zap.Error(err))
				} else if n > 0 {
					i.logger.Debug("inbox entries expired", zap.Int64("count", n))
				}
			}
		}
	}()
}

// StopCleanup stops the background expiry loop.
func (i *Inbox) StopCleanup() {
	i.cancel()
	<-i.done
}

func (i *Inbox) cleanupExpired(ctx context.Context) (int64, error) {
	tag, err := i.pool.Exec(ctx, `
		DELETE FROM inbox
		WHERE expires_at IS NOT NULL AND expires_at < NOW()
		  AND status IN ($1, $2)
	`, StatusFinished, StatusFailed)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
