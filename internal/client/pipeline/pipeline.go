package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/iudanet/routesync/internal/models"
)

// Status представляет наблюдаемое состояние отправки операции.
// Статусы нужны только для observability (UI binding), не для корректности.
type Status string

// Статусы отправки
const (
	StatusSyncing Status = "syncing"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// SubmitFunc представляет инжектированную функцию отправки операции
// на сервер. Удаленная сторона идемпотентна по operation id: повторная
// отправка того же id безопасна.
type SubmitFunc func(ctx context.Context, op *models.Operation) error

// TransientSyncError представляет терминальную ошибку отправки после
// исчерпания всех попыток
type TransientSyncError struct {
	Err      error
	OpType   models.OperationType
	Attempts int
}

func (e *TransientSyncError) Error() string {
	return fmt.Sprintf("failed to sync %s operation after %d attempts: %v", e.OpType, e.Attempts, e.Err)
}

func (e *TransientSyncError) Unwrap() error {
	return e.Err
}

// Config задает параметры повторов пайплайна
type Config struct {
	// OnStatus вызывается при каждой смене статуса (опционально)
	OnStatus func(Status)
	// BaseDelay - базовая задержка экспоненциального backoff (по умолчанию 1s)
	BaseDelay time.Duration
	// MaxRetries - количество повторов после первой неудачи (по умолчанию 3)
	MaxRetries uint64
}

// Pipeline отправляет операции на сервер с экспоненциальным backoff.
// Порядок per-client сохраняется вызывающей стороной: неудачная операция
// повторяется до перехода к следующей, пайплайн никогда не переупорядочивает.
type Pipeline struct {
	submit     SubmitFunc
	onStatus   func(Status)
	logger     *slog.Logger
	baseDelay  time.Duration
	maxRetries uint64
}

// NewPipeline создает пайплайн отправки поверх функции submit
func NewPipeline(submit SubmitFunc, logger *slog.Logger, cfg Config) *Pipeline {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = time.Second
	}

	return &Pipeline{
		submit:     submit,
		onStatus:   cfg.OnStatus,
		logger:     logger,
		baseDelay:  cfg.BaseDelay,
		maxRetries: cfg.MaxRetries,
	}
}

// Submit отправляет операцию, повторяя временные сбои.
// Backoff: baseDelay * 2^attempt (1s, 2s, 4s по умолчанию).
// Постоянные ошибки (4xx) не повторяются и возвращаются как есть;
// после исчерпания повторов возвращается TransientSyncError.
func (p *Pipeline) Submit(ctx context.Context, op *models.Operation) error {
	p.setStatus(StatusSyncing)

	var attempts int

	backoff := retry.WithMaxRetries(p.maxRetries, retry.NewExponential(p.baseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++

		if err := p.submit(ctx, op); err != nil {
			// Ошибки, явно помеченные как постоянные, не повторяем
			var permanent interface{ Transient() bool }
			if errors.As(err, &permanent) && !permanent.Transient() {
				return err
			}

			p.logger.Warn("operation submit failed",
				slog.String("operation_id", op.ID),
				slog.String("type", string(op.Type)),
				slog.Int("attempt", attempts),
				slog.String("error", err.Error()),
			)

			return retry.RetryableError(err)
		}

		return nil
	})

	if err != nil {
		p.setStatus(StatusError)

		var permanent interface{ Transient() bool }
		if errors.As(err, &permanent) && !permanent.Transient() {
			return fmt.Errorf("operation rejected: %w", err)
		}

		return &TransientSyncError{
			OpType:   op.Type,
			Attempts: attempts,
			Err:      err,
		}
	}

	p.setStatus(StatusSuccess)
	return nil
}

// SubmitSilent отправляет операцию, не возвращая ошибку.
// Для некритичных best-effort отправок, которые не должны блокировать
// вызывающего: терминальная ошибка логируется и превращается в false.
func (p *Pipeline) SubmitSilent(ctx context.Context, op *models.Operation) bool {
	if err := p.Submit(ctx, op); err != nil {
		p.logger.Warn("silent submit failed",
			slog.String("operation_id", op.ID),
			slog.String("type", string(op.Type)),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

func (p *Pipeline) setStatus(status Status) {
	if p.onStatus != nil {
		p.onStatus(status)
	}
}
