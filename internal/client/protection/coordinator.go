package protection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/routesync/internal/client/storage"
	"github.com/iudanet/routesync/internal/models"
)

// Coordinator управляет защитными флагами критических секций.
// Каждый флаг durable: он переживает перезапуск процесса и снимается
// либо явным Clear, либо лениво по истечению своего timeout.
type Coordinator struct {
	store  storage.FlagStorage
	logger *slog.Logger
	now    func() time.Time
}

// NewCoordinator создает координатор защитных флагов
func NewCoordinator(store storage.FlagStorage, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Set устанавливает флаг с его фиксированным timeout.
// Возвращает false, если активный флаг с тем же именем уже установлен.
func (c *Coordinator) Set(ctx context.Context, name models.FlagName) (bool, error) {
	timeout, err := models.FlagTimeout(name)
	if err != nil {
		return false, err
	}

	now := c.now()

	flag := models.ProtectionFlag{
		Flag:      name,
		Timestamp: now.UnixMilli(),
	}
	if timeout > 0 {
		flag.ExpiresAt = now.Add(timeout).UnixMilli()
	}

	set, err := c.store.PutFlagIfAbsent(ctx, flag, now)
	if err != nil {
		return false, fmt.Errorf("failed to set flag %s: %w", name, err)
	}

	if set {
		c.logger.Debug("protection flag set",
			slog.String("flag", string(name)),
			slog.Duration("timeout", timeout),
		)
	}

	return set, nil
}

// IsActive проверяет, активен ли флаг.
// minTimeout > 0 задает минимальное окно защиты: пока с момента
// установки прошло меньше minTimeout, флаг считается активным даже
// если его собственный timeout уже истек.
func (c *Coordinator) IsActive(ctx context.Context, name models.FlagName, minTimeout time.Duration) (bool, error) {
	now := c.now()

	flag, err := c.store.GetFlag(ctx, name, now, minTimeout)
	if err != nil {
		if errors.Is(err, storage.ErrFlagNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get flag %s: %w", name, err)
	}

	if !flag.Expired(now) {
		return true, nil
	}

	// Запись истекла, но сохранена хранилищем: окно minTimeout
	// еще не закрылось
	return now.Sub(time.UnixMilli(flag.Timestamp)) < minTimeout, nil
}

// TimeRemaining возвращает оставшееся время жизни флага.
// Возвращает 0 для неактивного флага и -1 для бессрочного.
func (c *Coordinator) TimeRemaining(ctx context.Context, name models.FlagName) (time.Duration, error) {
	now := c.now()

	flag, err := c.store.GetFlag(ctx, name, now, 0)
	if err != nil {
		if errors.Is(err, storage.ErrFlagNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get flag %s: %w", name, err)
	}

	return flag.Remaining(now), nil
}

// Clear снимает флаг. Снятие неактивного флага не ошибка.
func (c *Coordinator) Clear(ctx context.Context, name models.FlagName) error {
	if err := c.store.DeleteFlag(ctx, name); err != nil {
		return fmt.Errorf("failed to clear flag %s: %w", name, err)
	}

	c.logger.Debug("protection flag cleared", slog.String("flag", string(name)))
	return nil
}

// ExecuteGuarded выполняет fn под защитой флага.
// Возвращает ok=false без вызова fn, если флаг уже удерживается.
// Флаг снимается после завершения fn, даже при ошибке.
func (c *Coordinator) ExecuteGuarded(ctx context.Context, name models.FlagName, fn func(ctx context.Context) error) (bool, error) {
	set, err := c.Set(ctx, name)
	if err != nil {
		return false, err
	}
	if !set {
		c.logger.Debug("guarded section busy", slog.String("flag", string(name)))
		return false, nil
	}

	defer func() {
		if err := c.Clear(ctx, name); err != nil {
			c.logger.Error("failed to clear protection flag",
				slog.String("flag", string(name)),
				slog.String("error", err.Error()),
			)
		}
	}()

	if err := fn(ctx); err != nil {
		return true, err
	}

	return true, nil
}
