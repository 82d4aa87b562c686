package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	httpapi "github.com/iudanet/routesync/internal/client/api"
	"github.com/iudanet/routesync/internal/client/storage"
	"github.com/iudanet/routesync/internal/validation"
	pkgapi "github.com/iudanet/routesync/pkg/api"
)

// Service предоставляет функции авторизации клиента: регистрацию,
// вход, выход и доступ к сохраненной сессии.
type Service struct {
	apiClient httpapi.Service
	authStore storage.AuthStorage
	metadata  storage.MetadataStorage
	logger    *slog.Logger
}

// NewService создает сервис авторизации
func NewService(apiClient httpapi.Service, authStore storage.AuthStorage, metadata storage.MetadataStorage, logger *slog.Logger) *Service {
	return &Service{
		apiClient: apiClient,
		authStore: authStore,
		metadata:  metadata,
		logger:    logger,
	}
}

// Register регистрирует нового пользователя на сервере.
// Сессия не создается: после регистрации нужен Login.
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return "", fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", fmt.Errorf("invalid password: %w", err)
	}

	resp, err := s.apiClient.Register(ctx, pkgapi.RegisterRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return "", fmt.Errorf("registration failed: %w", err)
	}

	s.logger.Info("user registered", slog.String("username", username))

	return resp.UserID, nil
}

// Login выполняет аутентификацию и сохраняет сессию в локальном
// хранилище. Client ID устройства генерируется при первом обращении
// и переживает logout.
func (s *Service) Login(ctx context.Context, username, password string) error {
	if err := validation.ValidateUsername(username); err != nil {
		return fmt.Errorf("invalid username: %w", err)
	}

	resp, err := s.apiClient.Login(ctx, pkgapi.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	auth := &storage.AuthData{
		Username:     username,
		UserID:       resp.UserID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().Unix() + resp.ExpiresIn,
	}

	if err := s.authStore.SaveAuth(ctx, auth); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("user logged in", slog.String("username", username))

	return nil
}

// Logout удаляет сохраненную сессию. Повторный logout не ошибка.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.authStore.DeleteAuth(ctx); err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil
		}
		return fmt.Errorf("logout failed: %w", err)
	}

	s.logger.Info("user logged out")
	return nil
}

// IsAuthenticated проверяет наличие действующей сессии
func (s *Service) IsAuthenticated(ctx context.Context) (bool, error) {
	return s.authStore.IsAuthenticated(ctx)
}

// AccessToken возвращает действующий access token, обновляя его через
// refresh token при истечении
func (s *Service) AccessToken(ctx context.Context) (string, error) {
	auth, err := s.authStore.GetAuth(ctx)
	if err != nil {
		return "", fmt.Errorf("not logged in: %w", err)
	}

	if time.Now().Unix() < auth.ExpiresAt {
		return auth.AccessToken, nil
	}

	resp, err := s.apiClient.Refresh(ctx, pkgapi.RefreshRequest{RefreshToken: auth.RefreshToken})
	if err != nil {
		return "", fmt.Errorf("session expired, login required: %w", err)
	}

	auth.AccessToken = resp.AccessToken
	auth.RefreshToken = resp.RefreshToken
	auth.ExpiresAt = time.Now().Unix() + resp.ExpiresIn

	if err := s.authStore.SaveAuth(ctx, auth); err != nil {
		return "", fmt.Errorf("failed to save refreshed session: %w", err)
	}

	s.logger.Debug("access token refreshed", slog.String("username", auth.Username))

	return auth.AccessToken, nil
}

// Session возвращает сохраненную сессию
func (s *Service) Session(ctx context.Context) (*storage.AuthData, error) {
	return s.authStore.GetAuth(ctx)
}

// ClientID возвращает стабильный идентификатор этого устройства
func (s *Service) ClientID(ctx context.Context) (string, error) {
	return s.metadata.GetClientID(ctx)
}
