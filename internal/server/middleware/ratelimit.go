package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter ограничивает частоту запросов по ключу (IP клиента)
// счетчиком с фиксированным окном: rate запросов на окно window.
// Для аутентификационных ручек окно делает перебор паролей
// непрактичным, не мешая честным клиентам синхронизации.
type RateLimiter struct {
	visitors map[string]*visitor
	logger   *slog.Logger
	done     chan struct{}
	rate     int
	window   time.Duration
	mu       sync.Mutex
}

// visitor хранит счетчик одного ключа в текущем окне
type visitor struct {
	windowStart time.Time
	used        int
}

// NewRateLimiter создает limiter на rate запросов за window
// и запускает фоновую чистку неактивных ключей
func NewRateLimiter(rate int, window time.Duration, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		logger:   logger,
		done:     make(chan struct{}),
	}

	go rl.evictLoop()

	return rl
}

// Allow отвечает, укладывается ли запрос ключа в лимит текущего окна
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	v, ok := rl.visitors[key]
	if !ok || now.Sub(v.windowStart) >= rl.window {
		rl.visitors[key] = &visitor{windowStart: now, used: 1}
		return true
	}

	if v.used >= rl.rate {
		return false
	}

	v.used++
	return true
}

// Stop останавливает фоновую чистку
func (rl *RateLimiter) Stop() {
	close(rl.done)
}

// evictLoop периодически выбрасывает ключи, чье окно давно закрылось
func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictStale()
		case <-rl.done:
			return
		}
	}
}

func (rl *RateLimiter) evictStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, v := range rl.visitors {
		if now.Sub(v.windowStart) > rl.window*2 {
			delete(rl.visitors, key)
		}
	}
}

// RateLimitMiddleware ограничивает все запросы одним лимитом
func RateLimitMiddleware(rate int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate, window, logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rejectIfLimited(w, r, limiter, logger) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// PathRateLimit задает отдельный лимит для одного пути
type PathRateLimit struct {
	Path   string
	Rate   int
	Window time.Duration
}

// RateLimitByPathMiddleware держит отдельный limiter на каждый путь
// из limits (точное совпадение) и общий limiter для остальных путей
func RateLimitByPathMiddleware(limits []PathRateLimit, defaultRate int, defaultWindow time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	perPath := make(map[string]*RateLimiter, len(limits))
	for _, limit := range limits {
		perPath[limit.Path] = NewRateLimiter(limit.Rate, limit.Window, logger)
	}

	fallback := NewRateLimiter(defaultRate, defaultWindow, logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter, ok := perPath[r.URL.Path]
			if !ok {
				limiter = fallback
			}

			if !rejectIfLimited(w, r, limiter, logger) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// rejectIfLimited пишет 429, если лимит ключа исчерпан.
// Возвращает true, когда запрос отклонен.
func rejectIfLimited(w http.ResponseWriter, r *http.Request, limiter *RateLimiter, logger *slog.Logger) bool {
	key := clientIP(r)
	if limiter.Allow(key) {
		return false
	}

	logger.Warn("rate limit exceeded",
		slog.String("ip", key),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"rate limit exceeded, please try again later"}`))

	return true
}

// clientIP извлекает адрес клиента, учитывая прокси-заголовки
func clientIP(r *http.Request) string {
	// Первый адрес X-Forwarded-For - исходный клиент за прокси
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}
