package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type contextKey string

const sessionIDKey contextKey = "session_id"

// HeaderSessionID — заголовок, которым клиент передаёт ID сессии корзины.
const HeaderSessionID = "X-Session-ID"

// SessionMiddleware извлекает ID сессии из заголовка или куки; если его
// нет, выдаёт новый. ID всегда возвращается клиенту в заголовке ответа.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(HeaderSessionID)
		if sessionID == "" {
			if cookie, err := r.Cookie("almacen_session"); err == nil {
				sessionID = cookie.Value
			}
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		w.Header().Set(HeaderSessionID, sessionID)
		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionIDFromContext(ctx context.Context) string {
	if sessionID, ok := ctx.Value(sessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogger логирует каждый запрос структурированно через logrus.
func RequestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			logger.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      recorder.status,
				"duration_ms": time.Since(started).Milliseconds(),
			}).Info("request handled")
		})
	}
}
