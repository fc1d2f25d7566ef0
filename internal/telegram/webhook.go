package telegram

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// UpdateHandler consumes decoded webhook updates. Implementations must not
// block for long: Telegram retries updates whose webhook call times out.
type UpdateHandler interface {
	HandleUpdate(u *Update)
}

// maxUpdateBytes bounds a single webhook body. Telegram updates are small;
// anything larger is malformed or hostile.
const maxUpdateBytes = 1 << 20

// WebhookHandler decodes Bot API updates POSTed by Telegram and hands them
// to handler. Updates are processed on their own goroutine so the webhook
// responds immediately; ordering between unrelated users is not guaranteed,
// which matches Telegram's own delivery semantics.
func WebhookHandler(handler UpdateHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBytes))
		if err != nil {
			http.Error(w, "read error", http.StatusBadRequest)
			return
		}

		var update Update
		if err := json.Unmarshal(body, &update); err != nil {
			log.Printf("[webhook] malformed update: %v", err)
			// 200 anyway: Telegram would retry a 4xx forever.
			w.WriteHeader(http.StatusOK)
			return
		}

		go handler.HandleUpdate(&update)
		w.WriteHeader(http.StatusOK)
	}
}

// NewRouter builds the HTTP surface: the webhook path, a health check and
// the metrics endpoint.
func NewRouter(webhookPath string, handler UpdateHandler, metricsHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post(webhookPath, WebhookHandler(handler))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metricsHandler)
	return r
}
