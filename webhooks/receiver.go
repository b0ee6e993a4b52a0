package webhooks

import (
	"io"
	"net/http"
	"strings"

	"github.com/goliatone/go-fliggy/core"
)

const defaultReceiverBodyLimit int64 = 1 << 20 // 1 MiB

// Receiver adapts the processor to net/http. The response body is always the
// bare token the partner dispatcher matches on, never a JSON envelope.
type Receiver struct {
	Handler      core.WebhookHandler
	Logger       core.Logger
	MaxBodyBytes int64
}

func NewReceiver(handler core.WebhookHandler, logger core.Logger) *Receiver {
	return &Receiver{
		Handler:      handler,
		Logger:       logger,
		MaxBodyBytes: defaultReceiverBodyLimit,
	}
}

// HandlerFor returns the http.Handler for one push category endpoint.
func (r *Receiver) HandlerFor(category string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, httpReq *http.Request) {
		r.serve(w, httpReq, category)
	})
}

// Mount registers both push endpoints under prefix (e.g. /webhooks/fliggy).
func (r *Receiver) Mount(mux *http.ServeMux, prefix string) {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	mux.Handle(prefix+"/product", r.HandlerFor(CategoryProduct))
	mux.Handle(prefix+"/order", r.HandlerFor(CategoryOrder))
}

func (r *Receiver) serve(w http.ResponseWriter, httpReq *http.Request, category string) {
	if httpReq.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		io.WriteString(w, TokenError)
		return
	}

	limit := r.MaxBodyBytes
	if limit <= 0 {
		limit = defaultReceiverBodyLimit
	}
	body, err := io.ReadAll(io.LimitReader(httpReq.Body, limit))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, TokenError)
		return
	}

	headers := map[string]string{}
	for name, values := range httpReq.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	result, handleErr := r.Handler.Handle(httpReq.Context(), core.InboundRequest{
		Category: category,
		Headers:  headers,
		Body:     body,
		Metadata: map[string]any{"remote_addr": httpReq.RemoteAddr},
	})
	if handleErr != nil && r.Logger != nil {
		r.Logger.Warn("push handling failed",
			"category", category,
			"error", handleErr.Error(),
		)
	}

	status := result.StatusCode
	if status == 0 {
		status = http.StatusBadRequest
	}
	token := result.Token
	if token == "" {
		token = TokenError
		if result.Accepted {
			token = TokenSuccess
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, token)
}
