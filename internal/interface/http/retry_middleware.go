package http

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/medimind/medimind-api/internal/infra/config"
)

// Replayed POST bodies are buffered in memory, so they are capped.
const retryBodyLimit = 1 << 20

var errBodyTooLarge = errors.New("request body exceeds retry limit")

// withRetry replays failed POSTs against the inner handler with exponential
// backoff. Paths on the exclusion list run exactly once; the analysis
// submission endpoint must stay there because a replay would append duplicate
// history records. Responses are buffered until an attempt sticks, so clients
// only ever see the final one.
func withRetry(handler http.Handler, cfg config.RetryConfig, logger *slog.Logger) http.Handler {
	if !cfg.Enabled || cfg.MaxAttempts <= 1 {
		return handler
	}
	excluded := make(map[string]struct{}, len(cfg.Exclude))
	for _, path := range cfg.Exclude {
		excluded[path] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, skip := excluded[r.URL.Path]; skip || r.Method != http.MethodPost {
			handler.ServeHTTP(w, r)
			return
		}

		body, err := bufferRequestBody(r)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, errBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			http.Error(w, err.Error(), status)
			return
		}

		for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
			if attempt > 1 {
				backoff := cfg.BaseBackoff * time.Duration(1<<(attempt-2))
				if backoff > 0 {
					time.Sleep(backoff)
				}
			}

			replay := r.Clone(r.Context())
			replay.Body = io.NopCloser(bytes.NewReader(body))
			replay.ContentLength = int64(len(body))

			buffered := newBufferedResponse(w)
			handler.ServeHTTP(buffered, replay)
			if !buffered.transientFailure() || attempt == cfg.MaxAttempts {
				buffered.flushTo()
				return
			}

			logger.Warn("transient failure, retrying request", "path", r.URL.Path, "status", buffered.status, "attempt", attempt)
		}
	})
}

func bufferRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, retryBodyLimit+1))
	if err != nil {
		return nil, err
	}
	if len(data) > retryBodyLimit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// bufferedResponse holds an attempt's full response so a failed attempt can
// be discarded and replayed without having touched the real writer.
type bufferedResponse struct {
	dst         http.ResponseWriter
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newBufferedResponse(dst http.ResponseWriter) *bufferedResponse {
	return &bufferedResponse{
		dst:    dst,
		header: make(http.Header),
		status: http.StatusOK,
	}
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	return b.body.Write(p)
}

func (b *bufferedResponse) Flush() {}

func (b *bufferedResponse) transientFailure() bool {
	return b.status >= http.StatusInternalServerError
}

// flushTo copies the buffered status, headers, and body to the real writer.
func (b *bufferedResponse) flushTo() {
	dst := b.dst.Header()
	for k := range dst {
		dst.Del(k)
	}
	for k, values := range b.header {
		dst[k] = append([]string(nil), values...)
	}
	b.dst.WriteHeader(b.status)
	if b.body.Len() > 0 {
		_, _ = b.dst.Write(b.body.Bytes())
	}
}
