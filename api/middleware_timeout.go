package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TimeoutMiddleware bounds how long a request may run. When the deadline
// passes the client gets a 408 and any response the handler produces later
// is discarded.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{inner: w}

			// buffered so the handler goroutine can always finish, even
			// after the timeout branch has already responded
			done := make(chan struct{}, 1)
			go func() {
				next.ServeHTTP(tw, r.WithContext(ctx))
				done <- struct{}{}
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if ctx.Err() != context.DeadlineExceeded {
					return
				}
				zap.S().Warnw("request timed out",
					"path", r.URL.Path,
					"method", r.Method,
					"timeout", timeout)
				if tw.markTimedOut() {
					w.WriteHeader(http.StatusRequestTimeout)
					w.Write([]byte(`{"error": "request timeout"}`))
				}
			}
		})
	}
}

// timeoutWriter hands the handler's writes through until the timeout branch
// claims the connection, then swallows them. Exactly one side ever writes.
type timeoutWriter struct {
	inner    http.ResponseWriter
	mu       sync.Mutex
	timedOut bool
	wrote    bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.inner.Header()
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return
	}
	tw.wrote = true
	tw.inner.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return len(b), nil
	}
	tw.wrote = true
	return tw.inner.Write(b)
}

// markTimedOut reports whether the timeout branch may write the 408. It may
// not once the handler has started writing a real response.
func (tw *timeoutWriter) markTimedOut() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.wrote {
		return false
	}
	tw.timedOut = true
	return true
}
