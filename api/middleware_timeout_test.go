package api

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeoutMiddlewarePassesFastRequests(t *testing.T) {
	h := TimeoutMiddleware(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"alive": true}`))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/cases/mine", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"alive": true}`, rr.Body.String())
}

func TestTimeoutMiddlewareTimesOut(t *testing.T) {
	before := runtime.NumGoroutine()

	block := make(chan struct{})
	handlerDone := make(chan struct{})
	h := TimeoutMiddleware(20*time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"late": true}`))
		close(handlerDone)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/cases/mine", nil))

	assert.Equal(t, http.StatusRequestTimeout, rr.Code)
	assert.Equal(t, `{"error": "request timeout"}`, rr.Body.String())

	// release the stuck handler; its late response must be discarded and its
	// goroutine must exit rather than hang on the completion send
	close(block)
	<-handlerDone

	assert.Equal(t, `{"error": "request timeout"}`, rr.Body.String())

	deadline := time.Now().Add(time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.LessOrEqual(t, runtime.NumGoroutine(), before)
}

func TestTimeoutMiddlewareDeadlineReachesHandler(t *testing.T) {
	h := TimeoutMiddleware(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Context().Deadline()
		assert.True(t, ok)
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/cases/mine", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
}
