package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func idempotencyRouter(store IdempotencyStore, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyMiddleware(store))
	r.POST("/op", handler)
	return r
}

func TestIdempotentReplayReturnsCachedResponse(t *testing.T) {
	store := NewInMemIdempotencyStore()
	calls := 0
	r := idempotencyRouter(store, func(c *gin.Context) {
		calls++
		c.JSON(http.StatusAccepted, gin.H{"call": calls})
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/op", nil)
		req.Header.Set(HeaderIdempotencyKey, "op-1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("attempt %d: status %d", i, rec.Code)
		}
		if rec.Body.String() != `{"call":1}` {
			t.Fatalf("attempt %d: body %s", i, rec.Body.String())
		}
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestDifferentKeysAreIndependent(t *testing.T) {
	store := NewInMemIdempotencyStore()
	calls := 0
	r := idempotencyRouter(store, func(c *gin.Context) {
		calls++
		c.Status(http.StatusOK)
	})

	for _, key := range []string{"a", "b", ""} {
		req := httptest.NewRequest(http.MethodPost, "/op", nil)
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("key %q: status %d", key, rec.Code)
		}
	}
	if calls != 3 {
		t.Fatalf("handler ran %d times, want 3", calls)
	}
}

func TestServerErrorsAreNotCached(t *testing.T) {
	store := NewInMemIdempotencyStore()
	calls := 0
	r := idempotencyRouter(store, func(c *gin.Context) {
		calls++
		if calls == 1 {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/op", nil)
		req.Header.Set(HeaderIdempotencyKey, "retry-me")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
	}
	if calls != 2 {
		t.Fatalf("5xx should unlock for retry; handler ran %d times", calls)
	}
}

func TestInFlightDuplicateConflicts(t *testing.T) {
	store := NewInMemIdempotencyStore()
	// simulate an in-flight first request by locking directly
	if rec, hit := store.GetOrLock(":busy"); hit || rec != nil {
		t.Fatal("fresh key should lock, not hit")
	}

	r := idempotencyRouter(store, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/op", nil)
	req.Header.Set(HeaderIdempotencyKey, "busy")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while first request is in flight, got %d", rec.Code)
	}
}
