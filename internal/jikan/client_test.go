package jikan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastClient returns a client pointed at srv with a wide-open rate gate and
// millisecond backoff so retry behavior is observable without real waits.
func fastClient(srv *httptest.Server, attempts int) *Client {
	return NewClient(
		WithBaseURL(srv.URL),
		WithRateLimit(10000, 10000),
		WithRetry(attempts, time.Millisecond, 5*time.Millisecond),
		WithTimeout(2*time.Second),
	)
}

func TestGetAnimeByID_Decodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/anime/20/full", r.URL.Path)
		w.Write([]byte(`{"data":{"mal_id":20,"title":"Naruto","score":8.0,
			"status":"Finished Airing","genres":[{"mal_id":1,"name":"Action"}],
			"themes":[{"mal_id":17,"name":"Martial Arts"}]}}`))
	}))
	defer srv.Close()

	a, err := fastClient(srv, 5).GetAnimeByID(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, int64(20), a.MALID)
	assert.Equal(t, "Naruto", a.Title)
	require.Len(t, a.Genres, 1)
	require.Len(t, a.Themes, 1)
	assert.Equal(t, "Martial Arts", a.Themes[0].Name)
}

func TestNotFound_ZeroRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fastClient(srv, 5).GetAnimeByID(context.Background(), 999999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load(), "definitive not-found must not be retried")
}

func TestRejected_ZeroRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := fastClient(srv, 5).GetAnimeByID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransient_ExhaustsExactBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fastClient(srv, 5).GetAnimeByID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(5), calls.Load(), "must attempt exactly the configured count")
}

func TestTimeout_ExhaustsBudgetAsUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(
		WithBaseURL(srv.URL),
		WithRateLimit(10000, 10000),
		WithRetry(2, time.Millisecond, 5*time.Millisecond),
		WithTimeout(50*time.Millisecond),
	)

	_, err := c.GetAnimeByID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable, "a timed-out attempt is transient upstream trouble")
	assert.Equal(t, int32(2), calls.Load())
}

func TestCallerCancellation_NotUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := fastClient(srv, 5).GetAnimeByID(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestTransient_RecoversMidBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"data":{"mal_id":1,"title":"Cowboy Bebop"}}`))
	}))
	defer srv.Close()

	a, err := fastClient(srv, 5).GetAnimeByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Cowboy Bebop", a.Title)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRateCeiling_SpacesBurst(t *testing.T) {
	var mu sync.Mutex
	var admitted []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		admitted = append(admitted, time.Now())
		mu.Unlock()
		w.Write([]byte(`{"data":{"mal_id":1,"title":"x"}}`))
	}))
	defer srv.Close()

	// 100 req/s, burst 1: admissions must be ~10ms apart.
	c := NewClient(
		WithBaseURL(srv.URL),
		WithRateLimit(100, 1),
		WithRetry(1, time.Millisecond, time.Millisecond),
	)

	const k = 6
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetAnimeByID(context.Background(), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, admitted, k)
	// k calls at 100/s with burst 1 cannot finish faster than (k-1) periods.
	assert.GreaterOrEqual(t, time.Since(start), (k-1)*10*time.Millisecond-2*time.Millisecond)
}

func TestGetTopAnime_Decodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/top/anime", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"data":[{"mal_id":5114,"title":"FMA:B"},{"mal_id":9253,"title":"Steins;Gate"}]}`))
	}))
	defer srv.Close()

	top, err := fastClient(srv, 5).GetTopAnime(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(9253), top[1].MALID)
}

func TestSearchAnime_BuildsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "bebop", q.Get("q"))
		assert.Equal(t, "scored_by", q.Get("order_by"))
		assert.Equal(t, "winter", q.Get("season"))
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	_, err := fastClient(srv, 5).SearchAnime(context.Background(), SearchQuery{Q: "bebop", Season: "winter"})
	require.NoError(t, err)
}
