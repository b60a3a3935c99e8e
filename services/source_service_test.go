package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flic_feed/models"
)

func newAdapter(t *testing.T, handler http.HandlerFunc, mutate ...func(*UpstreamConfig)) *SourceAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := UpstreamConfig{
		BaseURL:          srv.URL,
		Token:            "secret-token",
		FailureThreshold: 3,
		BreakerTimeout:   time.Minute,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewSourceAdapter(cfg, WithHTTPClient(srv.Client()))
}

func TestSourceAdapter_HeadersAndQuery(t *testing.T) {
	var got *http.Request
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		fmt.Fprint(w, `{"posts":[{"id":1,"category":{"id":3}}]}`)
	})

	posts, err := a.Fetch(context.Background(), models.EngagementLiked)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.True(t, posts[0].Category.Matches(3))

	require.NotNil(t, got)
	assert.Equal(t, "/posts/like", got.URL.Path)
	assert.Equal(t, "1", got.URL.Query().Get("page"))
	assert.Equal(t, "1000", got.URL.Query().Get("page_size"))
	assert.Equal(t, "secret-token", got.Header.Get("Flic-Token"))
	assert.Equal(t, "Bearer secret-token", got.Header.Get("Authorization"))
}

func TestSourceAdapter_EndpointPaths(t *testing.T) {
	var paths []string
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		fmt.Fprint(w, `{"posts":[]}`)
	})
	ctx := context.Background()
	for _, c := range models.EngagementOrder {
		_, err := a.Fetch(ctx, c)
		require.NoError(t, err)
	}
	_, err := a.FetchAllPosts(ctx)
	require.NoError(t, err)
	_, err = a.FetchUsers(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/posts/view", "/posts/like", "/posts/inspire", "/posts/rating", "/posts/summary/get", "/users/get_all",
	}, paths)
}

func TestSourceAdapter_Pagination(t *testing.T) {
	var calls atomic.Int32
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		switch page {
		case 1:
			fmt.Fprint(w, `{"posts":[{"id":1},{"id":2}]}`)
		case 2:
			fmt.Fprint(w, `{"posts":[{"id":3}]}`)
		default:
			t.Errorf("unexpected page %d", page)
		}
	}, func(c *UpstreamConfig) {
		c.PageSize = 2
		c.MaxPages = 5
	})

	posts, err := a.Fetch(context.Background(), models.EngagementViewed)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, models.NumericPostID(3), posts[2].ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSourceAdapter_FirstPageOnlyByDefault(t *testing.T) {
	var calls atomic.Int32
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"posts":[{"id":1},{"id":2}]}`)
	}, func(c *UpstreamConfig) { c.PageSize = 2 })

	posts, err := a.Fetch(context.Background(), models.EngagementViewed)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSourceAdapter_UpstreamError(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `internal failure`)
	})

	_, err := a.Fetch(context.Background(), models.EngagementLiked)
	var upstreamErr *models.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusInternalServerError, upstreamErr.Status)
	assert.Equal(t, "internal failure", upstreamErr.Body)
	assert.Equal(t, "/posts/like", upstreamErr.Endpoint)
}

func TestSourceAdapter_SkipsMalformedPosts(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"posts":[{"id":1},{"title":"no id"},{"id":null},{"id":"x"}]}`)
	})
	posts, err := a.Fetch(context.Background(), models.EngagementRated)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, models.StringPostID("x"), posts[1].ID)
}

func TestSourceAdapter_UsersPassThrough(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"users":[{"username":"alice","extra":{"a":1}}]}`)
	})
	users, err := a.FetchUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.JSONEq(t, `{"username":"alice","extra":{"a":1}}`, string(users[0]))
}

func TestSourceAdapter_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := a.Fetch(ctx, models.EngagementViewed)
		var upstreamErr *models.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
	}

	_, err := a.Fetch(ctx, models.EngagementViewed)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSourceAdapter_BreakerIgnoresClientErrors(t *testing.T) {
	var calls atomic.Int32
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	for i := 0; i < 5; i++ {
		_, err := a.Fetch(context.Background(), models.EngagementViewed)
		var upstreamErr *models.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		assert.Equal(t, http.StatusUnauthorized, upstreamErr.Status)
	}
	assert.Equal(t, int32(5), calls.Load())
}

func TestSourceAdapter_NoRequestAfterCancel(t *testing.T) {
	var calls atomic.Int32
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"posts":[]}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Fetch(ctx, models.EngagementViewed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestSourceAdapter_NoCaching(t *testing.T) {
	var calls atomic.Int32
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"posts":[{"id":1}]}`)
	})
	for i := 0; i < 3; i++ {
		_, err := a.Fetch(context.Background(), models.EngagementViewed)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestSourceAdapter_CallerCancelNotCounted(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if slow.Load() {
			<-r.Context().Done()
			return
		}
		fmt.Fprint(w, `{"posts":[{"id":1}]}`)
	}, func(c *UpstreamConfig) { c.FailureThreshold = 1 })

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := a.Fetch(ctx, models.EngagementViewed)
		cancel()
		require.Error(t, err)
		assert.False(t, errors.Is(err, gobreaker.ErrOpenState))
	}
	assert.Equal(t, gobreaker.StateClosed, a.breaker.State())

	slow.Store(false)
	posts, err := a.Fetch(context.Background(), models.EngagementViewed)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestSourceAdapter_HalfOpenAdmitsConcurrentCategories(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"posts":[]}`)
	}, func(c *UpstreamConfig) { c.BreakerTimeout = 50 * time.Millisecond })

	for i := 0; i < 3; i++ {
		_, _ = a.Fetch(context.Background(), models.EngagementViewed)
	}
	require.Equal(t, gobreaker.StateOpen, a.breaker.State())

	failing.Store(false)
	time.Sleep(80 * time.Millisecond)
	require.Equal(t, gobreaker.StateHalfOpen, a.breaker.State())

	errs := make(chan error, len(models.EngagementOrder))
	for _, c := range models.EngagementOrder {
		go func() {
			_, err := a.Fetch(context.Background(), c)
			errs <- err
		}()
	}
	for range models.EngagementOrder {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, gobreaker.StateClosed, a.breaker.State())
}
