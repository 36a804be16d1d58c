package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carias-rh/lx-toolbox/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.DirectoryConfig{BaseURL: server.URL, Token: "tok", TimeoutSeconds: 2})
}

func TestDisplayName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/jdoe":
			if r.Header.Get("Authorization") != "Bearer tok" {
				t.Errorf("auth = %q", r.Header.Get("Authorization"))
			}
			_, _ = w.Write([]byte(`{"display_name":"Jane Doe"}`))
		case "/users/split":
			_, _ = w.Write([]byte(`{"first_name":"Ann","last_name":"Lee"}`))
		default:
			http.NotFound(w, r)
		}
	})

	name, err := client.DisplayName(context.Background(), "jdoe")
	if err != nil || name != "Jane Doe" {
		t.Errorf("jdoe = %q, %v", name, err)
	}
	name, err = client.DisplayName(context.Background(), "split")
	if err != nil || name != "Ann Lee" {
		t.Errorf("split = %q, %v", name, err)
	}
	if _, err := client.DisplayName(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ghost err = %v, want ErrNotFound", err)
	}
	if _, err := client.DisplayName(context.Background(), "  "); !errors.Is(err, ErrNotFound) {
		t.Errorf("blank err = %v, want ErrNotFound", err)
	}
}

func TestDisplayNameServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := client.DisplayName(context.Background(), "jdoe")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want transport error", err)
	}
}

type fakeStore struct {
	values map[string]string
	sets   int
	getErr error
}

func (f *fakeStore) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.sets++
	f.values[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

type countingDirectory struct {
	calls int
	name  string
	err   error
}

func (c *countingDirectory) DisplayName(ctx context.Context, accountID string) (string, error) {
	c.calls++
	return c.name, c.err
}

func TestCachedDirectory(t *testing.T) {
	store := &fakeStore{values: map[string]string{}}
	next := &countingDirectory{name: "Jane Doe"}
	cached := NewCachedDirectory(next, store, time.Hour, nil)

	for i := 0; i < 3; i++ {
		name, err := cached.DisplayName(context.Background(), "jdoe")
		if err != nil || name != "Jane Doe" {
			t.Fatalf("call %d = %q, %v", i, name, err)
		}
	}
	if next.calls != 1 || store.sets != 1 {
		t.Errorf("directory calls = %d, cache sets = %d; want 1, 1", next.calls, store.sets)
	}
}

func TestCachedDirectoryFallsThroughOnCacheError(t *testing.T) {
	store := &fakeStore{values: map[string]string{}, getErr: errors.New("redis down")}
	next := &countingDirectory{name: "Jane Doe"}
	cached := NewCachedDirectory(next, store, time.Hour, nil)

	name, err := cached.DisplayName(context.Background(), "jdoe")
	if err != nil || name != "Jane Doe" {
		t.Fatalf("DisplayName = %q, %v", name, err)
	}

	next.err = ErrNotFound
	store.getErr = redis.Nil
	if _, err := cached.DisplayName(context.Background(), "other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound propagated", err)
	}
}
