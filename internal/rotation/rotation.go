package rotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carias-rh/lx-toolbox/internal/domain"
)

// ErrNoAssignees is returned when a team has no rotation members.
var ErrNoAssignees = errors.New("rotation: team has no assignees")

// Rotation hands out the next assignee for a team.
type Rotation interface {
	Next(ctx context.Context, team domain.TeamConfig) (string, error)
}

// LocalRotation cycles through each team's Assignees in order. The
// cursor lives in process memory.
type LocalRotation struct {
	mu      sync.Mutex
	cursors map[string]int
}

func NewLocalRotation() *LocalRotation {
	return &LocalRotation{cursors: make(map[string]int)}
}

// Next returns the assignee under the cursor and advances it.
func (r *LocalRotation) Next(_ context.Context, team domain.TeamConfig) (string, error) {
	if len(team.Assignees) == 0 {
		return "", ErrNoAssignees
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.cursors[team.Key] % len(team.Assignees)
	r.cursors[team.Key] = (idx + 1) % len(team.Assignees)
	return team.Assignees[idx], nil
}

// Position returns the index the next call will hand out.
func (r *LocalRotation) Position(teamKey string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursors[teamKey]
}

// RemoteRotation asks an HTTP round-robin service for the next assignee.
// The service answers with {"assignee": "..."} or a plain-text name.
type RemoteRotation struct {
	httpClient *http.Client
}

func NewRemoteRotation(timeout time.Duration) *RemoteRotation {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteRotation{httpClient: &http.Client{Timeout: timeout}}
}

func (r *RemoteRotation) Next(ctx context.Context, team domain.TeamConfig) (string, error) {
	if team.RoundRobinURL == "" {
		return "", errors.New("rotation: no round-robin url")
	}
	endpoint, err := url.Parse(team.RoundRobinURL)
	if err != nil {
		return "", fmt.Errorf("rotation: bad round-robin url: %w", err)
	}
	q := endpoint.Query()
	q.Set("team", team.Key)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("round-robin service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return parseAssignee(body)
}

func parseAssignee(body []byte) (string, error) {
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "{") {
		var payload struct {
			Assignee string `json:"assignee"`
		}
		if err := json.Unmarshal([]byte(text), &payload); err != nil {
			return "", fmt.Errorf("rotation: decode response: %w", err)
		}
		text = strings.TrimSpace(payload.Assignee)
	} else {
		text = strings.Trim(text, `"`)
	}
	if text == "" {
		return "", errors.New("rotation: empty assignee in response")
	}
	return text, nil
}

// counter is the subset of redis.Cmdable used by RedisRotation.
type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// RedisRotation shares the cursor between processes with INCR.
type RedisRotation struct {
	store  counter
	prefix string
}

func NewRedisRotation(store counter, prefix string) *RedisRotation {
	if prefix == "" {
		prefix = "lx:rotation:"
	}
	return &RedisRotation{store: store, prefix: prefix}
}

func (r *RedisRotation) Next(ctx context.Context, team domain.TeamConfig) (string, error) {
	if len(team.Assignees) == 0 {
		return "", ErrNoAssignees
	}
	n, err := r.store.Incr(ctx, r.prefix+team.Key).Result()
	if err != nil {
		return "", fmt.Errorf("rotation: redis incr: %w", err)
	}
	k := int64(len(team.Assignees))
	idx := (n - 1) % k
	if idx < 0 {
		idx += k
	}
	return team.Assignees[idx], nil
}
