package observability

import (
	"strconv"
	"sync"
)

// TeamCounters are cumulative assignment counters for one team.
type TeamCounters struct {
	Cycles      int64 `json:"cycles"`
	FetchErrors int64 `json:"fetch_errors"`
	Processed   int64 `json:"processed"`
	Succeeded   int64 `json:"succeeded"`
	Failed      int64 `json:"failed"`
}

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	teams        map[string]*TeamCounters
	requestCount map[string]int64
	errorCount   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		teams:        make(map[string]*TeamCounters),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordCycle adds one finished cycle's counts for team.
func (m *Metrics) RecordCycle(team string, processed, succeeded, failed int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.team(team)
	c.Cycles++
	c.Processed += int64(processed)
	c.Succeeded += int64(succeeded)
	c.Failed += int64(failed)
}

// RecordFetchError counts a cycle aborted by the ticket source.
func (m *Metrics) RecordFetchError(team string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.team(team)
	c.Cycles++
	c.FetchErrors++
}

// RecordRequest increments counters for status API requests.
func (m *Metrics) RecordRequest(path, method string, status int) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError counts a failed status API request by error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Requests returns a copy of the request counters keyed by path|method|status.
func (m *Metrics) Requests() map[string]int64 {
	out := map[string]int64{}
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		out[k] = v
	}
	return out
}

// Teams returns a copy of the per-team counters.
func (m *Metrics) Teams() map[string]TeamCounters {
	out := map[string]TeamCounters{}
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.teams {
		out[k] = *v
	}
	return out
}

func (m *Metrics) team(name string) *TeamCounters {
	c, ok := m.teams[name]
	if !ok {
		c = &TeamCounters{}
		m.teams[name] = c
	}
	return c
}
