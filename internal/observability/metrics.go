package observability

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	requestMillis map[string]int64
	errorCount    map[string]int64
	transitions   map[string]int64
	notifications map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		requestMillis: make(map[string]int64),
		errorCount:    make(map[string]int64),
		transitions:   make(map[string]int64),
		notifications: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestMillis[key] += duration.Milliseconds()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordTransition counts one status transition attempt by outcome
// ("ok", "noop", "reconciled" or an error code).
func (m *Metrics) RecordTransition(line, from, to, outcome string) {
	if m == nil {
		return
	}
	key := line + "|" + from + "|" + to + "|" + outcome
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[key]++
}

// RecordNotification counts one notification delivery by outcome.
func (m *Metrics) RecordNotification(eventType, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[eventType+"|"+outcome]++
}

// Snapshot is a point-in-time copy of every counter, keyed by the
// pipe-joined labels.
type Snapshot struct {
	Requests      map[string]int64 `json:"requests"`
	RequestMillis map[string]int64 `json:"request_millis"`
	Errors        map[string]int64 `json:"errors"`
	Transitions   map[string]int64 `json:"transitions"`
	Notifications map[string]int64 `json:"notifications"`
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:      copyCounters(m.requestCount),
		RequestMillis: copyCounters(m.requestMillis),
		Errors:        copyCounters(m.errorCount),
		Transitions:   copyCounters(m.transitions),
		Notifications: copyCounters(m.notifications),
	}
}

// Text renders the snapshot one counter per line, sorted, for scraping
// with plain tools.
func (s Snapshot) Text() string {
	var b strings.Builder
	write := func(name string, counters map[string]int64) {
		keys := make([]string, 0, len(counters))
		for k := range counters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(name)
			b.WriteString("{")
			b.WriteString(k)
			b.WriteString("} ")
			b.WriteString(strconv.FormatInt(counters[k], 10))
			b.WriteString("\n")
		}
	}
	write("http_requests_total", s.Requests)
	write("http_request_millis_total", s.RequestMillis)
	write("http_errors_total", s.Errors)
	write("ticket_transitions_total", s.Transitions)
	write("notifications_total", s.Notifications)
	return b.String()
}

func copyCounters(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
