// feed-simulator serves a fake paginated events feed compatible with the
// monitor's fetcher: GitHub-shaped JSON records, Link-header pagination,
// and rate-limit headers. Point the monitor at it with
// GITHUB_API_URL=http://localhost:8090.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var eventTypes = []string{"WatchEvent", "PullRequestEvent", "IssuesEvent", "PushEvent", "ForkEvent"}

var repos = []string{
	"acme/widgets", "acme/gadgets", "octo/kit", "octo/cli",
	"demo/service", "demo/library", "sample/app",
}

type feedEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Repo      repoRef         `json:"repo"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type repoRef struct {
	Name string `json:"name"`
}

// feedState holds the rolling window of generated events, newest first.
type feedState struct {
	mu     sync.RWMutex
	events []feedEvent
	max    int
}

func (s *feedState) add(ev feedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append([]feedEvent{ev}, s.events...)
	if len(s.events) > s.max {
		s.events = s.events[:s.max]
	}
}

func (s *feedState) page(page, perPage int) ([]feedEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := (page - 1) * perPage
	if start >= len(s.events) {
		return nil, false
	}
	end := start + perPage
	hasNext := end < len(s.events)
	if end > len(s.events) {
		end = len(s.events)
	}
	return s.events[start:end], hasNext
}

func main() {
	addr := flag.String("addr", ":8090", "Listen address")
	eps := flag.Float64("eps", 5, "Generated events per second")
	window := flag.Int("window", 2000, "Events kept in the rolling feed window")
	quota := flag.Int("quota", 5000, "Reported rate limit quota")
	flag.Parse()

	state := &feedState{max: *window}

	go generate(state, *eps)

	var remaining atomic.Int64
	remaining.Store(int64(*quota))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r, "page", 1)
		perPage := queryInt(r, "per_page", 30)

		events, hasNext := state.page(page, perPage)

		left := remaining.Load()
		if left > 0 {
			left = remaining.Add(-1)
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(*quota))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(left, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
		if hasNext {
			next := fmt.Sprintf("<http://%s/events?page=%d&per_page=%d>; rel=\"next\"", r.Host, page+1, perPage)
			w.Header().Set("Link", next)
		}
		w.Header().Set("Content-Type", "application/json")
		if events == nil {
			events = []feedEvent{}
		}
		json.NewEncoder(w).Encode(events)
	})

	log.Printf("feed simulator listening on %s (%.1f events/s, window %d)", *addr, *eps, *window)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

func generate(state *feedState, eps float64) {
	limiter := rate.NewLimiter(rate.Limit(eps), 1)
	for {
		if err := limiter.Wait(context.Background()); err != nil {
			return
		}
		repo := repos[rand.Intn(len(repos))]
		payload, _ := json.Marshal(map[string]string{"action": "opened", "note": "synthetic"})
		state.add(feedEvent{
			ID:        uuid.NewString(),
			Type:      eventTypes[rand.Intn(len(eventTypes))],
			Repo:      repoRef{Name: repo},
			CreatedAt: time.Now().UTC(),
			Payload:   payload,
		})
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
