// Package testutil provides an in-process fake of the ImageFX tRPC API for
// tests that exercise the whole pipeline over real HTTP.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Item is one history entry served by the fake.
type Item struct {
	Key        string
	CreateTime string
	Prompt     *string
	Image      []byte
	// NoImage makes media.fetchMedia answer without the image object
	NoImage bool
}

// ImageFXServer fakes media.fetchUserHistory and media.fetchMedia.
//
// Cursors are opaque tokens encoding the call number and an offset into the
// items, so an empty page still hands out a fresh cursor. Failures can be injected per
// procedure or per media key.
type ImageFXServer struct {
	server *httptest.Server

	mu          sync.Mutex
	items       []Item
	cookie      string
	failNext    map[string][]int
	failKeys    map[string]int
	emptyPages  map[int]bool
	mediaDelay  time.Duration
	retryAfter  string
	seenCookies []string

	historyCalls atomic.Int32
	mediaCalls   atomic.Int32
	active       atomic.Int32
	peak         atomic.Int32
}

const (
	historyPath = "/media.fetchUserHistory"
	mediaPath   = "/media.fetchMedia"
)

// NewImageFXServer starts a fake serving items.
func NewImageFXServer(items []Item) *ImageFXServer {
	s := &ImageFXServer{
		items:      items,
		failNext:   make(map[string][]int),
		failKeys:   make(map[string]int),
		emptyPages: make(map[int]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(historyPath, s.handleHistory)
	mux.HandleFunc(mediaPath, s.handleMedia)
	s.server = httptest.NewServer(mux)
	return s
}

// URL is the tRPC base URL to configure clients with.
func (s *ImageFXServer) URL() string {
	return s.server.URL
}

// Close shuts the server down.
func (s *ImageFXServer) Close() {
	s.server.Close()
}

// RequireCookie makes every request without exactly this Cookie header fail
// with 401.
func (s *ImageFXServer) RequireCookie(cookie string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookie = cookie
}

// FailNext queues statuses returned by the next requests to procedure
// ("history" or "media"), one per request.
func (s *ImageFXServer) FailNext(procedure string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[procedure] = append(s.failNext[procedure], statuses...)
}

// FailKey makes every media request for key answer status.
func (s *ImageFXServer) FailKey(key string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failKeys[key] = status
}

// EmptyPage makes the n-th history response (0-based) carry an empty list
// without advancing the offset.
func (s *ImageFXServer) EmptyPage(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emptyPages[n] = true
}

// SetMediaDelay slows every media response.
func (s *ImageFXServer) SetMediaDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mediaDelay = d
}

// SetRetryAfter adds a Retry-After header to injected failures.
func (s *ImageFXServer) SetRetryAfter(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryAfter = v
}

// HistoryCalls returns the number of history requests served.
func (s *ImageFXServer) HistoryCalls() int { return int(s.historyCalls.Load()) }

// MediaCalls returns the number of media requests served.
func (s *ImageFXServer) MediaCalls() int { return int(s.mediaCalls.Load()) }

// PeakConcurrentMedia returns the most media requests seen in flight at once.
func (s *ImageFXServer) PeakConcurrentMedia() int { return int(s.peak.Load()) }

// SeenCookies returns the Cookie header of every request, in arrival order.
func (s *ImageFXServer) SeenCookies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seenCookies...)
}

type input struct {
	JSON struct {
		Cursor   string `json:"cursor"`
		Limit    int    `json:"limit"`
		Type     string `json:"type"`
		MediaKey string `json:"mediaKey"`
	} `json:"json"`
}

func parseInput(r *http.Request) (input, bool) {
	var in input
	raw := r.URL.Query().Get("input")
	if raw == "" || json.Unmarshal([]byte(raw), &in) != nil {
		return in, false
	}
	return in, true
}

// admit applies cookie checks and queued failures. It reports false when a
// response has already been written.
func (s *ImageFXServer) admit(w http.ResponseWriter, r *http.Request, procedure string) bool {
	s.mu.Lock()
	s.seenCookies = append(s.seenCookies, r.Header.Get("Cookie"))
	cookie := s.cookie
	var status int
	if q := s.failNext[procedure]; len(q) > 0 {
		status, s.failNext[procedure] = q[0], q[1:]
	}
	retryAfter := s.retryAfter
	s.mu.Unlock()

	if cookie != "" && r.Header.Get("Cookie") != cookie {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return false
	}
	if status != 0 {
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		http.Error(w, `{"error":"injected"}`, status)
		return false
	}
	return true
}

func (s *ImageFXServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	call := int(s.historyCalls.Add(1)) - 1
	if !s.admit(w, r, "history") {
		return
	}

	in, ok := parseInput(r)
	if !ok || in.JSON.Type != "IMAGE_FX" {
		http.Error(w, `{"error":"bad input"}`, http.StatusBadRequest)
		return
	}

	offset := 0
	if in.JSON.Cursor != "" {
		_, raw, found := strings.Cut(in.JSON.Cursor, ".")
		n, err := strconv.Atoi(raw)
		if !found || err != nil {
			http.Error(w, `{"error":"bad cursor"}`, http.StatusBadRequest)
			return
		}
		offset = n
	}
	limit := in.JSON.Limit
	if limit <= 0 {
		limit = 12
	}

	s.mu.Lock()
	empty := s.emptyPages[call]
	total := len(s.items)
	var page []Item
	if !empty && offset < total {
		page = append(page, s.items[offset:min(offset+limit, total)]...)
	}
	s.mu.Unlock()

	workflows := make([]map[string]string, 0, len(page))
	for _, it := range page {
		workflows = append(workflows, map[string]string{
			"name":       it.Key,
			"createTime": it.CreateTime,
		})
	}

	result := map[string]interface{}{"userWorkflows": workflows}
	if next := offset + len(page); next < total {
		result["nextPageToken"] = "c" + strconv.Itoa(call) + "." + strconv.Itoa(next)
	} else {
		result["nextPageToken"] = nil
	}

	writeResult(w, result)
}

func (s *ImageFXServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	s.mediaCalls.Add(1)
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	s.mu.Lock()
	delay := s.mediaDelay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	if !s.admit(w, r, "media") {
		return
	}

	in, ok := parseInput(r)
	if !ok || in.JSON.MediaKey == "" {
		http.Error(w, `{"error":"bad input"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	status := s.failKeys[in.JSON.MediaKey]
	var found *Item
	for i := range s.items {
		if s.items[i].Key == in.JSON.MediaKey {
			it := s.items[i]
			found = &it
			break
		}
	}
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, `{"error":"injected"}`, status)
		return
	}
	if found == nil {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	if found.NoImage {
		writeResult(w, map[string]interface{}{})
		return
	}

	image := map[string]interface{}{
		"encodedImage": base64.StdEncoding.EncodeToString(found.Image),
	}
	if found.Prompt != nil {
		image["prompt"] = *found.Prompt
	}
	writeResult(w, map[string]interface{}{"image": image})
}

func writeResult(w http.ResponseWriter, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"result": map[string]interface{}{
			"data": map[string]interface{}{
				"json": map[string]interface{}{
					"result": result,
				},
			},
		},
	})
}

// GenerateItems builds n items with sequential keys, dates spread over days
// in January 2024 and a prompt on every item.
func GenerateItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		prompt := "prompt " + strconv.Itoa(i)
		items[i] = Item{
			Key:        "media-" + strconv.Itoa(i),
			CreateTime: time.Date(2024, 1, 1+i%28, 12, 0, 0, 0, time.UTC).Format(time.RFC3339Nano),
			Prompt:     &prompt,
			Image:      []byte("jpeg-bytes-" + strconv.Itoa(i)),
		}
	}
	return items
}
