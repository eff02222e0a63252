package relay_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/storage/inmemory"
	"github.com/papercomputeco/relay/pkg/streamcache"
	"github.com/papercomputeco/relay/relay"
)

// fakeUpstream serves chat-completions SSE. When gate is set it pauses
// after the first delta until gate is closed.
type fakeUpstream struct {
	server *httptest.Server
	deltas []string
	gate   chan struct{}

	mu     sync.Mutex
	bodies []map[string]any
	auth   []string
}

func newFakeUpstream(deltas ...string) *fakeUpstream {
	u := &fakeUpstream{deltas: deltas}
	u.server = httptest.NewServer(http.HandlerFunc(u.serve))
	return u
}

func (u *fakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	u.mu.Lock()
	u.bodies = append(u.bodies, body)
	u.auth = append(u.auth, r.Header.Get("Authorization"))
	u.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)

	for i, d := range u.deltas {
		chunk, _ := json.Marshal(map[string]any{
			"id":     "c1",
			"object": "chat.completion.chunk",
			"choices": []any{map[string]any{
				"index": 0,
				"delta": map[string]any{"content": d},
			}},
		})
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()

		if i == 0 && u.gate != nil {
			select {
			case <-u.gate:
			case <-r.Context().Done():
				return
			}
		}
	}
	fmt.Fprint(w, `data: {"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`+"\n\n")
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (u *fakeUpstream) requests() []map[string]any {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]map[string]any(nil), u.bodies...)
}

type harness struct {
	relay    *relay.Relay
	cache    *streamcache.Cache
	driver   *inmemory.Driver
	upstream *fakeUpstream
	baseURL  string
}

func startHarness(upstream *fakeUpstream, mutate ...func(*relay.Config)) *harness {
	cfg := relay.Config{
		UpstreamURL:   upstream.server.URL,
		UpstreamToken: "upstream-token",
		ProviderType:  "openai",
		Model:         "test-model",
	}
	for _, m := range mutate {
		m(&cfg)
	}

	h := &harness{
		cache:    streamcache.New(streamcache.WithSweepInterval(-1)),
		driver:   inmemory.NewDriver(),
		upstream: upstream,
	}

	var err error
	h.relay, err = relay.New(cfg, h.cache, h.driver)
	Expect(err).NotTo(HaveOccurred())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	go func() {
		_ = h.relay.RunWithListener(ln)
	}()
	h.baseURL = "http://" + ln.Addr().String()
	return h
}

func (h *harness) close() {
	Expect(h.relay.Close()).To(Succeed())
	h.cache.Close()
	h.upstream.server.Close()
}

func (h *harness) do(method, path, user, body string) *http.Response {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.baseURL+path, r)
	Expect(err).NotTo(HaveOccurred())
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Forwarded-User", user)
	}
	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func chatBody(sessionID, text string) string {
	b, _ := json.Marshal(map[string]any{
		"sessionId": sessionID,
		"message": map[string]any{
			"id":    "m1",
			"role":  "user",
			"parts": []any{map[string]any{"type": "text", "text": text}},
		},
	})
	return string(b)
}

func readAll(resp *http.Response) string {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return string(b)
}

