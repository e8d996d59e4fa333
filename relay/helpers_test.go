package relay_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/gomega"
)

// fakeUpstream is a chat-completions endpoint whose reply is set per test.
type fakeUpstream struct {
	*httptest.Server

	requests atomic.Int32

	mu       sync.Mutex
	lastBody map[string]any
	lastAuth string

	reply http.HandlerFunc
}

func newFakeUpstream() *fakeUpstream {
	f := &fakeUpstream{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)

		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		f.mu.Lock()
		f.lastBody = body
		f.lastAuth = r.Header.Get("Authorization")
		reply := f.reply
		f.mu.Unlock()

		if reply == nil {
			http.Error(w, "no reply configured", http.StatusInternalServerError)
			return
		}
		reply(w, r)
	}))
	return f
}

func (f *fakeUpstream) endpoint() string {
	return f.URL + "/chat/completions"
}

func (f *fakeUpstream) respond(h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = h
}

func (f *fakeUpstream) body() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

func (f *fakeUpstream) auth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

// sseReply streams one frame per fragment, flushing after each, then the
// [DONE] sentinel.
func sseReply(fragments ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)

		for _, frag := range fragments {
			chunk, err := json.Marshal(map[string]any{
				"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": frag}}},
			})
			Expect(err).NotTo(HaveOccurred())
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			if flusher != nil {
				flusher.Flush()
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

// deltaFrame is the JSON payload of one streamed fragment.
func deltaFrame(content string) string {
	chunk, err := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": content}}},
	})
	Expect(err).NotTo(HaveOccurred())
	return string(chunk)
}

// rawSSEReply writes each chunk verbatim as its own flushed write, pausing
// between writes so the relay sees them as separate reads.
func rawSSEReply(chunks ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)

		for _, chunk := range chunks {
			fmt.Fprint(w, chunk)
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(20 * time.Millisecond)
		}
	}
}

// brokenSSEReply streams the fragments and then drops the connection
// without finishing the response body.
func brokenSSEReply(fragments ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		for _, frag := range fragments {
			fmt.Fprintf(w, "data: %s\n\n", deltaFrame(frag))
		}
		w.(http.Flusher).Flush()

		conn, _, err := w.(http.Hijacker).Hijack()
		Expect(err).NotTo(HaveOccurred())
		_ = conn.Close()
	}
}

// jsonReply answers with a single completion carrying one choice per text.
func jsonReply(texts ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		choices := make([]any, 0, len(texts))
		for i, t := range texts {
			choices = append(choices, map[string]any{
				"index":         i,
				"message":       map[string]any{"role": "assistant", "content": t},
				"finish_reason": "stop",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"model":   "deepseek-chat",
			"choices": choices,
		})
	}
}

// recordingSink captures forwarded fragments.
type recordingSink struct {
	mu        sync.Mutex
	fragments []string
	done      int

	// onFragment runs after the nth fragment is recorded.
	onFragment func(n int)

	// failAt makes the nth Fragment call fail (1-based); 0 never fails.
	failAt int
}

func (s *recordingSink) Fragment(text string) error {
	s.mu.Lock()
	if s.failAt > 0 && len(s.fragments)+1 == s.failAt {
		s.mu.Unlock()
		return errors.New("broken pipe")
	}
	s.fragments = append(s.fragments, text)
	n := len(s.fragments)
	s.mu.Unlock()

	if s.onFragment != nil {
		s.onFragment(n)
	}
	return nil
}

func (s *recordingSink) Done() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done++
	return nil
}
