package chatcmder_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/chat"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
)

// fakeRelay serves just enough of the API for a chat session.
type fakeRelay struct {
	mu      sync.Mutex
	nextID  int64
	created []string
	sends   []map[string]any
	known   map[int64]bool
	failOn  string
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{nextID: 1, known: map[int64]bool{}}
}

func (f *fakeRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/conversations":
		var req struct {
			Title string `json:"title"`
		}
		_ = json.Unmarshal(body, &req)
		title := req.Title
		if title == "" {
			title = "New chat"
		}
		id := f.nextID
		f.nextID++
		f.known[id] = true
		f.created = append(f.created, title)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":%d,"owner_id":"alice","title":%q}`, id, title)

	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/messages"):
		var id int64
		fmt.Sscanf(r.URL.Path, "/v1/conversations/%d/messages", &id)
		if !f.known[id] {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"not_found"}`)
			return
		}
		fmt.Fprintf(w, `{"conversation_id":%d,"messages":[{"id":1,"role":"user","content":"earlier"}]}`, id)

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/send"):
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		req["path"] = r.URL.Path
		f.sends = append(f.sends, req)

		if req["text"] == f.failOn {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `{"error":"upstream_error","upstream_status":429}`)
			return
		}

		params, _ := req["params"].(map[string]any)
		if params["stream"] == true {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "data: {\"delta\":\"Hel\"}\n\n")
			fmt.Fprint(w, "data: {\"delta\":\"lo!\"}\n\n")
			fmt.Fprint(w, "event: done\ndata: {}\n\n")
			return
		}
		fmt.Fprint(w, `{"reply":"Hello!"}`)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

var _ = Describe("Chat command", func() {
	var (
		fake      *fakeRelay
		server    *httptest.Server
		configDir string
		out       *bytes.Buffer
	)

	BeforeEach(func() {
		fake = newFakeRelay()
		server = httptest.NewServer(fake)
		DeferCleanup(server.Close)

		configDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	execute := func(stdin string, args ...string) error {
		root := &cobra.Command{Use: "chatrelay", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(chatcmder.NewChatCmd())
		root.SetIn(strings.NewReader(stdin))
		root.SetOut(out)

		full := append([]string{"chat", "--config-dir", configDir, "--api-target", server.URL, "--identity", "alice"}, args...)
		root.SetArgs(full)
		return root.Execute()
	}

	It("creates a conversation and streams the reply", func() {
		Expect(execute("hello\n/exit\n")).To(Succeed())

		Expect(fake.created).To(Equal([]string{"New chat"}))
		Expect(fake.sends).To(HaveLen(1))
		Expect(fake.sends[0]["text"]).To(Equal("hello"))
		Expect(fake.sends[0]["path"]).To(Equal("/v1/conversations/1/send"))
		Expect(fake.sends[0]["params"]).To(HaveKeyWithValue("stream", true))
		Expect(out.String()).To(ContainSubstring("Hello!"))
	})

	It("remembers the conversation for the next session", func() {
		Expect(execute("/exit\n", "--title", "Trip")).To(Succeed())

		state, err := dotdir.NewManager().LoadChatState(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.ConversationID).To(Equal(int64(1)))
		Expect(state.Title).To(Equal("Trip"))
		Expect(state.APITarget).To(Equal(server.URL))
		Expect(state.Caller).To(Equal("alice"))

		Expect(execute("again\n")).To(Succeed())
		Expect(fake.created).To(HaveLen(1))
		Expect(fake.sends[0]["path"]).To(Equal("/v1/conversations/1/send"))
		Expect(out.String()).To(ContainSubstring("Resuming"))
	})

	It("starts over when the saved conversation is gone", func() {
		Expect(dotdir.NewManager().SaveChatState(&dotdir.ChatState{
			ConversationID: 42,
			APITarget:      server.URL,
			Caller:         "alice",
		}, configDir)).To(Succeed())

		Expect(execute("")).To(Succeed())
		Expect(fake.created).To(HaveLen(1))

		state, err := dotdir.NewManager().LoadChatState(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.ConversationID).To(Equal(int64(1)))
	})

	It("ignores state saved for another caller", func() {
		Expect(dotdir.NewManager().SaveChatState(&dotdir.ChatState{
			ConversationID: 1,
			APITarget:      server.URL,
			Caller:         "bob",
		}, configDir)).To(Succeed())

		Expect(execute("")).To(Succeed())
		Expect(fake.created).To(HaveLen(1))
	})

	It("starts a new conversation on /new", func() {
		Expect(execute("/new\nhi\n")).To(Succeed())
		Expect(fake.created).To(HaveLen(2))
		Expect(fake.sends[0]["path"]).To(Equal("/v1/conversations/2/send"))
	})

	It("sends session parameters and attachments once", func() {
		Expect(execute("one\ntwo\n",
			"--provider", "openai",
			"--model", "gpt-4o",
			"--shared",
			"--no-stream",
			"--attach", "/uploads/cat.png",
		)).To(Succeed())

		Expect(fake.sends).To(HaveLen(2))
		first := fake.sends[0]
		Expect(first["attachments"]).To(Equal([]any{"/uploads/cat.png"}))
		Expect(first["params"]).To(HaveKeyWithValue("provider", "openai"))
		Expect(first["params"]).To(HaveKeyWithValue("model", "gpt-4o"))
		Expect(first["params"]).To(HaveKeyWithValue("use_shared", true))
		Expect(first["params"]).NotTo(HaveKey("stream"))
		Expect(fake.sends[1]).NotTo(HaveKey("attachments"))
		Expect(out.String()).To(ContainSubstring("Hello!"))
	})

	It("keeps the session going after a failed send", func() {
		fake.failOn = "boom"

		Expect(execute("boom\nhello\n")).To(Succeed())
		Expect(fake.sends).To(HaveLen(2))
		Expect(out.String()).To(ContainSubstring("status 502"))
		Expect(out.String()).To(ContainSubstring("Hello!"))
	})
})
