package keyscmder_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	keyscmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/keys"
)

type recorded struct {
	method string
	path   string
	user   string
	body   map[string]any
}

var _ = Describe("Keys command", func() {
	var (
		server   *httptest.Server
		requests []recorded
		reply    func(w http.ResponseWriter, r *http.Request)
		out      *bytes.Buffer
	)

	BeforeEach(func() {
		requests = nil
		out = &bytes.Buffer{}
		reply = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := recorded{method: r.Method, path: r.URL.Path, user: r.Header.Get("X-Chatrelay-User")}
			if data, _ := io.ReadAll(r.Body); len(data) > 0 {
				_ = json.Unmarshal(data, &rec.body)
			}
			requests = append(requests, rec)
			reply(w, r)
		}))
		DeferCleanup(server.Close)
	})

	execute := func(stdin string, args ...string) error {
		root := &cobra.Command{Use: "chatrelay", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(keyscmder.NewKeysCmd())
		root.SetOut(out)
		root.SetIn(strings.NewReader(stdin))

		full := append([]string{"keys"}, args...)
		full = append(full, "--config-dir", GinkgoT().TempDir(), "--api-target", server.URL, "--identity", "alice")
		root.SetArgs(full)
		return root.Execute()
	}

	It("has add, list and delete subcommands", func() {
		cmd := keyscmder.NewKeysCmd()
		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("add", "list", "delete"))
	})

	Describe("add", func() {
		BeforeEach(func() {
			reply = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				fmt.Fprint(w, `{"id":5,"owner_id":"alice","provider":"openai","label":"work","shared":false}`)
			}
		})

		It("posts the secret read from stdin", func() {
			Expect(execute("sk-test\n", "add", "OpenAI", "--label", "work")).To(Succeed())

			Expect(requests).To(HaveLen(1))
			req := requests[0]
			Expect(req.method).To(Equal(http.MethodPost))
			Expect(req.path).To(Equal("/v1/credentials"))
			Expect(req.user).To(Equal("alice"))
			Expect(req.body).To(HaveKeyWithValue("provider", "openai"))
			Expect(req.body).To(HaveKeyWithValue("secret", "sk-test"))
			Expect(req.body).To(HaveKeyWithValue("label", "work"))
			Expect(req.body).NotTo(HaveKey("config"))
			Expect(out.String()).To(ContainSubstring("#5"))
		})

		It("sends the endpoint and model as credential config", func() {
			Expect(execute("sk-test\n", "add", "openai", "--shared", "--model", "gpt-4o", "--base-url", "http://gw/v1/chat/completions")).To(Succeed())

			req := requests[0]
			Expect(req.body).To(HaveKeyWithValue("shared", true))
			Expect(req.body["config"]).To(Equal(map[string]any{
				"base_url": "http://gw/v1/chat/completions",
				"model":    "gpt-4o",
			}))
		})

		It("rejects an unsupported provider before calling the server", func() {
			err := execute("sk-test\n", "add", "anthropic")
			Expect(err).To(MatchError(ContainSubstring("unsupported provider")))
			Expect(requests).To(BeEmpty())
		})

		It("rejects an empty secret", func() {
			err := execute("   \n", "add", "openai")
			Expect(err).To(MatchError(ContainSubstring("secret cannot be empty")))
			Expect(requests).To(BeEmpty())
		})
	})

	Describe("list", func() {
		It("prints credentials without secrets", func() {
			reply = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"credentials":[
					{"id":5,"owner_id":"alice","provider":"openai","label":"work","config":"{\"model\":\"gpt-4o\"}","shared":false},
					{"id":6,"provider":"deepseek","label":"team","shared":true}
				]}`)
			}

			Expect(execute("", "list")).To(Succeed())
			Expect(requests[0].path).To(Equal("/v1/credentials"))
			Expect(out.String()).To(ContainSubstring("openai"))
			Expect(out.String()).To(ContainSubstring("model=gpt-4o"))
			Expect(out.String()).To(ContainSubstring("shared"))
		})

		It("says when there are none", func() {
			reply = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"credentials":[]}`)
			}

			Expect(execute("", "list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("No credentials."))
		})
	})

	Describe("delete", func() {
		It("deletes by id", func() {
			Expect(execute("", "delete", "#5")).To(Succeed())
			Expect(requests[0].method).To(Equal(http.MethodDelete))
			Expect(requests[0].path).To(Equal("/v1/credentials/5"))
		})

		It("reports a forbidden delete", func() {
			reply = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"error":"forbidden","detail":"credential 5 is not yours"}`)
			}

			err := execute("", "delete", "5")
			Expect(err).To(MatchError(ContainSubstring("status 403")))
		})

		It("rejects a non-numeric id", func() {
			Expect(execute("", "delete", "abc")).To(MatchError(ContainSubstring("invalid credential id")))
			Expect(requests).To(BeEmpty())
		})
	})
})
