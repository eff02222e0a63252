package chatcmder_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/relay/cmd/relay/chat"
	"github.com/papercomputeco/relay/pkg/client"
	"github.com/papercomputeco/relay/pkg/dotdir"
	"github.com/papercomputeco/relay/pkg/stream"
)

func reply(w http.ResponseWriter, streamID string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set(client.HeaderStreamID, streamID)
	w.WriteHeader(http.StatusOK)

	for _, ev := range []stream.Event{
		{Type: stream.TypeStreamStart},
		stream.DataEvent(client.StreamDataName, streamID, json.RawMessage(`{}`)),
		stream.StartOf(stream.GroupText, "t1"),
		stream.TextDelta("t1", "Hello"),
		stream.TextDelta("t1", " world"),
		stream.EndOf(stream.GroupText, "t1"),
		stream.Finish(stream.FinishStop, nil),
	} {
		chunk, err := stream.Encode(ev)
		Expect(err).NotTo(HaveOccurred())
		_, _ = w.Write(chunk)
	}
}

var _ = Describe("chat and resume commands", func() {
	var (
		tmpDir   string
		server   *httptest.Server
		mux      *http.ServeMux
		out      *bytes.Buffer
		sessions []string
	)

	execute := func(stdin string, args ...string) error {
		root := &cobra.Command{Use: "relay"}
		root.PersistentFlags().String("config-dir", "", "")
		root.PersistentFlags().Bool("debug", false, "")
		root.AddCommand(chatcmder.NewChatCmd(), chatcmder.NewResumeCmd())
		root.SetOut(out)
		root.SetErr(out)
		root.SetIn(strings.NewReader(stdin))
		root.SetArgs(append(args, "--config-dir", tmpDir, "--target", server.URL, "--user", "alice"))
		return root.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "relay-chat-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)

		out = &bytes.Buffer{}
		sessions = nil
		mux = http.NewServeMux()
		mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			var body struct {
				SessionID string `json:"sessionId"`
			}
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			Expect(r.Header.Get(client.HeaderUser)).To(Equal("alice"))
			sessions = append(sessions, body.SessionID)
			reply(w, "st-1")
		})
		server = httptest.NewServer(mux)
		DeferCleanup(server.Close)
	})

	Describe("chat", func() {
		It("streams the reply and remembers the session", func() {
			Expect(execute("hi\n/exit\n", "chat", "--session", "s-42")).To(Succeed())

			Expect(out.String()).To(ContainSubstring("Hello world"))
			Expect(strings.Count(out.String(), "Hello")).To(Equal(1))
			Expect(sessions).To(Equal([]string{"s-42"}))

			state, err := dotdir.NewManager().LoadSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.SessionID).To(Equal("s-42"))
			Expect(state.StreamID).To(Equal("st-1"))
			Expect(state.Target).To(Equal(server.URL))
		})

		It("continues the last session with --continue", func() {
			Expect(dotdir.NewManager().SaveSession(&dotdir.SessionState{SessionID: "previous"}, tmpDir)).To(Succeed())

			Expect(execute("again\n", "chat", "--continue")).To(Succeed())
			Expect(sessions).To(Equal([]string{"previous"}))
		})

		It("starts a fresh session by default", func() {
			Expect(execute("one\ntwo\n", "chat")).To(Succeed())
			Expect(sessions).To(HaveLen(2))
			Expect(sessions[0]).NotTo(BeEmpty())
			Expect(sessions[1]).To(Equal(sessions[0]))
		})

		It("reports relay errors and keeps going", func() {
			mux.HandleFunc("POST /fail/chat", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			})
			root := &cobra.Command{Use: "relay"}
			root.PersistentFlags().String("config-dir", "", "")
			root.AddCommand(chatcmder.NewChatCmd())
			root.SetOut(out)
			root.SetIn(strings.NewReader("hi\n"))
			root.SetArgs([]string{"chat", "--config-dir", tmpDir, "--target", server.URL + "/fail", "--user", "alice"})

			Expect(root.Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("403"))
		})
	})

	Describe("resume", func() {
		It("says so when there is nothing to resume", func() {
			mux.HandleFunc("GET /stream/{id}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			Expect(execute("", "resume", "s-1")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Nothing to resume"))
		})

		It("replays the last session's reply", func() {
			var resumed string
			mux.HandleFunc("GET /stream/{id}", func(w http.ResponseWriter, r *http.Request) {
				resumed = r.PathValue("id")
				reply(w, "st-9")
			})
			Expect(dotdir.NewManager().SaveSession(&dotdir.SessionState{SessionID: "s-last"}, tmpDir)).To(Succeed())

			Expect(execute("", "resume")).To(Succeed())
			Expect(resumed).To(Equal("s-last"))
			Expect(out.String()).To(ContainSubstring("Hello world"))
		})

		It("needs a session when none was recorded", func() {
			Expect(execute("", "resume")).To(MatchError(ContainSubstring("no previous chat session")))
		})
	})
})
