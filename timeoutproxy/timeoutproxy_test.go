package timeoutproxy_test

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/timeoutproxy"
)

var _ = Describe("Proxy", func() {
	var (
		upstream *httptest.Server
		proxy    *timeoutproxy.Proxy
		baseURL  string
	)

	BeforeEach(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/quick", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "ok")
		})
		mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for i := 0; i < 50; i++ {
				fmt.Fprintf(w, "data: %d\n\n", i)
				flusher.Flush()
				select {
				case <-time.After(20 * time.Millisecond):
				case <-r.Context().Done():
					return
				}
			}
		})
		upstream = httptest.NewServer(mux)

		var err error
		proxy, err = timeoutproxy.New(timeoutproxy.Config{
			Target:  upstream.URL,
			Timeout: 150 * time.Millisecond,
		}, nil)
		Expect(err).NotTo(HaveOccurred())

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		go func() {
			_ = proxy.RunWithListener(ln)
		}()
		baseURL = "http://" + ln.Addr().String()
	})

	AfterEach(func() {
		Expect(proxy.Close()).To(Succeed())
		upstream.Close()
	})

	It("rejects invalid targets", func() {
		_, err := timeoutproxy.New(timeoutproxy.Config{Target: "not a url"}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("forwards requests that finish in time", func() {
		resp, err := http.Get(baseURL + "/quick")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(Equal("ok"))
	})

	It("cuts streams that outlive the timeout", func() {
		client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
		resp, err := client.Get(baseURL + "/slow")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		Expect(err).To(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("data: 0"))
		Expect(string(body)).NotTo(ContainSubstring("data: 49"))
		Eventually(proxy.Killed).Should(BeNumerically(">=", 1))
	})
})
