package servecmder_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	servecmder "github.com/papercomputeco/relay/cmd/relay/serve"
	"github.com/papercomputeco/relay/pkg/credentials"
	"github.com/papercomputeco/relay/pkg/eventstream/kafka"
	"github.com/papercomputeco/relay/pkg/eventstream/nop"
	"github.com/papercomputeco/relay/pkg/storage/inmemory"
	"github.com/papercomputeco/relay/pkg/storage/sqlite"
)

var _ = Describe("serve command", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "relay-serve-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)
	})

	It("uses the defaults without flags or config", func() {
		x, err := servecmder.Prepare(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		s := x.Settings()
		Expect(s.Listen).To(Equal(":8080"))
		Expect(s.Provider).To(Equal("auto"))
		Expect(s.UpstreamTimeout).To(Equal(5 * time.Minute))
		Expect(s.CacheTTL).To(Equal(5 * time.Minute))
		Expect(s.SweepInterval).To(Equal(time.Minute))
		Expect(s.KafkaTopic).To(Equal("relay.streams"))
	})

	It("layers flags over env over config.toml", func() {
		data := `[server]
listen = ":1111"
provider = "anthropic"

[cache]
ttl = "2m"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
		GinkgoT().Setenv("RELAY_SERVER_PROVIDER", "chatagent")

		x, err := servecmder.Prepare(tmpDir, "--listen", ":2222", "--sweep-interval", "15s")
		Expect(err).NotTo(HaveOccurred())

		s := x.Settings()
		Expect(s.Listen).To(Equal(":2222"))
		Expect(s.Provider).To(Equal("chatagent"))
		Expect(s.CacheTTL).To(Equal(2 * time.Minute))
		Expect(s.SweepInterval).To(Equal(15 * time.Second))
	})

	It("rejects an unparsable duration from the environment", func() {
		GinkgoT().Setenv("RELAY_CACHE_TTL", "eventually")
		_, err := servecmder.Prepare(tmpDir)
		Expect(err).To(MatchError(ContainSubstring("cache.ttl")))
	})

	Describe("storage selection", func() {
		It("defaults to in-memory", func() {
			x, err := servecmder.Prepare(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			d, err := x.StorageDriver(context.Background())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(d.Close)
			Expect(d).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		})

		It("opens SQLite when a path is given", func() {
			x, err := servecmder.Prepare(tmpDir, "--sqlite", filepath.Join(tmpDir, "relay.db"))
			Expect(err).NotTo(HaveOccurred())

			d, err := x.StorageDriver(context.Background())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(d.Close)
			Expect(d).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		})
	})

	Describe("publisher selection", func() {
		It("uses the no-op publisher without brokers", func() {
			x, err := servecmder.Prepare(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			p, err := x.Publisher()
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(BeAssignableToTypeOf(&nop.Publisher{}))
		})

		It("builds a kafka publisher from the broker list", func() {
			x, err := servecmder.Prepare(tmpDir, "--kafka-brokers", "localhost:9092, localhost:9093")
			Expect(err).NotTo(HaveOccurred())

			p, err := x.Publisher()
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(p.Close)
			Expect(p).To(BeAssignableToTypeOf(&kafka.Publisher{}))
		})
	})

	Describe("upstream token", func() {
		It("prefers --upstream-token", func() {
			x, err := servecmder.Prepare(tmpDir, "--upstream-token", "flag-token")
			Expect(err).NotTo(HaveOccurred())

			token, err := x.Token()
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(Equal("flag-token"))
		})

		It("falls back to stored credentials for the provider", func() {
			GinkgoT().Setenv("DATABRICKS_TOKEN", "")
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetKey("chatagent", "stored-token")).To(Succeed())

			x, err := servecmder.Prepare(tmpDir, "--provider", "chatagent")
			Expect(err).NotTo(HaveOccurred())

			token, err := x.Token()
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(Equal("stored-token"))
		})
	})
})
