package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/relay/cmd/relay/config"
)

var _ = Describe("Config command", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "relay-config-cmd-*")
		Expect(err).NotTo(HaveOccurred())
		out = &bytes.Buffer{}

		// A local .relay dir so the manager never touches $HOME.
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".relay"), 0o755)).To(Succeed())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(func() {
			_ = os.Chdir(origDir)
			os.RemoveAll(tmpDir)
		})
	})

	It("has set, get, and list subcommands", func() {
		names := []string{}
		for _, sub := range configcmder.NewConfigCmd().Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("set", "get", "list"))
	})

	Describe("set", func() {
		It("writes config.toml", func() {
			Expect(run("set", "server.provider", "anthropic")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, ".relay", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`provider = "anthropic"`))
		})

		It("rejects unknown keys and bad values", func() {
			Expect(run("set", "invalid_key", "value")).To(MatchError(ContainSubstring("unknown config key")))
			Expect(run("set", "cache.ttl", "forever")).To(HaveOccurred())
			Expect(run("set", "client.max_attempts", "lots")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "server.provider")).To(HaveOccurred())
			Expect(run("set")).To(HaveOccurred())
		})
	})

	Describe("get", func() {
		It("prints a previously set value", func() {
			Expect(run("set", "cache.ttl", "90s")).To(Succeed())
			out.Reset()

			Expect(run("get", "cache.ttl")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("90s"))
		})

		It("marks keys without a value", func() {
			Expect(run("get", "storage.postgres_dsn")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).To(HaveOccurred())
		})
	})

	Describe("list", func() {
		It("prints every key with its effective value", func() {
			Expect(run("set", "eventstream.topic", "streams")).To(Succeed())
			out.Reset()

			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`eventstream.topic`))
			Expect(out.String()).To(ContainSubstring(`"streams"`))
			Expect(out.String()).To(ContainSubstring(`"65s"`))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})

	It("honours a --config-dir flag from the parent", func() {
		other := filepath.Join(tmpDir, "elsewhere")

		root := &cobra.Command{Use: "relay"}
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(configcmder.NewConfigCmd())
		root.SetOut(out)
		root.SetArgs([]string{"config", "set", "server.listen", ":9999", "--config-dir", other})
		Expect(root.Execute()).To(Succeed())

		_, err := os.Stat(filepath.Join(other, "config.toml"))
		Expect(err).NotTo(HaveOccurred())
	})
})
