package sqlite_test

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/storage"
	"github.com/papercomputeco/relay/pkg/storage/sqlite"
	"github.com/papercomputeco/relay/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DriverSpecs(func() storage.Driver {
		driver, err := sqlite.NewDriver(context.Background(), ":memory:")
		Expect(err).NotTo(HaveOccurred())
		return driver
	})

	It("persists across reopen", func() {
		ctx := context.Background()
		path := filepath.Join(GinkgoT().TempDir(), "relay.sqlite")

		driver, err := sqlite.NewDriver(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		_, err = driver.ClaimSession(ctx, "s1", "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(driver.SaveTurn(ctx, storagetest.Turn("s1", "a", "hi", "hello", time.Unix(1700000000, 0)))).To(Succeed())
		Expect(driver.Close()).To(Succeed())

		driver, err = sqlite.NewDriver(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		owner, err := driver.Owner(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(owner).To(Equal("alice"))

		turns, err := driver.History(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(HaveLen(1))
	})
})
