package integration

import (
	"errors"
	"log/slog"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/thoth-station/pulp-repository-sync-job/internal/httpclient"
	"github.com/thoth-station/pulp-repository-sync-job/internal/pulp"
	"github.com/thoth-station/pulp-repository-sync-job/internal/store"
	pkgsync "github.com/thoth-station/pulp-repository-sync-job/internal/sync"
	"github.com/thoth-station/pulp-repository-sync-job/test-integration/pulp-sync/helpers"
)

var _ = Describe("Pulp repository sync", Label("sync"), func() {
	var (
		stub *helpers.PulpStub
		st   *store.PostgresStore
	)

	runPass := func(opts pkgsync.Options) (*pkgsync.Result, error) {
		lister, err := stub.NewLister("admin", "password")
		Expect(err).NotTo(HaveOccurred())
		registrar := pkgsync.NewRegistrar(st, lister, pkgsync.WithLogger(slog.New(slog.NewTextHandler(GinkgoWriter, nil))))
		return registrar.Run(ctx, opts)
	}

	registered := func() map[string]store.PythonPackageIndex {
		indexes, err := st.GetPythonPackageIndexAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		byURL := make(map[string]store.PythonPackageIndex, len(indexes))
		for _, idx := range indexes {
			byURL[idx.URL] = idx
		}
		return byURL
	}

	BeforeEach(func() {
		Expect(db.Reset(ctx)).To(Succeed())

		stub = helpers.NewPulpStub("admin", "password")
		DeferCleanup(stub.Close)

		var err error
		st, err = db.OpenStore(ctx)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(st.Close)
	})

	Context("with new distributions", func() {
		BeforeEach(func() {
			stub.Serve(
				helpers.NewDistribution("idx-a", "/pypi/idx-a/"),
				helpers.NewDistribution("idx-b", "/pypi/idx-b"),
			)
		})

		It("registers every simple index as enabled", func() {
			result, err := runPass(pkgsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Registered).To(Equal(2))

			indexes := registered()
			Expect(indexes).To(HaveLen(2))
			for _, base := range []string{"/pypi/idx-a/", "/pypi/idx-b"} {
				idx, ok := indexes[stub.IndexURL(base)]
				Expect(ok).To(BeTrue(), "missing %s", stub.IndexURL(base))
				Expect(idx.Enabled).To(BeTrue())
				Expect(idx.VerifySSL).To(BeTrue())
				Expect(idx.WarehouseAPIURL).To(BeNil())
			}
			Expect(indexes).To(HaveKey(HaveSuffix("/pypi/idx-a/simple")))
			Expect(indexes).To(HaveKey(HaveSuffix("/pypi/idx-b/simple")))
		})

		It("registers disabled indexes when asked to", func() {
			_, err := runPass(pkgsync.Options{DisableIndex: true})
			Expect(err).NotTo(HaveOccurred())

			for _, idx := range registered() {
				Expect(idx.Enabled).To(BeFalse())
			}
		})

		It("is idempotent", func() {
			_, err := runPass(pkgsync.Options{})
			Expect(err).NotTo(HaveOccurred())
			before := registered()

			result, err := runPass(pkgsync.Options{DisableIndex: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(&pkgsync.Result{Discovered: 2, Known: 2}))
			Expect(registered()).To(Equal(before))
		})
	})

	Context("with a known index", func() {
		It("registers only the unknown one", func() {
			Expect(db.Seed(ctx, stub.IndexURL("/pypi/idx-a/"))).To(Succeed())
			stub.Serve(
				helpers.NewDistribution("idx-a", "/pypi/idx-a/"),
				helpers.NewDistribution("idx-b", "/pypi/idx-b/"),
			)

			result, err := runPass(pkgsync.Options{DisableIndex: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(*result).To(Equal(pkgsync.Result{Discovered: 2, Known: 1, Registered: 1}))

			indexes := registered()
			Expect(indexes[stub.IndexURL("/pypi/idx-a/")].Enabled).To(BeTrue())
			Expect(indexes[stub.IndexURL("/pypi/idx-b/")].Enabled).To(BeFalse())
		})
	})

	Context("when the listing fails", func() {
		It("registers nothing on an HTTP error", func() {
			stub.Fail(http.StatusInternalServerError)

			_, err := runPass(pkgsync.Options{})
			var httpErr *httpclient.HTTPError
			Expect(errors.As(err, &httpErr)).To(BeTrue())
			Expect(httpErr.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(registered()).To(BeEmpty())
		})

		It("stops at a descriptor without base_url", func() {
			stub.Serve(
				helpers.NewDistribution("idx-a", "/pypi/idx-a/"),
				helpers.Distribution{Name: "broken", BasePath: "broken"},
				helpers.NewDistribution("idx-c", "/pypi/idx-c/"),
			)

			result, err := runPass(pkgsync.Options{})
			Expect(err).To(MatchError(pulp.ErrMalformedResponse))
			Expect(result.Registered).To(Equal(1))

			indexes := registered()
			Expect(indexes).To(HaveLen(1))
			Expect(indexes).To(HaveKey(stub.IndexURL("/pypi/idx-a/")))
		})

		It("rejects a body without results", func() {
			stub.ServeBody([]byte(`{"count": 0}`))

			_, err := runPass(pkgsync.Options{})
			Expect(err).To(MatchError(pulp.ErrMalformedResponse))
			Expect(registered()).To(BeEmpty())
		})
	})

	It("rejects wrong credentials", func() {
		lister, err := stub.NewLister("admin", "wrong")
		Expect(err).NotTo(HaveOccurred())

		_, err = pkgsync.NewRegistrar(st, lister).Run(ctx, pkgsync.Options{})
		var httpErr *httpclient.HTTPError
		Expect(errors.As(err, &httpErr)).To(BeTrue())
		Expect(httpErr.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(stub.Requests()).To(Equal(1))
	})
})
