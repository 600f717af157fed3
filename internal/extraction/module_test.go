package extraction

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockProvider is a mock implementation of Provider
type mockProvider struct {
	reply       string
	completeErr error
	panicWith   any
	calls       int
	lastImage   Image
	lastCtx     context.Context
}

func (m *mockProvider) Complete(ctx context.Context, sig Signature, img Image) (string, error) {
	m.calls++
	m.lastImage = img
	m.lastCtx = ctx
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	if m.completeErr != nil {
		return "", m.completeErr
	}
	return m.reply, nil
}

func (m *mockProvider) Name() string {
	return "mock"
}

func (m *mockProvider) Close() error {
	return nil
}

// writePNG writes a w x h PNG into dir and returns its path
func writePNG(dir, name string, w, h int) string {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	Expect(err).NotTo(HaveOccurred())
	defer f.Close()
	Expect(png.Encode(f, img)).To(Succeed())
	return path
}

var _ = Describe("Module", func() {
	var (
		provider *mockProvider
		opts     []Option
		module   *Module
		ctx      context.Context
		path     string
		result   Result
	)

	BeforeEach(func() {
		provider = &mockProvider{
			reply: `{"total_net_worth": 100.0, "total_vat": 23.0, "gross_worth": 123.0}`,
		}
		opts = nil
		ctx = context.Background()
		path = writePNG(GinkgoT().TempDir(), "invoice1.png", 8, 8)
	})

	JustBeforeEach(func() {
		var err error
		module, err = NewModule(provider, opts...)
		Expect(err).NotTo(HaveOccurred())
		result = module.Extract(ctx, path)
	})

	When("the provider returns every field", func() {
		It("should succeed", func() {
			Expect(result.OK()).To(BeTrue())
			Expect(result.Status()).To(Equal("ok"))
		})

		It("should return the extracted values", func() {
			Expect(result.Fields).To(Equal(Fields{TotalNetWorth: 100, TotalVAT: 23, GrossWorth: 123}))
		})

		It("should report nothing missing", func() {
			Expect(result.Missing).To(BeEmpty())
		})

		It("should call the provider exactly once with a PNG", func() {
			Expect(provider.calls).To(Equal(1))
			Expect(provider.lastImage.MIMEType).To(Equal("image/png"))
			Expect(provider.lastImage.Data).NotTo(BeEmpty())
		})
	})

	When("the provider returns a null field", func() {
		BeforeEach(func() {
			provider.reply = `{"total_net_worth": 100.0, "total_vat": null, "gross_worth": 123.0}`
		})

		It("should substitute zero for that field", func() {
			Expect(result.Fields.TotalVAT).To(BeZero())
			Expect(result.Fields.TotalNetWorth).To(Equal(100.0))
		})

		It("should report the field missing", func() {
			Expect(result.Missing).To(ConsistOf(FieldTotalVAT))
		})

		It("should still succeed", func() {
			Expect(result.OK()).To(BeTrue())
		})
	})

	When("the provider returns a real zero", func() {
		BeforeEach(func() {
			provider.reply = `{"total_net_worth": 50.0, "total_vat": 0, "gross_worth": 50.0}`
		})

		It("should return zero without reporting it missing", func() {
			Expect(result.Fields.TotalVAT).To(BeZero())
			Expect(result.Missing).To(BeEmpty())
		})
	})

	When("the provider returns decimal-comma amounts", func() {
		BeforeEach(func() {
			provider.reply = `{"total_net_worth": "100,00", "total_vat": "23,00", "gross_worth": "1.234,50"}`
		})

		It("should fall back to zero as a malformed reply", func() {
			Expect(result.Status()).To(Equal("malformed_reply"))
			Expect(result.Fields).To(Equal(Fields{}))
		})
	})

	When("the provider returns an error", func() {
		var setupErr error

		BeforeEach(func() {
			setupErr = errors.New("rate limited")
			provider.completeErr = setupErr
		})

		It("should return the all-zero mapping", func() {
			Expect(result.Map()).To(Equal(map[string]float64{
				"total_net_worth": 0.0,
				"total_vat":       0.0,
				"gross_worth":     0.0,
			}))
		})

		It("should record a provider failure", func() {
			Expect(result.Failure).NotTo(BeNil())
			Expect(result.Failure.Kind).To(Equal(FailureProvider))
			Expect(result.Failure).To(MatchError(setupErr))
		})
	})

	When("the provider reply is malformed", func() {
		BeforeEach(func() {
			provider.reply = "sorry, no idea"
		})

		It("should return zero values", func() {
			Expect(result.Fields).To(BeZero())
		})

		It("should record a malformed reply failure", func() {
			Expect(result.Status()).To(Equal(string(FailureMalformedReply)))
		})
	})

	When("the image cannot be loaded", func() {
		BeforeEach(func() {
			path = filepath.Join(GinkgoT().TempDir(), "missing.jpg")
		})

		It("should return zero values", func() {
			Expect(result.Fields).To(BeZero())
		})

		It("should record an image load failure", func() {
			Expect(result.Failure.Kind).To(Equal(FailureImageLoad))
		})

		It("should not call the provider", func() {
			Expect(provider.calls).To(BeZero())
		})
	})

	When("the provider panics", func() {
		BeforeEach(func() {
			provider.panicWith = "boom"
		})

		It("should recover and return zero values", func() {
			Expect(result.Fields).To(BeZero())
			Expect(result.Failure.Kind).To(Equal(FailureInternal))
		})
	})

	When("a timeout is configured", func() {
		BeforeEach(func() {
			opts = append(opts, WithTimeout(time.Minute))
		})

		It("should pass a deadline to the provider", func() {
			_, ok := provider.lastCtx.Deadline()
			Expect(ok).To(BeTrue())
		})
	})

	When("no timeout is configured", func() {
		It("should not add a deadline", func() {
			_, ok := provider.lastCtx.Deadline()
			Expect(ok).To(BeFalse())
		})
	})

	When("rate limited and the context is cancelled", func() {
		BeforeEach(func() {
			opts = append(opts, WithRateLimit(1))
			cancelled, cancel := context.WithCancel(context.Background())
			cancel()
			ctx = cancelled
		})

		It("should record a provider failure without calling the provider", func() {
			Expect(result.Failure.Kind).To(Equal(FailureProvider))
			Expect(provider.calls).To(BeZero())
		})
	})

	When("an oversized image is loaded with a max edge", func() {
		BeforeEach(func() {
			path = writePNG(GinkgoT().TempDir(), "big.png", 40, 20)
			opts = append(opts, WithImageLoader(ImageLoader{MaxEdge: 10}))
		})

		It("should send the fitted image", func() {
			img, err := png.Decode(bytes.NewReader(provider.lastImage.Data))
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(10))
			Expect(img.Bounds().Dy()).To(Equal(5))
		})
	})
})

var _ = Describe("NewModule", func() {
	It("requires a provider", func() {
		_, err := NewModule(nil)
		Expect(err).To(MatchError(ContainSubstring("provider is required")))
	})
})
