package ocr_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/ocr"
	"github.com/frahmantamala/upi-payments/internal/storage"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestOCR(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "OCR Suite")
}

var _ = Describe("ParseUTR", func() {
	DescribeTable("extracts the transaction reference",
		func(text, expected string, found bool) {
			utr, ok := ocr.ParseUTR(text)
			Expect(ok).To(Equal(found))
			Expect(utr).To(Equal(expected))
		},
		Entry("labelled with UTR", "Paid to Saree House\nUTR: 3205241234567890\n₹1,250", "3205241234567890", true),
		Entry("labelled with UTR No", "UTR No. 3205241234567890", "3205241234567890", true),
		Entry("labelled with UPI Ref No", "UPI Ref No: 320524123456789a", "320524123456789A", true),
		Entry("labelled with Transaction ID", "Transaction ID # ab12cd34ef56gh78", "AB12CD34EF56GH78", true),
		Entry("labelled with Txn ID", "txn id - 1111222233334444", "1111222233334444", true),
		Entry("labelled token wins over an earlier bare token",
			"Order ABCD1234EFGH5678 placed\nRef No: 9999888877776666", "9999888877776666", true),
		Entry("falls back to the first 16 character token",
			"Google Pay\n3205241234567890\ncompleted", "3205241234567890", true),
		Entry("falls back when the labelled token has the wrong length",
			"Ref No: 12345\nid 1234567890ABCDEF", "1234567890ABCDEF", true),
		Entry("ignores tokens without digits", "UTR: ABCDEFGHIJKLMNOP", "", false),
		Entry("ignores longer runs", "UTR: 32052412345678901", "", false),
		Entry("no candidate", "Payment successful", "", false),
		Entry("empty text", "", "", false),
	)
})

var _ = Describe("NewResult", func() {
	It("should clamp confidence and count non-empty lines", func() {
		r := ocr.NewResult("line one\n\nUTR 3205241234567890\n", 140)

		Expect(r.Confidence).To(Equal(100.0))
		Expect(r.LineCount).To(Equal(2))
		Expect(r.UTRDetected).To(BeTrue())
		Expect(*r.UTR).To(Equal("3205241234567890"))
	})

	It("should leave UTR nil when none is detected", func() {
		r := ocr.NewResult("nothing here", -5)

		Expect(r.Confidence).To(BeZero())
		Expect(r.UTR).To(BeNil())
		Expect(r.UTRDetected).To(BeFalse())
	})

	It("should build a degraded result from an engine error", func() {
		r := ocr.Degraded(errors.New("timeout"))

		Expect(r.UTRDetected).To(BeFalse())
		Expect(r.Confidence).To(BeZero())
		Expect(r.Error).To(Equal("timeout"))
	})
})

var _ = Describe("Client", func() {
	var (
		ctx     context.Context
		store   *storage.MemoryStorage
		ref     storage.FileRef
		server  *httptest.Server
		handler http.HandlerFunc
		slogger *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		store = storage.NewMemoryStorage()
		var err error
		ref, err = store.Put(ctx, "payment-screenshots/O1/shot.jpg", []byte("jpeg-bytes"), "image/jpeg")
		Expect(err).NotTo(HaveOccurred())

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("should post the screenshot as multipart and parse the reply", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/ocr/image"))

			file, header, err := r.FormFile("file")
			Expect(err).NotTo(HaveOccurred())
			defer file.Close()
			body, _ := io.ReadAll(file)
			Expect(string(body)).To(Equal("jpeg-bytes"))
			Expect(header.Filename).To(Equal("shot.jpg"))
			Expect(header.Header.Get("Content-Type")).To(Equal("image/jpeg"))

			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"text":       "PhonePe\nUTR: 3205241234567890",
				"confidence": 92,
			})
		}
		client := ocr.NewClient(server.URL+"/", time.Second, store, slogger)

		result, err := client.ExtractUTR(ctx, ref)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.UTRDetected).To(BeTrue())
		Expect(*result.UTR).To(Equal("3205241234567890"))
		Expect(result.Confidence).To(Equal(92.0))
		Expect(result.LineCount).To(Equal(2))
	})

	It("should report a timeout as OCR unavailable", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}
		client := ocr.NewClient(server.URL, 50*time.Millisecond, store, slogger)

		result, err := client.ExtractUTR(ctx, ref)

		Expect(result).To(BeNil())
		Expect(errors.Is(err, internal.ErrOCRUnavailable)).To(BeTrue())
	})

	It("should report a non-200 reply as OCR unavailable", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "engine crashed", http.StatusInternalServerError)
		}
		client := ocr.NewClient(server.URL, time.Second, store, slogger)

		_, err := client.ExtractUTR(ctx, ref)

		Expect(errors.Is(err, internal.ErrOCRUnavailable)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("status 500"))
	})

	It("should report a missing screenshot as OCR unavailable", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {}
		client := ocr.NewClient(server.URL, time.Second, store, slogger)

		_, err := client.ExtractUTR(ctx, storage.FileRef{Key: "missing.png"})

		Expect(errors.Is(err, internal.ErrOCRUnavailable)).To(BeTrue())
	})

	It("should check engine health", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}
		client := ocr.NewClient(server.URL, time.Second, store, slogger)

		Expect(client.HealthCheck(ctx)).To(Succeed())
	})
})

var _ = Describe("DisabledExtractor", func() {
	It("should always fail with ErrDisabled", func() {
		_, err := ocr.DisabledExtractor{}.ExtractUTR(context.Background(), storage.FileRef{})
		Expect(err).To(MatchError(ocr.ErrDisabled))
	})
})
