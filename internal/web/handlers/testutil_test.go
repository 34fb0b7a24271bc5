package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/averma/kyc-verify/internal/customer"
	"github.com/averma/kyc-verify/internal/extract"
	"github.com/averma/kyc-verify/internal/onboarding"
	"github.com/averma/kyc-verify/internal/store/memory"
)

// stubExtractor returns canned extraction results.
type stubExtractor struct {
	embedding []float32
	imageErr  error

	capture  *extract.LivenessCapture
	videoErr error
}

func (s *stubExtractor) ExtractImage(ctx context.Context, imageData []byte) ([]float32, error) {
	if s.imageErr != nil {
		return nil, s.imageErr
	}
	return s.embedding, nil
}

func (s *stubExtractor) ExtractVideo(ctx context.Context, videoData []byte) (*extract.LivenessCapture, error) {
	if s.videoErr != nil {
		return nil, s.videoErr
	}
	return s.capture, nil
}

// testEnv wires handlers onto a chi router over an in-memory store.
type testEnv struct {
	router    *chi.Mux
	store     *memory.Store
	extractor *stubExtractor
	service   *onboarding.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := memory.New()
	ex := &stubExtractor{}
	svc := onboarding.NewService(st, ex, 0.35, 0.6, nil)

	customersHandler := NewCustomersHandler(svc)
	documentsHandler := NewDocumentsHandler(svc, t.TempDir())
	livenessHandler := NewLivenessHandler(svc)

	router := chi.NewRouter()
	router.Post("/customers", customersHandler.Create)
	router.Get("/customers", customersHandler.List)
	router.Get("/customers/{id}", customersHandler.Get)
	router.Post("/customers/{id}/blacklist", customersHandler.Blacklist)
	router.Post("/customers/{id}/documents/primary", documentsHandler.SubmitPrimary)
	router.Post("/customers/{id}/documents/secondary", documentsHandler.SubmitSecondary)
	router.Post("/customers/{id}/liveness", livenessHandler.Submit)
	router.Post("/verify", livenessHandler.VerifyExisting)

	return &testEnv{router: router, store: st, extractor: ex, service: svc}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	e.router.ServeHTTP(recorder, req)
	return recorder
}

// createCustomer seeds a record directly through the service.
func (e *testEnv) createCustomer(t *testing.T, name, nationalID string) *customer.Customer {
	t.Helper()
	c, err := e.service.SubmitIdentity(context.Background(), onboarding.IdentityInput{
		Name:       name,
		DOB:        time.Date(1990, 5, 4, 0, 0, 0, 0, time.UTC),
		NationalID: nationalID,
	})
	if err != nil {
		t.Fatalf("failed to seed customer: %v", err)
	}
	return c
}

// testJPEG returns a small valid JPEG.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.Gray{Y: uint8(x * 8)})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode JPEG: %v", err)
	}
	return buf.Bytes()
}

// testWebM returns bytes with a WebM EBML header.
func testWebM() []byte {
	return append([]byte{0x1A, 0x45, 0xDF, 0xA3}, make([]byte, 32)...)
}

// multipartRequest builds a POST with the data in the "file" form field.
func multipartRequest(t *testing.T, path string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "upload.bin")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// parseJSONResponse parses the recorded response body into target
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}
