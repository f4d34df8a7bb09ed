package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	db "github.com/advisorhq/advisor-backend/internal/core/database"
	"github.com/advisorhq/advisor-backend/internal/models"
	"github.com/advisorhq/advisor-backend/internal/services"
)

type fakeStorage struct {
	files map[string][]byte
}

func (f *fakeStorage) UploadFile(_ context.Context, _, key string, data []byte, _ string) (string, error) {
	f.files[key] = data
	return "https://fake/" + key, nil
}

func (f *fakeStorage) DeleteFile(_ context.Context, _, key string) error {
	delete(f.files, key)
	return nil
}

func (f *fakeStorage) GetFile(_ context.Context, _, key string) ([]byte, error) {
	data, ok := f.files[key]
	if !ok {
		return nil, fmt.Errorf("no such key: %s", key)
	}
	return data, nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// fakeIngestor records enqueued document IDs without running the pipeline.
type fakeIngestor struct {
	enqueued []string
}

func (f *fakeIngestor) Start(context.Context, int)                  {}
func (f *fakeIngestor) Enqueue(docID string)                        { f.enqueued = append(f.enqueued, docID) }
func (f *fakeIngestor) ProcessOne(context.Context, string) error    { return nil }

func newHandlerFixture() (*DocumentHandler, *db.MemoryClient, *fakeIngestor) {
	dbc := db.NewMemoryClient()
	svc := services.NewDocumentService(dbc, &fakeStorage{files: map[string][]byte{}}, fixedEmbedder{}, "bucket")
	ing := &fakeIngestor{}
	return NewDocumentHandler(svc, ing, 10<<20), dbc, ing
}

func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), "user_id", userID))
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUploadWithoutUserIs401(t *testing.T) {
	h, _, _ := newHandlerFixture()

	body, ct := multipartBody(t, "file", "a.txt", []byte("hi"))
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp["error"] == "" {
		t.Fatalf("error body malformed: %s", rec.Body.String())
	}
}

func TestUploadWithoutFileIs400(t *testing.T) {
	h, _, _ := newHandlerFixture()

	body, ct := multipartBody(t, "wrong_field", "a.txt", []byte("hi"))
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/documents/upload", body), "user-1")
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadCreatesPendingAndEnqueues(t *testing.T) {
	h, dbc, ing := newHandlerFixture()

	body, ct := multipartBody(t, "file", "report.txt", []byte("quarterly numbers"))
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/documents/upload", body), "user-1")
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var doc models.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.Status != models.StatusPending {
		t.Fatalf("status = %s, want pending", doc.Status)
	}
	if len(ing.enqueued) != 1 || ing.enqueued[0] != doc.ID {
		t.Fatalf("document not enqueued: %v", ing.enqueued)
	}
	if stored, _ := dbc.GetDocumentByID(context.Background(), doc.ID); stored == nil {
		t.Fatal("record not persisted")
	}
}

func TestUploadTooLargeIs413(t *testing.T) {
	dbc := db.NewMemoryClient()
	svc := services.NewDocumentService(dbc, &fakeStorage{files: map[string][]byte{}}, fixedEmbedder{}, "bucket")
	h := NewDocumentHandler(svc, &fakeIngestor{}, 16) // tiny cap for the test

	body, ct := multipartBody(t, "file", "big.txt", bytes.Repeat([]byte("x"), 64))
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/documents/upload", body), "user-1")
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge && rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 413 (or 400 from MaxBytesReader)", rec.Code)
	}
}

func analyzeRequest(docID, userID string) (*httptest.ResponseRecorder, *http.Request) {
	req := httptest.NewRequest(http.MethodPost, "/api/documents/"+docID+"/analyze", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", docID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	if userID != "" {
		req = withUser(req, userID)
	}
	return httptest.NewRecorder(), req
}

func TestAnalyzeUnknownDocumentIs404(t *testing.T) {
	h, _, _ := newHandlerFixture()

	rec, req := analyzeRequest("missing", "user-1")
	h.Analyze(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAnalyzeForeignDocumentIs404(t *testing.T) {
	h, dbc, _ := newHandlerFixture()
	_ = dbc.CreateDocument(context.Background(), &models.Document{ID: "doc-1", OwnerID: "someone-else", Status: models.StatusPending})

	rec, req := analyzeRequest("doc-1", "user-1")
	h.Analyze(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (ownership must not leak)", rec.Code)
	}
}

func TestAnalyzeProcessingDocumentIs409(t *testing.T) {
	h, dbc, ing := newHandlerFixture()
	_ = dbc.CreateDocument(context.Background(), &models.Document{ID: "doc-1", OwnerID: "user-1", Status: models.StatusProcessing})

	rec, req := analyzeRequest("doc-1", "user-1")
	h.Analyze(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if len(ing.enqueued) != 0 {
		t.Fatal("processing document must not be re-enqueued")
	}
}

func TestAnalyzeReadyDocumentIsNoOp(t *testing.T) {
	h, dbc, ing := newHandlerFixture()
	_ = dbc.CreateDocument(context.Background(), &models.Document{ID: "doc-1", OwnerID: "user-1", Status: models.StatusReady})

	rec, req := analyzeRequest("doc-1", "user-1")
	h.Analyze(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(ing.enqueued) != 0 {
		t.Fatal("ready document must not be re-enqueued")
	}
}

func TestAnalyzeFailedDocumentIsRequeued(t *testing.T) {
	h, dbc, ing := newHandlerFixture()
	_ = dbc.CreateDocument(context.Background(), &models.Document{ID: "doc-1", OwnerID: "user-1", Status: models.StatusFailed})

	rec, req := analyzeRequest("doc-1", "user-1")
	h.Analyze(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(ing.enqueued) != 1 || ing.enqueued[0] != "doc-1" {
		t.Fatalf("failed document not re-enqueued: %v", ing.enqueued)
	}
}
