package handlers

import (
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/advisorhq/advisor-backend/internal/core/ingest"
	"github.com/advisorhq/advisor-backend/internal/models"
	"github.com/advisorhq/advisor-backend/internal/services"
)

type DocumentHandler struct {
	docs           *services.DocumentService
	ingestor       ingest.Ingestor
	maxUploadBytes int64
}

func NewDocumentHandler(docs *services.DocumentService, ingestor ingest.Ingestor, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{docs: docs, ingestor: ingestor, maxUploadBytes: maxUploadBytes}
}

// Upload accepts a multipart file, stores it, and queues it for processing.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+4096)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	doc, err := h.docs.UploadAndCreate(r.Context(), userID, header.Filename, contentType, data)
	if err != nil {
		log.Printf("[documents] upload failed for user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	h.ingestor.Enqueue(doc.ID)
	writeJSON(w, http.StatusCreated, doc)
}

// List returns the caller's documents, newest first.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	docs, err := h.docs.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list documents")
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "total": len(docs)})
}

// Get returns a single document owned by the caller.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doc, err := h.ownedDocument(r, userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Analyze re-queues a pending or failed document for the pipeline. Documents
// already being processed are rejected; ready documents are a no-op.
func (h *DocumentHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doc, err := h.ownedDocument(r, userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	if doc.Status == models.StatusProcessing {
		writeError(w, http.StatusConflict, "analysis already in progress")
		return
	}
	if doc.Status == models.StatusReady {
		writeJSON(w, http.StatusOK, map[string]string{"id": doc.ID, "status": string(models.StatusReady)})
		return
	}

	h.ingestor.Enqueue(doc.ID)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": doc.ID, "status": string(models.StatusPending)})
}

// Delete removes the document, its chunks, and its stored blob.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doc, err := h.ownedDocument(r, userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	if err := h.docs.Delete(r.Context(), doc); err != nil {
		log.Printf("[documents] delete %s: %v", doc.ID, err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) ownedDocument(r *http.Request, userID string) (*models.Document, error) {
	id := chi.URLParam(r, "id")
	doc, err := h.docs.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.OwnerID != userID {
		// Ownership mismatch reads the same as absence to the caller.
		return nil, errNotOwner
	}
	return doc, nil
}
