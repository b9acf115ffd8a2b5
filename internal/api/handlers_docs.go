package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docchunk/internal/store"
)

// handleListDocuments lists every document the store knows about, newest
// first.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		jsonError(w, "document listing not supported by this store", http.StatusNotImplemented)
		return
	}

	docs, err := s.catalog.ListDocuments(r.Context())
	if err != nil {
		s.log.Error("list documents failed", "error", err)
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []store.DocumentMeta{}
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleDeleteDocument deletes a document and all its stored chunks.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		jsonError(w, "document deletion not supported by this store", http.StatusNotImplemented)
		return
	}

	docID := chi.URLParam(r, "docID")
	if err := store.ValidateDocumentID(docID); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	n, err := s.catalog.DeleteDocument(r.Context(), docID)
	if err != nil {
		s.log.Error("delete document failed", "doc_id", docID, "error", err)
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("document deleted", "doc_id", docID, "chunks_deleted", n)

	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":         docID,
		"chunks_deleted": n,
	})
}
