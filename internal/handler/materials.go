package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/examforge/examforge/internal/model"
)

// handleUploadMaterial accepts a study-material file and acknowledges it.
// Vectorization is the external pipeline's job; only the metadata is
// registered here. Re-uploading identical content returns the existing
// record instead of a duplicate.
func (h *Handler) handleUploadMaterial(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)

	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "err.upload", err)
		return
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "err.upload", err)
		return
	}
	hash := hex.EncodeToString(hasher.Sum(nil))

	existing, err := h.store.GetMaterialByHash(hash)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "err.upload", err)
		return
	}
	if existing != nil {
		if err := h.store.Touch(existing.ID); err != nil {
			writeError(w, r, http.StatusInternalServerError, "err.upload", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"material": existing, "duplicate": true})
		return
	}

	m := model.Material{
		ID:         uuid.NewString(),
		Name:       hdr.Filename,
		Size:       size,
		SHA256:     hash,
		UploadedAt: time.Now(),
	}
	if err := h.store.InsertMaterial(m); err != nil {
		writeError(w, r, http.StatusInternalServerError, "err.upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"material": m})
}

func (h *Handler) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.store.ListMaterials()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "err.bad_request", err)
		return
	}
	if materials == nil {
		materials = []model.Material{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"materials": materials})
}
