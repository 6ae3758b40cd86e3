package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/clipforge/clipforge/internal/models"
)

// InitiateUpload handles POST /api/upload/initiate
func (h *Handler) InitiateUpload(w http.ResponseWriter, r *http.Request) {
	var req models.InitiateUploadRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.coordinator.InitiateSingle(r.Context(), &req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initiate upload")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// InitiateMultipartUpload handles POST /api/upload/initiate-multipart
func (h *Handler) InitiateMultipartUpload(w http.ResponseWriter, r *http.Request) {
	var req models.InitiateUploadRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.coordinator.InitiateMultipart(r.Context(), &req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initiate multipart upload")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// UploadPart handles POST /api/upload/part
func (h *Handler) UploadPart(w http.ResponseWriter, r *http.Request) {
	var req models.UploadPartRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.coordinator.PresignPart(r.Context(), &req)
	if err != nil {
		log.Error().Err(err).Str("upload_id", req.UploadID).Msg("Failed to presign part")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// FinalizeMultipartUpload handles POST /api/upload/finalize-multipart
func (h *Handler) FinalizeMultipartUpload(w http.ResponseWriter, r *http.Request) {
	var req models.FinalizeMultipartRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.coordinator.Finalize(r.Context(), &req)
	if err != nil {
		log.Error().Err(err).Str("upload_id", req.UploadID).Msg("Failed to finalize multipart upload")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// CompleteMultipartUpload handles POST /api/upload/complete-multipart
func (h *Handler) CompleteMultipartUpload(w http.ResponseWriter, r *http.Request) {
	h.completeUpload(w, r)
}

// CompleteUpload handles POST /api/upload/complete (single-shot path)
func (h *Handler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	h.completeUpload(w, r)
}

func (h *Handler) completeUpload(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteUploadRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.coordinator.Complete(r.Context(), &req)
	if err != nil {
		log.Error().Err(err).Str("job_id", req.JobID).Msg("Failed to complete upload")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

// AbortMultipartUpload handles POST /api/upload/abort-multipart
func (h *Handler) AbortMultipartUpload(w http.ResponseWriter, r *http.Request) {
	var req models.AbortMultipartRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.coordinator.Abort(r.Context(), &req); err != nil {
		log.Error().Err(err).Str("upload_id", req.UploadID).Msg("Failed to abort multipart upload")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Upload aborted"})
}
