package handlers

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/clipforge/clipforge/internal/clienterr"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/planner"
)

// GetJobStatus handles GET /api/jobs/{job_id}/status. Output URLs are
// regenerated from the stored keys at request time.
func (h *Handler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["job_id"]

	job, err := h.jobs.GetByID(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := &models.JobStatusResponse{
		JobID:         job.ID,
		Status:        job.Status,
		Progress:      &job.Progress,
		ErrorMessage:  job.ErrorMessage,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
		VideoDuration: job.VideoDuration,
	}

	for _, key := range job.OutputKeys {
		url, err := h.store.PresignGet(r.Context(), key, h.cfg.OutputURLTTL)
		if err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Str("key", key).Msg("Failed to presign output")
			continue
		}
		resp.OutputURLs = append(resp.OutputURLs, url)
	}

	writeJSON(w, http.StatusOK, resp)
}

// AnalyzeDuration handles POST /api/video/analyze-duration: probes the blob
// and previews the segmentation the cutting options would produce.
func (h *Handler) AnalyzeDuration(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeDurationRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	exists, err := h.store.Exists(r.Context(), req.S3Key)
	if err != nil {
		log.Error().Err(err).Str("s3_key", req.S3Key).Msg("Failed to check source blob")
		writeJSONError(w, http.StatusInternalServerError, "failed to check source blob")
		return
	}
	if !exists {
		writeError(w, clienterr.New(clienterr.KindSourceMissing, "source blob %s not found", req.S3Key))
		return
	}

	url, err := h.store.PresignGet(r.Context(), req.S3Key, h.cfg.PresignTTL)
	if err != nil {
		log.Error().Err(err).Str("s3_key", req.S3Key).Msg("Failed to presign source for probe")
		writeJSONError(w, http.StatusInternalServerError, "failed to presign source")
		return
	}

	duration, err := h.prober.Duration(r.Context(), url)
	if err != nil {
		writeError(w, err)
		return
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	numSegments, windows, err := planner.CalculateSegments(duration, req.CuttingOptions, rng)
	if err != nil {
		writeError(w, err)
		return
	}

	segmentDurations := make([]float64, numSegments)
	for i, window := range windows {
		segmentDurations[i] = window.Duration()
	}

	writeJSON(w, http.StatusOK, &models.AnalyzeDurationResponse{
		TotalDuration:    duration,
		NumSegments:      numSegments,
		SegmentDurations: segmentDurations,
	})
}
