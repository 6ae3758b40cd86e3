package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/clipforge/clipforge/internal/clienterr"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/database"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/planner"
	"github.com/clipforge/clipforge/internal/upload"
)

// jobGetter is the subset of job DB operations used by handlers.
type jobGetter interface {
	GetByID(ctx context.Context, jobID string) (*models.Job, error)
}

// objectStore is the subset of blob storage used by handlers.
type objectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	PresignGet(ctx context.Context, key string, expiration time.Duration) (string, error)
}

// ProgressStream is one subscriber's ordered view of a job's progress events.
type ProgressStream interface {
	Next(ctx context.Context) (*models.ProgressUpdate, error)
	Close() error
}

// ProgressBus opens per-job progress subscriptions.
type ProgressBus interface {
	Subscribe(ctx context.Context, jobID string) (ProgressStream, error)
}

// Handler contains all HTTP handlers
type Handler struct {
	coordinator *upload.Coordinator
	jobs        jobGetter
	store       objectStore
	bus         ProgressBus
	prober      planner.DurationProber
	userRepo    *database.UserRepository
	apiKeyRepo  *database.APIKeyRepository
	cfg         *config.Config
	validate    *validator.Validate
}

// NewHandler creates a new handler. bus may be nil when progress streaming is
// not configured; userRepo/apiKeyRepo may be nil when user management is not
// exposed.
func NewHandler(
	coordinator *upload.Coordinator,
	jobs jobGetter,
	store objectStore,
	bus ProgressBus,
	prober planner.DurationProber,
	userRepo *database.UserRepository,
	apiKeyRepo *database.APIKeyRepository,
	cfg *config.Config,
) *Handler {
	return &Handler{
		coordinator: coordinator,
		jobs:        jobs,
		store:       store,
		bus:         bus,
		prober:      prober,
		userRepo:    userRepo,
		apiKeyRepo:  apiKeyRepo,
		cfg:         cfg,
		validate:    validator.New(),
	}
}

// decodeAndValidate decodes the JSON body into dst and runs struct validation.
func (h *Handler) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps a tagged pipeline error to its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	writeJSONError(w, clienterr.HTTPStatus(err), err.Error())
}
