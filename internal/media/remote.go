package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clipforge/clipforge/internal/clienterr"
)

// remoteRequest is the payload sent to the remote processor. The remote works
// on object store keys and writes its output back to the store itself.
type remoteRequest struct {
	JobID     string  `json:"job_id"`
	SourceKey string  `json:"source_key"`
	OutputKey string  `json:"output_key"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Filter    string  `json:"filter"`
}

type remoteResponse struct {
	ID        string `json:"id,omitempty"`
	Status    string `json:"status,omitempty"`
	OutputKey string `json:"output_key,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SyncRemote invokes a cloud-hosted processor that renders the segment within
// the request/response cycle.
type SyncRemote struct {
	baseURL    string
	httpClient *http.Client
}

// NewSyncRemote creates a synchronous remote processor client.
func NewSyncRemote(baseURL string) *SyncRemote {
	return &SyncRemote{
		baseURL: baseURL,
		// Long request timeout: the remote renders the whole segment before
		// responding. The worker's per-segment context still bounds it.
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

// ProcessSegment submits the segment and waits for the rendered result.
func (p *SyncRemote) ProcessSegment(ctx context.Context, req Request) (*Result, error) {
	resp, err := postJSON(ctx, p.httpClient, p.baseURL+"/process", remoteRequest{
		JobID:     req.JobID,
		SourceKey: req.SourceKey,
		OutputKey: req.OutputKey,
		StartTime: req.Start,
		EndTime:   req.End,
		Filter:    req.Filter,
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, clienterr.New(clienterr.KindProcessorTransient, "remote processor error: %s", resp.Error)
	}

	outputKey := resp.OutputKey
	if outputKey == "" {
		outputKey = req.OutputKey
	}
	return &Result{StoredKey: outputKey}, nil
}

// AsyncRemote invokes a cloud-hosted processor with submit-then-poll
// semantics.
type AsyncRemote struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
}

// NewAsyncRemote creates an asynchronous remote processor client.
func NewAsyncRemote(baseURL string) *AsyncRemote {
	return &AsyncRemote{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: 3 * time.Second,
	}
}

// ProcessSegment submits the segment, then polls the remote until it reports
// a terminal status or ctx expires.
func (p *AsyncRemote) ProcessSegment(ctx context.Context, req Request) (*Result, error) {
	submitted, err := postJSON(ctx, p.httpClient, p.baseURL+"/jobs", remoteRequest{
		JobID:     req.JobID,
		SourceKey: req.SourceKey,
		OutputKey: req.OutputKey,
		StartTime: req.Start,
		EndTime:   req.End,
		Filter:    req.Filter,
	})
	if err != nil {
		return nil, err
	}
	if submitted.ID == "" {
		return nil, clienterr.New(clienterr.KindProcessorTransient, "remote processor returned no job id")
	}

	log.Debug().
		Str("job_id", req.JobID).
		Str("remote_id", submitted.ID).
		Msg("Remote segment job submitted, polling")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, clienterr.Wrap(clienterr.KindProcessorTransient, ctx.Err(),
				"remote processor timed out for %s", req.OutputKey)
		case <-ticker.C:
		}

		status, err := getJSON(ctx, p.httpClient, fmt.Sprintf("%s/jobs/%s", p.baseURL, submitted.ID))
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "COMPLETED":
			outputKey := status.OutputKey
			if outputKey == "" {
				outputKey = req.OutputKey
			}
			return &Result{StoredKey: outputKey}, nil
		case "FAILED":
			return nil, clienterr.New(clienterr.KindProcessorTransient, "remote processor failed: %s", status.Error)
		default:
			// still IN_QUEUE or IN_PROGRESS
		}
	}
}

func postJSON(ctx context.Context, client *http.Client, url string, payload remoteRequest) (*remoteResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal remote request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build remote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return doRemote(client, req)
}

func getJSON(ctx context.Context, client *http.Client, url string) (*remoteResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build remote request: %w", err)
	}
	return doRemote(client, req)
}

func doRemote(client *http.Client, req *http.Request) (*remoteResponse, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, clienterr.Wrap(clienterr.KindProcessorTransient, err, "remote processor unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, clienterr.Wrap(clienterr.KindProcessorTransient, err, "remote processor read failed")
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, clienterr.New(clienterr.KindProcessorTransient,
			"remote processor status %d: %s", resp.StatusCode, truncate(string(respBody), 512))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("remote processor rejected request with status %d: %s",
			resp.StatusCode, truncate(string(respBody), 512))
	}

	var out remoteResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, clienterr.Wrap(clienterr.KindProcessorTransient, err, "remote processor returned malformed response")
	}
	return &out, nil
}
