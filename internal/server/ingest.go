package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/docchat/internal/corpus"
)

// ingestRequest triggers a corpus (re)index run.
type ingestRequest struct {
	ContentPath  string `json:"content_path"`
	ForceReindex bool   `json:"force_reindex,omitempty"`
	BatchSize    int    `json:"batch_size,omitempty"`
}

type ingestResponse struct {
	TaskID string `json:"task_id"`
}

// handleIngest starts an asynchronous ingestion run and returns its task id.
// Progress is pollable via GET /api/ingest/{taskID}.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}
	if req.ContentPath == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "content_path is required"})
		return
	}

	taskID := s.tasks.Start()

	go func() {
		// The run outlives the HTTP request that triggered it.
		result, err := s.pipeline.Run(context.Background(), corpus.Options{
			ContentPath:  req.ContentPath,
			ForceReindex: req.ForceReindex,
			BatchSize:    req.BatchSize,
			OnProgress: func(done, total int, _ string) {
				s.tasks.Progress(taskID, done, total)
			},
		})
		if err != nil {
			log.Printf("server: ingestion task %s failed: %v", taskID, err)
			s.tasks.Finish(taskID, err)
			return
		}
		log.Printf("server: ingestion task %s done: %d processed, %d skipped, %d failed",
			taskID, result.Processed, result.Skipped, result.Failed)
		s.tasks.Finish(taskID, nil)
	}()

	writeJSON(w, http.StatusAccepted, ingestResponse{TaskID: taskID})
}

// handleIngestStatus reports the state of one ingestion task.
func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	state, ok := s.tasks.Get(taskID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "unknown task id"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}
