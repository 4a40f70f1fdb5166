package server

import (
	"log"
	"net/http"
	"time"
)

type healthResponse struct {
	Status                     string `json:"status"`
	Uptime                     string `json:"uptime"`
	VectorIndexConnected       bool   `json:"vector_index_connected"`
	EmbeddingProviderConnected bool   `json:"embedding_provider_connected"`
	DocumentsCount             int    `json:"documents_count"`
	ChunksCount                int    `json:"chunks_count"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	}

	if s.index != nil {
		resp.VectorIndexConnected = true
		resp.ChunksCount = s.index.Count()
	}
	resp.EmbeddingProviderConnected = s.embedderOK()

	if s.docs != nil {
		docs, chunks, err := s.docs.Counts(r.Context())
		if err != nil {
			log.Printf("server: health counts: %v", err)
			resp.Status = "degraded"
		} else {
			resp.DocumentsCount = docs
			if resp.ChunksCount == 0 {
				resp.ChunksCount = chunks
			}
		}
	}

	if !resp.VectorIndexConnected || !resp.EmbeddingProviderConnected {
		resp.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, resp)
}
