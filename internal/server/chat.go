package server

import (
	"encoding/json"
	"log"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/ziadkadry99/docchat/internal/admission"
	"github.com/ziadkadry99/docchat/internal/chat"
)

// chatRequest is the JSON body of POST /api/chat.
type chatRequest struct {
	Question            string `json:"question"`
	SessionID           string `json:"session_id,omitempty"`
	APIKey              string `json:"api_key,omitempty"`
	Chapter             string `json:"chapter,omitempty"`
	ContextWindowTokens int    `json:"context_window_tokens,omitempty"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"` // seconds
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: write response: %v", err)
	}
}

// identify extracts who is calling: the API key when presented (body field,
// X-API-Key header, or bearer token), otherwise the client IP.
func identify(r *http.Request, bodyKey string) admission.Identity {
	key := bodyKey
	if key == "" {
		key = r.Header.Get("X-API-Key")
	}
	if key == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			key = strings.TrimPrefix(auth, "Bearer ")
		}
	}

	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return admission.Identity{IP: ip, APIKey: key}
}

// admit runs the rate-limit check and, on denial, writes the 429 itself.
// Returns false when the request must not proceed.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, bodyKey string) bool {
	decision := s.admission.Admit(identify(r, bodyKey))
	if decision.Allowed {
		return true
	}
	retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error:      "rate_limited",
		Message:    "too many requests, slow down",
		RetryAfter: retryAfter,
	})
	return false
}

// handleChat answers one question as a server-sent event stream: one start
// event, incremental chunk events, citation events, then a terminal done or
// error event. The admission check happens before any downstream work.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "question is required"})
		return
	}
	if !s.admit(w, r, req.APIKey) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming_unsupported", Message: "response writer does not support streaming"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := s.engine.Chat(r.Context(), chat.ChatRequest{
		Question:            req.Question,
		SessionID:           req.SessionID,
		Chapter:             req.Chapter,
		ContextWindowTokens: req.ContextWindowTokens,
	})

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Printf("server: marshal event: %v", err)
			return
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return
		}
		if _, err := w.Write(payload); err != nil {
			return
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}
