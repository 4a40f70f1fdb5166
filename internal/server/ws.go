package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/docchat/internal/chat"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket serves the same event stream as POST /api/chat over a
// WebSocket: the client sends one JSON chatRequest per question and receives
// the event sequence as individual text messages.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.wsSendError(conn, "bad_request", "invalid message format")
			continue
		}
		if strings.TrimSpace(req.Question) == "" {
			s.wsSendError(conn, "bad_request", "question is required")
			continue
		}

		decision := s.admission.Admit(identify(r, req.APIKey))
		if !decision.Allowed {
			s.wsSendError(conn, "rate_limited", "too many requests, slow down")
			continue
		}

		events := s.engine.Chat(r.Context(), chat.ChatRequest{
			Question:            req.Question,
			SessionID:           req.SessionID,
			Chapter:             req.Chapter,
			ContextWindowTokens: req.ContextWindowTokens,
		})
		for ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("server: websocket write: %v", err)
				return
			}
		}
	}
}

func (s *Server) wsSendError(conn *websocket.Conn, kind, msg string) {
	ev := chat.Event{Type: chat.EventError, Kind: kind, Message: msg}
	if err := conn.WriteJSON(ev); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}
