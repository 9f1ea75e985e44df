package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/mkrecak/backstage/internal/auth"
	"github.com/mkrecak/backstage/internal/service"
	"nhooyr.io/websocket"
)

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
func ServeWS(hub *Hub, verifier auth.Verifier, typing *service.TypingService, messages *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		identity, err := verifier.Verify(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Allow any origin (dev mode)
		})
		if err != nil {
			log.Printf("ws: accept error: %v", err)
			return
		}

		session := hub.Register(identity)
		client := NewClient(hub, conn, session, typing, messages)

		// The client reuses the session id for echo suppression on REST
		// calls, so it is the first thing on the wire.
		sendSessionReady(session)

		go client.WritePump()
		go client.ReadPump()
	}
}

func sendSessionReady(session *Session) {
	payload, err := json.Marshal(SessionReadyPayload{
		SessionID: session.ID,
		Identity:  session.Identity,
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(Envelope{
		Type:      TypeSessionReady,
		Payload:   payload,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return
	}
	select {
	case session.send <- data:
	default:
	}
}
