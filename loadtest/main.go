// Load generator: drives pairs of identities through the full hot path
// (direct conversation, websocket room join, message send, read receipt)
// and reports delivery counts. Identities are minted locally, so point
// JWT_SECRET at the same value the server uses.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var (
	addr     = flag.String("addr", "localhost:8080", "server host:port")
	pairs    = flag.Int("pairs", 50, "conversation pairs to run")
	messages = flag.Int("messages", 20, "messages per side")
	secret   = flag.String("secret", "dev-secret-change-me", "JWT signing secret")
)

var (
	sent      atomic.Int64
	received  atomic.Int64
	errCount  atomic.Int64
	convCount atomic.Int64
)

func main() {
	flag.Parse()
	log.Printf("load: %d pairs, %d messages per side against %s", *pairs, *messages, *addr)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < *pairs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runPair()
		}()
	}
	wg.Wait()

	log.Printf("load: done in %s: conversations=%d sent=%d received=%d errors=%d",
		time.Since(start).Round(time.Millisecond),
		convCount.Load(), sent.Load(), received.Load(), errCount.Load())
}

func mintToken(identity uuid.UUID) string {
	claims := jwt.RegisteredClaims{
		Subject:   identity.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*secret))
	if err != nil {
		log.Fatal(err)
	}
	return token
}

func runPair() {
	a, b := uuid.New(), uuid.New()
	tokenA, tokenB := mintToken(a), mintToken(b)

	convID := createConversation(tokenA, b)
	if convID == uuid.Nil {
		errCount.Add(1)
		return
	}
	convCount.Add(1)

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go chatSide(&wsWg, tokenA, convID)
	go chatSide(&wsWg, tokenB, convID)
	wsWg.Wait()
}

func createConversation(token string, other uuid.UUID) uuid.UUID {
	body, _ := json.Marshal(map[string]string{"identity": other.String()})
	req, _ := http.NewRequest("POST", fmt.Sprintf("http://%s/api/v1/conversations", *addr), bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		log.Printf("load: create conversation failed: %v", err)
		return uuid.Nil
	}
	defer resp.Body.Close()

	var conv struct {
		ID uuid.UUID `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&conv)
	return conv.ID
}

type envelope struct {
	Type           string          `json:"type"`
	ConversationID *uuid.UUID      `json:"conversation_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

func chatSide(wg *sync.WaitGroup, token string, convID uuid.UUID) {
	defer wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/ws?token=%s", *addr, token), nil)
	if err != nil {
		log.Printf("load: ws dial failed: %v", err)
		errCount.Add(1)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := wsjson.Write(ctx, conn, envelope{Type: "room.join", ConversationID: &convID}); err != nil {
		errCount.Add(1)
		return
	}

	// Drain incoming events while the sender loop runs.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			var env envelope
			if err := wsjson.Read(ctx, conn, &env); err != nil {
				return
			}
			if env.Type == "message.created" {
				received.Add(1)
			}
		}
	}()

	client := &http.Client{Timeout: 10 * time.Second}
	for i := 0; i < *messages; i++ {
		body, _ := json.Marshal(map[string]string{"content": fmt.Sprintf("load message %d", i)})
		req, _ := http.NewRequest("POST",
			fmt.Sprintf("http://%s/api/v1/conversations/%s/messages", *addr, convID), bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil || resp.StatusCode != http.StatusCreated {
			errCount.Add(1)
			continue
		}
		resp.Body.Close()
		sent.Add(1)
	}

	// Give the room a moment to finish delivering before tearing down.
	select {
	case <-readerDone:
	case <-time.After(2 * time.Second):
	}
}
