package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"

	"crewquest/internal/app"
	"crewquest/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	OptionIndex int `json:"optionIndex"`
}

type startedPayload struct {
	PlayerName string      `json:"playerName"`
	Role       domain.Role `json:"role"`
	Rounds     int         `json:"rounds"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// ServeWS upgrades HTTP requests to websockets and drives one game per
// connection: start, deal on "next", score on "answer", summary after the
// final round, live leaderboard updates throughout.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerName := r.URL.Query().Get("name")
	role := domain.Role(r.URL.Query().Get("role"))
	if playerName == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	gameID := fmt.Sprintf("game-%d", h.nextID.Add(1))
	if err := h.service.StartGame(r.Context(), gameID, playerName, role); err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.service.EndGame(r.Context(), gameID)

	updates, cancel, err := h.service.SubscribeLeaderboard(r.Context())
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if !enqueue(send, writerDone, outboundMessage[any]{Type: "started", Payload: startedPayload{
		PlayerName: playerName,
		Role:       role,
		Rounds:     h.service.Rounds(),
	}}) {
		close(closeSignals)
		<-updatesDone
		close(send)
		return
	}

readLoop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "next":
			view, err := h.service.NextScenario(r.Context(), gameID)
			if err != nil {
				if !enqueue(send, writerDone, outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}) {
					break readLoop
				}
				continue
			}
			if !enqueue(send, writerDone, outboundMessage[any]{Type: "scenario", Payload: view}) {
				break readLoop
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				if !enqueue(send, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}) {
					break readLoop
				}
				continue
			}
			feedback, err := h.service.SubmitAnswer(r.Context(), gameID, payload.OptionIndex)
			if err != nil {
				if !enqueue(send, writerDone, outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}) {
					break readLoop
				}
				continue
			}
			if !enqueue(send, writerDone, outboundMessage[any]{Type: "answerResult", Payload: feedback}) {
				break readLoop
			}
			if feedback.GameOver {
				summary, err := h.service.Summary(r.Context(), gameID)
				if err == nil {
					if !enqueue(send, writerDone, outboundMessage[any]{Type: "summary", Payload: summary}) {
						break readLoop
					}
				}
			}
		default:
			if !enqueue(send, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}) {
				break readLoop
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// ServeLeaderboard returns the ranked leaderboard over plain HTTP.
func (h *WSHandler) ServeLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	lb, err := h.service.Leaderboard(r.Context())
	if err != nil {
		http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(lb)
}

// enqueue hands a message to the writer goroutine. It reports false when the
// writer has already exited, so callers never block on a dead connection.
func enqueue(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

// toErrorPayload maps service errors onto the wire. Generation failures are
// retryable: the client keeps its game and may send "next" again.
func toErrorPayload(err error) errorPayload {
	retryable := errors.Is(err, domain.ErrAPIUnavailable) ||
		errors.Is(err, domain.ErrMalformedScenario) ||
		errors.Is(err, domain.ErrMissingAPIKey) ||
		errors.Is(err, domain.ErrNoFallback)
	return errorPayload{Message: err.Error(), Retryable: retryable}
}
