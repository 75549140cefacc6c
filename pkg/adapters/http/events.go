package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// TurnEvent is broadcast to subscribers of a session after each processed turn.
type TurnEvent struct {
	SessionID          string `json:"session_id"`
	Stage              string `json:"current_stage"`
	StageChanged       bool   `json:"stage_changed"`
	CrisisDetected     bool   `json:"crisis_detected"`
	CrisisRaised       bool   `json:"crisis_raised"`
	PHQ9Score          *int   `json:"phq9_score,omitempty"`
	AssessmentCategory string `json:"assessment_category,omitempty"`
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- TurnEvent]struct{}
	logger      *slog.Logger
}

// NewStreamManager returns an empty StreamManager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- TurnEvent]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener for sessionID. The returned func unsubscribes.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan TurnEvent, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan TurnEvent, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- TurnEvent]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Broadcast delivers ev to every subscriber of its session. Slow clients lose events.
func (sm *StreamManager) Broadcast(ev TurnEvent) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping event", "session_id", ev.SessionID)
		}
	}
}

// Subscribers returns the number of listeners on sessionID.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

// SubscribeEvents handles GET /events.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request, params SubscribeEventsParams) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	if params.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	var watch []string
	if params.Watch != nil {
		for _, f := range strings.Split(*params.Watch, ",") {
			if f = strings.TrimSpace(f); f != "" {
				watch = append(watch, f)
			}
		}
	}

	ch, cancel := s.Streams.Subscribe(params.SessionID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE: Subscribed", "session_id", params.SessionID)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "session_id", params.SessionID)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if !matches(ev, watch) {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("SSE: Encode failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: turn\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func matches(ev TurnEvent, watch []string) bool {
	if len(watch) == 0 {
		return true
	}
	for _, field := range watch {
		switch field {
		case "stage":
			if ev.StageChanged {
				return true
			}
		case "crisis":
			if ev.CrisisRaised {
				return true
			}
		case "assessment":
			if ev.PHQ9Score != nil {
				return true
			}
		}
	}
	return false
}
