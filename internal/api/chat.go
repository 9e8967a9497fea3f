package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/knowsee/knowsee/internal/events"
	"github.com/knowsee/knowsee/internal/message"
	"github.com/knowsee/knowsee/internal/render"
	"github.com/knowsee/knowsee/internal/store"
)

const persistTimeout = 5 * time.Second

// chat holds the assistant turns being assembled for one chat. mu also
// serialises publishing so subscribers see snapshots in apply order.
type chat struct {
	mu         sync.Mutex
	assemblers map[string]*message.Assembler
	order      []string
	// removed is set once the chat has left Server.chats.
	removed bool
}

func (s *Server) chatFor(chatID string) *chat {
	s.chatsMu.Lock()
	defer s.chatsMu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		c = &chat{assemblers: map[string]*message.Assembler{}}
		s.chats[chatID] = c
	}
	return c
}

// lookupChat does not create the chat.
func (s *Server) lookupChat(chatID string) (*chat, bool) {
	s.chatsMu.Lock()
	defer s.chatsMu.Unlock()
	c, ok := s.chats[chatID]
	return c, ok
}

// lockChat returns the chat's current entry, locked. An entry removed while
// the caller waited for its lock is skipped.
func (s *Server) lockChat(chatID string) *chat {
	for {
		c := s.chatFor(chatID)
		c.mu.Lock()
		if !c.removed {
			return c
		}
		c.mu.Unlock()
	}
}

// evict drops a persisted message from memory, and the chat itself once it
// holds nothing live. c.mu must be held.
func (s *Server) evict(chatID string, c *chat, messageID string) {
	delete(c.assemblers, messageID)
	c.order = slices.DeleteFunc(c.order, func(id string) bool { return id == messageID })
	if len(c.assemblers) > 0 {
		return
	}
	c.removed = true
	s.chatsMu.Lock()
	if s.chats[chatID] == c {
		delete(s.chats, chatID)
	}
	s.chatsMu.Unlock()
	s.broker.Forget(chatID)
}

func (c *chat) assembler(messageID string) *message.Assembler {
	a, ok := c.assemblers[messageID]
	if !ok {
		a = message.NewAssembler(messageID)
		c.assemblers[messageID] = a
		c.order = append(c.order, messageID)
	}
	return a
}

// apply feeds one stream event into the message's assembler, publishes the
// rendered snapshot and, once the turn finishes, persists it. A persisted
// turn is served from the store from then on.
func (s *Server) apply(ctx context.Context, chatID, messageID string, event message.Event) (render.MessageView, error) {
	c := s.lockChat(chatID)
	defer c.mu.Unlock()

	a := c.assembler(messageID)
	if err := a.Apply(event); err != nil {
		return render.MessageView{}, err
	}
	snapshot := a.Snapshot()
	streaming := a.Streaming()
	view := s.registry.RenderMessage(snapshot, streaming)

	eventType := events.TypeSnapshot
	if !streaming {
		eventType = events.TypeDone
	}
	part, _ := json.Marshal(event)
	s.broker.Publish(events.ChatEvent{
		ChatID:    chatID,
		MessageID: messageID,
		Type:      eventType,
		Part:      part,
		Snapshot:  view,
	})
	if !streaming && s.persist(ctx, chatID, snapshot) {
		s.evict(chatID, c, messageID)
	}
	return view, nil
}

// persist reports whether the message reached the store. Without a store
// finished turns stay in memory.
func (s *Server) persist(ctx context.Context, chatID string, msg message.Message) bool {
	if s.messages == nil {
		return false
	}
	parts, err := json.Marshal(msg.Parts)
	if err != nil {
		s.logger.Error("encode message parts", "chat_id", chatID, "message_id", msg.ID, "error", err)
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	err = s.messages.SaveMessage(ctx, store.Message{
		ID:        msg.ID,
		ChatID:    chatID,
		Role:      string(msg.Role),
		Parts:     parts,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("save message", "chat_id", chatID, "message_id", msg.ID, "error", err)
		return false
	}
	return true
}

// liveViews renders every message of the chat still held in memory, in
// arrival order.
func (s *Server) liveViews(chatID string) []render.MessageView {
	c, ok := s.lookupChat(chatID)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	views := make([]render.MessageView, 0, len(c.order))
	for _, id := range c.order {
		a := c.assemblers[id]
		views = append(views, s.registry.RenderMessage(a.Snapshot(), a.Streaming()))
	}
	return views
}

func (s *Server) liveView(chatID, messageID string) (render.MessageView, bool) {
	c, ok := s.lookupChat(chatID)
	if !ok {
		return render.MessageView{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.assemblers[messageID]
	if !ok {
		return render.MessageView{}, false
	}
	return s.registry.RenderMessage(a.Snapshot(), a.Streaming()), true
}

func (s *Server) storedViews(ctx context.Context, chatID string) ([]render.MessageView, error) {
	if s.messages == nil {
		return nil, nil
	}
	stored, err := s.messages.ListMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	views := make([]render.MessageView, 0, len(stored))
	for _, row := range stored {
		msg := message.Message{ID: row.ID, Role: message.Role(row.Role)}
		if err := json.Unmarshal(row.Parts, &msg.Parts); err != nil {
			return nil, fmt.Errorf("decode parts of message %s: %w", row.ID, err)
		}
		views = append(views, s.registry.RenderMessage(msg, false))
	}
	return views, nil
}

type ingestEventRequest struct {
	MessageID string        `json:"messageId"`
	Event     message.Event `json:"event"`
}

func (s *Server) ingestEvent(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	var req ingestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.MessageID = strings.TrimSpace(req.MessageID)
	if req.MessageID == "" {
		writeError(w, http.StatusBadRequest, "messageId is required")
		return
	}
	if strings.TrimSpace(req.Event.Type) == "" {
		writeError(w, http.StatusBadRequest, "event type is required")
		return
	}
	view, err := s.apply(r.Context(), chatID, req.MessageID, req.Event)
	if err != nil {
		writeError(w, applyStatus(err), err.Error())
		return
	}
	writeJSONStatus(w, view, http.StatusAccepted)
}

// applyStatus maps assembler errors to HTTP statuses. A regression means the
// event arrived out of order.
func applyStatus(err error) int {
	var regression message.ErrStateRegression
	if errors.As(err, &regression) {
		return http.StatusConflict
	}
	return http.StatusUnprocessableEntity
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	messageID := chi.URLParam(r, "messageID")
	if view, ok := s.liveView(chatID, messageID); ok {
		writeJSON(w, view)
		return
	}
	stored, err := s.storedViews(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, view := range stored {
		if view.ID == messageID {
			writeJSON(w, view)
			return
		}
	}
	writeError(w, http.StatusNotFound, "message not found")
}

// listMessages returns persisted messages followed by live ones that have
// not been persisted yet.
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	// Live first: a turn evicted in between is then already in the store.
	live := s.liveViews(chatID)
	views, err := s.storedViews(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	seen := make(map[string]struct{}, len(views))
	for _, view := range views {
		seen[view.ID] = struct{}{}
	}
	for _, view := range live {
		if _, ok := seen[view.ID]; !ok {
			views = append(views, view)
		}
	}
	writeJSON(w, map[string]any{"messages": views})
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	// Subscribe before replaying so nothing published in between is lost.
	eventsChan := s.broker.Subscribe(ctx, chatID)
	for _, view := range s.liveViews(chatID) {
		sendSSE(w, events.ChatEvent{
			ChatID:    chatID,
			MessageID: view.ID,
			Type:      events.TypeSnapshot,
			Ts:        s.now().UTC().Format(time.RFC3339Nano),
			Snapshot:  view,
		})
	}
	flusher.Flush()

	heartbeat := time.NewTicker(s.keepAlive)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventsChan:
			if !ok {
				return
			}
			sendSSE(w, event)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, event events.ChatEvent) {
	payload, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %s:%d\n", event.ChatID, event.Seq)
	fmt.Fprintf(w, "event: %s\n", event.Type)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
