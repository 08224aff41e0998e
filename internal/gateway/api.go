// ABOUTME: HTTP handlers for inbound user activities, skill callbacks, and the SSE event stream.
// ABOUTME: The skill callback path is bearer-JWT verified and resolved through the id mapper.

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/2389/skill-gateway/internal/activity"
	"github.com/2389/skill-gateway/internal/conversation"
)

// maxActivityBody caps inbound activity payloads.
const maxActivityBody = 1 << 20 // 1 MiB

// AcceptedResponse is the JSON response for an accepted activity.
type AcceptedResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

// handleInboundActivity handles POST /api/messages: one user turn.
//
// Responsibilities:
//  1. Decode and validate the activity
//  2. Drop redelivered activities (same id within the dedupe TTL)
//  3. Serialize turns within the conversation
//  4. Run the turn router to completion
func (g *Gateway) handleInboundActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	act, err := parseActivity(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if act.ID != "" && g.dedupe.CheckAndMark(act.ID) {
		g.logger.Debug("dropping duplicate activity", "activity_id", act.ID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(AcceptedResponse{Status: "duplicate", ID: act.ID})
		return
	}

	mu := g.lockConversation(act.ConversationID)
	mu.Lock()
	err = g.turnRouter.HandleTurn(r.Context(), act)
	mu.Unlock()

	if err != nil {
		// Recovery already messaged the user; the raw error stays server-side.
		g.logger.Error("turn processing failed", "activity_id", act.ID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "turn processing failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(AcceptedResponse{Status: "accepted", ID: act.ID})
}

// handleSkillCallback handles POST /api/skills/v3/conversations/{skillConversationId}/activities.
// Skills address the gateway with the opaque conversation id they were given;
// the mapper recovers which root conversation it belongs to. An unknown id is
// a hard rejection — it is never mapped to some other conversation.
func (g *Gateway) handleSkillCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	skillConversationID, ok := parseCallbackPath(r.URL.Path)
	if !ok {
		g.sendJSONError(w, http.StatusNotFound, "not found")
		return
	}

	if _, err := g.verifier.Verify(bearerToken(r), g.config.Auth.AppID); err != nil {
		g.logger.Warn("rejected skill callback", "error", err)
		g.sendJSONError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	ref, err := g.mapper.Resolve(r.Context(), skillConversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrUnknownMapping) {
			g.sendJSONError(w, http.StatusNotFound, "unknown conversation")
			return
		}
		g.sendJSONError(w, http.StatusInternalServerError, "mapping lookup failed")
		return
	}

	act, err := parseActivity(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Readdress onto the root conversation before anything touches it.
	act.ConversationID = ref.ConversationID
	act.ChannelID = ref.ChannelID
	act.From = activity.Account{ID: ref.SkillID}

	if act.IsTermination() {
		// Termination flows through the router like any inbound turn so the
		// delegation record is cleared and the user gets the summary.
		mu := g.lockConversation(ref.ConversationID)
		mu.Lock()
		err = g.turnRouter.HandleTurn(r.Context(), act)
		mu.Unlock()

		if err != nil {
			g.sendJSONError(w, http.StatusInternalServerError, "turn processing failed")
			return
		}
	} else {
		// Skill replies pass straight to the user's event stream.
		g.broadcaster.Publish(ref.ConversationID, act)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(AcceptedResponse{Status: "accepted", ID: act.ID})
}

// handleConversationEvents handles GET /api/conversations/{id}/events,
// streaming the conversation's outbound activities as SSE.
func (g *Gateway) handleConversationEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	conversationID, ok := parseEventsPath(r.URL.Path)
	if !ok {
		g.sendJSONError(w, http.StatusNotFound, "not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, subID := g.broadcaster.Subscribe(r.Context(), conversationID)
	defer g.broadcaster.Unsubscribe(conversationID, subID)

	for {
		select {
		case act, open := <-events:
			if !open {
				return
			}
			g.writeSSEEvent(w, act.Type, act)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSEEvent writes one Server-Sent Event.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// parseActivity decodes and validates an inbound activity.
func parseActivity(r io.Reader) (*activity.Activity, error) {
	var act activity.Activity
	if err := json.NewDecoder(io.LimitReader(r, maxActivityBody)).Decode(&act); err != nil {
		return nil, errors.New("invalid JSON body")
	}

	if act.Type == "" {
		return nil, errors.New("type is required")
	}
	if act.ConversationID == "" {
		return nil, errors.New("conversation_id is required")
	}

	return &act, nil
}

// parseCallbackPath extracts the skill conversation id from
// /api/skills/v3/conversations/{id}/activities.
func parseCallbackPath(path string) (string, bool) {
	const prefix = "/api/skills/v3/conversations/"
	const suffix = "/activities"
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// parseEventsPath extracts the conversation id from
// /api/conversations/{id}/events.
func parseEventsPath(path string) (string, bool) {
	const prefix = "/api/conversations/"
	const suffix = "/events"
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// bearerToken extracts the bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}
