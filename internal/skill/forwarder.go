// ABOUTME: Outbound HTTP delivery of activities to remote skill endpoints.
// ABOUTME: Normalizes success/failure into InvocationResult and SkillInvocationError.

package skill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/skill-gateway/internal/activity"
)

// maxResponseBody caps how much of a skill response is retained for
// diagnostics. Skills reply with small acks; anything larger is truncated.
const maxResponseBody = 64 * 1024

// TokenProvider mints bearer credentials for an outbound call. The audience
// is the target skill's app identity.
type TokenProvider interface {
	Token(fromAppID, audienceAppID string) (string, error)
}

// InvocationResult is the normalized outcome of a successful forward.
type InvocationResult struct {
	Status int
	Body   []byte
}

// SkillInvocationError reports a failed forward: any non-2xx response or a
// transport-level failure (including context cancellation). The forwarder
// never retries — retrying a non-idempotent forwarded user message risks
// duplicate skill-side effects, so retry policy belongs to the caller.
type SkillInvocationError struct {
	SkillID  string
	Endpoint string
	Status   int // 0 for transport failures
	Body     string
	Err      error
}

func (e *SkillInvocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("skill %s at %s: %v", e.SkillID, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("skill %s at %s returned status %d", e.SkillID, e.Endpoint, e.Status)
}

func (e *SkillInvocationError) Unwrap() error {
	return e.Err
}

// Forwarder performs outbound calls to skill endpoints.
type Forwarder struct {
	client *http.Client
	tokens TokenProvider
	logger *slog.Logger
}

// NewForwarder creates a forwarder using the given HTTP client and token
// provider. Pass a nil client to use a default with a 30s overall timeout;
// per-call deadlines still come from the caller's context.
func NewForwarder(client *http.Client, tokens TokenProvider, logger *slog.Logger) *Forwarder {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		client: client,
		tokens: tokens,
		logger: logger.With("component", "forwarder"),
	}
}

// Forward posts the activity to the skill's activity endpoint, addressed with
// the skill-facing conversation id and the gateway's callback URL. The inbound
// activity is not mutated; addressing fields are rewritten on a copy.
//
// Success is any status in the 200-299 range. Everything else is returned as
// a *SkillInvocationError and must not be swallowed at the call site.
func (f *Forwarder) Forward(ctx context.Context, fromAppID string, sk *Skill, callbackURL, skillConversationID string, act *activity.Activity) (*InvocationResult, error) {
	out := act.Clone()
	out.ConversationID = skillConversationID
	out.ServiceURL = callbackURL
	out.Recipient = activity.Account{ID: sk.AppID, Name: sk.ID}

	payload, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding activity: %w", err)
	}

	token, err := f.tokens.Token(fromAppID, sk.AppID)
	if err != nil {
		return nil, fmt.Errorf("minting skill token: %w", err)
	}

	url := joinURL(sk.Endpoint, "/api/messages")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	f.logger.Debug("forwarding activity",
		"skill_id", sk.ID,
		"type", out.Type,
		"skill_conversation_id", skillConversationID)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &SkillInvocationError{
			SkillID:  sk.ID,
			Endpoint: url,
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SkillInvocationError{
			SkillID:  sk.ID,
			Endpoint: url,
			Status:   resp.StatusCode,
			Body:     string(body),
		}
	}

	return &InvocationResult{
		Status: resp.StatusCode,
		Body:   body,
	}, nil
}

// Ping checks the skill's health endpoint. Used by the health surface and the
// skills CLI command, never on the per-turn path.
func (f *Forwarder) Ping(ctx context.Context, sk *Skill) error {
	url := joinURL(sk.Endpoint, "/healthz")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &SkillInvocationError{SkillID: sk.ID, Endpoint: url, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &SkillInvocationError{SkillID: sk.ID, Endpoint: url, Status: resp.StatusCode}
	}
	return nil
}

// joinURL joins a base endpoint with a path, tolerating trailing slashes.
func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + path
}
