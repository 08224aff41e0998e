// ABOUTME: Per-turn routing core: decides local handling vs delegation to a remote skill.
// ABOUTME: Drives the Idle/Delegating state machine and the crash-safe error recovery path.

package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/skill-gateway/internal/activity"
	"github.com/2389/skill-gateway/internal/conversation"
	"github.com/2389/skill-gateway/internal/skill"
)

// recoveryTimeout bounds the detached context used by error recovery. The
// turn's own context may already be cancelled when recovery runs, so recovery
// never reuses it.
const recoveryTimeout = 10 * time.Second

// Responder delivers activities back to the conversation's user. Owned by
// the transport layer; the router only sends through it.
type Responder interface {
	SendActivity(ctx context.Context, act *activity.Activity) error
}

// Forwarder is what the router needs from the skill layer.
type Forwarder interface {
	Forward(ctx context.Context, fromAppID string, sk *skill.Skill, callbackURL, skillConversationID string, act *activity.Activity) (*skill.InvocationResult, error)
}

// ActivationPolicy decides whether an idle turn starts a delegation, and
// which skill it goes to. Selection is pluggable; the trigger-word policy
// below is one configuration of it, not an architectural constraint.
type ActivationPolicy interface {
	SelectSkill(act *activity.Activity) (skillID string, ok bool)
	Hint() string
}

// TriggerWordPolicy activates a fixed skill when the message text contains
// the trigger word.
type TriggerWordPolicy struct {
	Trigger string
	SkillID string
}

// SelectSkill reports a match when the message text contains the trigger.
func (p *TriggerWordPolicy) SelectSkill(act *activity.Activity) (string, bool) {
	if act.Type != activity.TypeMessage {
		return "", false
	}
	if p.Trigger == "" || !strings.Contains(strings.ToLower(act.Text), strings.ToLower(p.Trigger)) {
		return "", false
	}
	return p.SkillID, true
}

// Hint returns the user-facing instruction for triggering the policy.
func (p *TriggerWordPolicy) Hint() string {
	return fmt.Sprintf("Say %q to hand the conversation to a skill.", p.Trigger)
}

// TurnRouter orchestrates one turn at a time per conversation. The transport
// is responsible for serializing turns within a conversation; turns for
// different conversations run fully in parallel.
type TurnRouter struct {
	appID     string
	states    *conversation.Manager
	mapper    *conversation.Mapper
	registry  *skill.Registry
	forwarder Forwarder
	responder Responder
	policy    ActivationPolicy
	logger    *slog.Logger
}

// New creates a TurnRouter. All collaborators are required except logger.
func New(appID string, states *conversation.Manager, mapper *conversation.Mapper, registry *skill.Registry, forwarder Forwarder, responder Responder, policy ActivationPolicy, logger *slog.Logger) *TurnRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnRouter{
		appID:     appID,
		states:    states,
		mapper:    mapper,
		registry:  registry,
		forwarder: forwarder,
		responder: responder,
		policy:    policy,
		logger:    logger.With("component", "router"),
	}
}

// HandleTurn processes one inbound activity to completion. Any error escaping
// turn processing triggers recovery — the sole place user-visible failure
// messaging and skill-side termination notices happen — and is then returned
// so the transport can report the failure.
func (r *TurnRouter) HandleTurn(ctx context.Context, act *activity.Activity) error {
	if err := r.processTurn(ctx, act); err != nil {
		r.recover(act, err)
		return fmt.Errorf("processing turn for conversation %s: %w", act.ConversationID, err)
	}
	return nil
}

func (r *TurnRouter) processTurn(ctx context.Context, act *activity.Activity) error {
	st, err := r.states.Load(ctx, act.ConversationID)
	if err != nil {
		return err
	}

	if st.Delegating() {
		if act.IsTermination() {
			return r.endDelegation(ctx, st, act)
		}
		return r.forwardToSkill(ctx, st, act)
	}

	return r.handleLocal(ctx, st, act)
}

// forwardToSkill passes the activity verbatim to the active skill. While
// delegating the router inspects nothing: delegation is total pass-through.
func (r *TurnRouter) forwardToSkill(ctx context.Context, st *conversation.State, act *activity.Activity) error {
	sk, err := r.registry.Get(st.ActiveSkill())
	if err != nil {
		return err
	}

	// Persist pending state before forwarding: the skill may call back into
	// this conversation before the outbound call returns.
	if err := r.states.SaveChanges(ctx, st, true); err != nil {
		return err
	}

	_, err = r.forwarder.Forward(ctx, r.appID, sk, r.registry.HostEndpoint(), st.SkillConversationID(), act)
	return err
}

// endDelegation handles an endOfConversation arriving while delegating:
// clears the delegation record, invalidates the mapping, and reports the
// outcome to the user before resuming local handling.
func (r *TurnRouter) endDelegation(ctx context.Context, st *conversation.State, act *activity.Activity) error {
	skillID := st.ActiveSkill()
	skillConversationID := st.SkillConversationID()

	st.Clear(conversation.KeyActiveSkill)
	st.Clear(conversation.KeySkillConversationID)

	if err := r.mapper.Invalidate(ctx, skillConversationID); err != nil {
		return err
	}
	if err := r.states.SaveChanges(ctx, st, true); err != nil {
		return err
	}

	r.logger.Info("delegation ended",
		"conversation_id", st.ConversationID(),
		"skill_id", skillID,
		"code", act.Code)

	summary := fmt.Sprintf("Skill %q ended the conversation (code: %s).", skillID, act.Code)
	if act.Text != "" {
		summary += fmt.Sprintf(" It said: %s", act.Text)
	}
	if len(act.Value) > 0 {
		summary += fmt.Sprintf(" Result: %s", string(act.Value))
	}
	if err := r.responder.SendActivity(ctx, activity.NewMessage(st.ConversationID(), summary)); err != nil {
		return err
	}

	return r.responder.SendActivity(ctx, activity.NewMessage(st.ConversationID(),
		"Back with you. "+r.policy.Hint()))
}

// handleLocal is the Idle path: greet new members, activate a delegation
// when the policy matches, otherwise answer with a usage hint. Local state
// changes are saved with a forced write so they survive process restarts.
func (r *TurnRouter) handleLocal(ctx context.Context, st *conversation.State, act *activity.Activity) error {
	switch act.Type {
	case activity.TypeConversationUpdate:
		if len(act.MembersAdded) > 0 {
			if err := r.sendWelcome(ctx, st.ConversationID()); err != nil {
				return err
			}
		}

	case activity.TypeMessage:
		if skillID, ok := r.policy.SelectSkill(act); ok {
			return r.activate(ctx, st, act, skillID)
		}
		hint := activity.NewMessage(st.ConversationID(), "I didn't catch that. "+r.policy.Hint())
		if err := r.responder.SendActivity(ctx, hint); err != nil {
			return err
		}

	case activity.TypeEndOfConversation:
		// Nothing is delegating; there is no delegation to end.
		r.logger.Debug("endOfConversation while idle, ignoring",
			"conversation_id", st.ConversationID())
	}

	return r.states.SaveChanges(ctx, st, true)
}

// activate performs the Idle -> Delegating transition: record the active
// skill, issue a fresh skill conversation id, persist, then forward the
// current activity. Persisting before forwarding is deliberate — do not
// reorder these steps.
func (r *TurnRouter) activate(ctx context.Context, st *conversation.State, act *activity.Activity, skillID string) error {
	sk, err := r.registry.Get(skillID)
	if err != nil {
		return err
	}

	st.SetString(conversation.KeyActiveSkill, sk.ID)

	skillConversationID, err := r.mapper.CreateMapping(ctx, conversation.Reference{
		ConversationID: st.ConversationID(),
		ChannelID:      act.ChannelID,
		SkillID:        sk.ID,
	})
	if err != nil {
		return err
	}
	st.SetString(conversation.KeySkillConversationID, skillConversationID)

	if err := r.states.SaveChanges(ctx, st, true); err != nil {
		return err
	}

	r.logger.Info("delegation started",
		"conversation_id", st.ConversationID(),
		"skill_id", sk.ID,
		"skill_conversation_id", skillConversationID)

	if _, err := r.forwarder.Forward(ctx, r.appID, sk, r.registry.HostEndpoint(), skillConversationID, act); err != nil {
		return err
	}

	confirmation := activity.NewMessage(st.ConversationID(),
		fmt.Sprintf("Got it — handing you over to %q. Everything you send now goes to the skill.", sk.ID))
	return r.responder.SendActivity(ctx, confirmation)
}

// sendWelcome announces the gateway and its registered skills.
func (r *TurnRouter) sendWelcome(ctx context.Context, conversationID string) error {
	var names []string
	for _, sk := range r.registry.List() {
		names = append(names, sk.ID)
	}
	text := fmt.Sprintf("Hello! I can delegate this conversation to: %s. %s",
		strings.Join(names, ", "), r.policy.Hint())
	return r.responder.SendActivity(ctx, activity.NewMessage(conversationID, text))
}

// recover is the error recovery path for any failure escaping turn
// processing. Three steps, each best-effort and isolated: notify the user,
// notify the active skill, wipe the conversation's persisted state. The
// turn's context may be cancelled, so recovery runs on a detached one.
func (r *TurnRouter) recover(act *activity.Activity, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), recoveryTimeout)
	defer cancel()

	conversationID := act.ConversationID
	r.logger.Error("turn failed, recovering",
		"conversation_id", conversationID,
		"error", cause)

	r.sendErrorMessages(ctx, conversationID, cause)
	r.endSkillConversation(ctx, conversationID)
	r.clearConversationState(ctx, conversationID)
}

// sendErrorMessages sends the two-part user-facing notice plus a trace
// activity carrying the raw error for operator surfaces. The raw detail is
// never shown to end users.
func (r *TurnRouter) sendErrorMessages(ctx context.Context, conversationID string, cause error) {
	notice := activity.NewMessage(conversationID, "The gateway encountered an error or bug.")
	if err := r.responder.SendActivity(ctx, notice); err != nil {
		r.logger.Error("failed to send error notice", "error", err)
	}

	remediation := activity.NewMessage(conversationID, "To continue running this gateway, please fix its source code.")
	if err := r.responder.SendActivity(ctx, remediation); err != nil {
		r.logger.Error("failed to send remediation hint", "error", err)
	}

	trace := activity.NewTrace(conversationID, "TurnError", cause.Error())
	if err := r.responder.SendActivity(ctx, trace); err != nil {
		r.logger.Error("failed to send trace activity", "error", err)
	}
}

// endSkillConversation gives an active skill the chance to release its own
// resources by sending it endOfConversation with the root-caused error code.
// Delivery failure is swallowed — recovery must not itself fail.
func (r *TurnRouter) endSkillConversation(ctx context.Context, conversationID string) {
	st, err := r.states.Load(ctx, conversationID)
	if err != nil {
		r.logger.Error("failed to load state during recovery", "error", err)
		return
	}
	if !st.Delegating() {
		return
	}

	sk, err := r.registry.Get(st.ActiveSkill())
	if err != nil {
		r.logger.Error("active skill not in registry during recovery",
			"skill_id", st.ActiveSkill(), "error", err)
		return
	}

	// Persist before posting, same as every delegation boundary.
	if err := r.states.SaveChanges(ctx, st, true); err != nil {
		r.logger.Error("failed to save state during recovery", "error", err)
	}

	eoc := activity.NewEndOfConversation(conversationID, activity.CodeRootSkillError)
	if _, err := r.forwarder.Forward(ctx, r.appID, sk, r.registry.HostEndpoint(), st.SkillConversationID(), eoc); err != nil {
		r.logger.Error("failed to notify skill of termination",
			"skill_id", sk.ID, "error", err)
	}
}

// clearConversationState wipes everything persisted for the conversation,
// returning it to a clean Idle baseline regardless of the prior steps.
func (r *TurnRouter) clearConversationState(ctx context.Context, conversationID string) {
	if err := r.states.Delete(ctx, conversationID); err != nil {
		r.logger.Error("failed to delete conversation state", "error", err)
	}
	if err := r.mapper.InvalidateConversation(ctx, conversationID); err != nil {
		r.logger.Error("failed to invalidate conversation mappings", "error", err)
	}
}
