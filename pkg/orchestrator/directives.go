package orchestrator

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mother/pkg/chat"
	"github.com/go-go-golems/mother/pkg/directive"
)

// handleDirective dispatches a parsed control command. Directive handling is
// synchronous and bounded: it never touches the query queue.
func (o *Orchestrator) handleDirective(ctx context.Context, msg chat.Message, d *directive.Directive) {
	log.Info().Str("component", "orchestrator").Str("user_id", msg.Sender).
		Str("action", d.RawAction).Strs("params", d.Params).Msg("handling directive")

	switch d.Action {
	case directive.ActionSetVoice:
		o.directiveSetVoice(ctx, msg.Sender, d.Params)
	case directive.ActionPrivateChat:
		o.directivePrivateChat(ctx, msg.Sender, d.Params)
	case directive.ActionResetContext:
		o.directiveResetContext(ctx, msg.Sender, d.Params)
	default:
		o.sendToUser(ctx, msg.Sender, chat.Reply{
			Type:  chat.ReplyTypeError,
			Error: "unrecognized directive action: " + d.RawAction,
		})
	}
}

func (o *Orchestrator) directiveSetVoice(ctx context.Context, userID string, params []string) {
	if len(params) != 2 {
		o.sendToUser(ctx, userID, chat.Reply{Type: chat.ReplyTypeError, Error: "SETVOICE expects (worker,voice)"})
		return
	}
	worker := strings.TrimSpace(params[0])
	voiceID := strings.TrimSpace(params[1])

	if !o.SetWorkerVoice(ctx, worker, voiceID) {
		o.sendToUser(ctx, userID, chat.Reply{Type: chat.ReplyTypeVoiceSet, Worker: worker, Error: "unknown worker: " + worker})
		return
	}
	o.sendToUser(ctx, userID, chat.Reply{Type: chat.ReplyTypeVoiceSet, Worker: worker, VoiceID: voiceID, Text: "voice assigned"})
}

// directivePrivateChat registers a shared-context routing rule fanning the
// user's messages to the named workers. Unknown names are reported once each
// (deduplicated) and the rule still registers for the valid subset, in the
// order given.
func (o *Orchestrator) directivePrivateChat(ctx context.Context, userID string, params []string) {
	var valid, unknown []string
	seen := map[string]struct{}{}
	for _, p := range params {
		name := strings.TrimSpace(p)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if o.registry.IsActive(name) {
			valid = append(valid, name)
		} else {
			unknown = append(unknown, name)
		}
	}

	if len(unknown) > 0 {
		o.sendToUser(ctx, userID, chat.Reply{
			Type:  chat.ReplyTypeError,
			Error: "unknown worker(s): " + strings.Join(unknown, ", "),
		})
	}
	if len(valid) == 0 {
		return
	}

	o.mu.Lock()
	o.multicast[userID] = valid
	o.mu.Unlock()

	o.sendToUser(ctx, userID, chat.Reply{
		Type: chat.ReplyTypeDirectiveResult,
		Text: "multi-worker session enabled: " + strings.Join(valid, ", "),
	})
}

// directiveResetContext drops history for one pair, or for every pair the
// user owns (and the multi-worker rule) when called without parameters.
func (o *Orchestrator) directiveResetContext(ctx context.Context, userID string, params []string) {
	if len(params) > 0 {
		worker := strings.TrimSpace(params[0])
		o.contexts.Clear(userID, worker)
		o.sendToUser(ctx, userID, chat.Reply{Type: chat.ReplyTypeDirectiveResult, Worker: worker, Text: "context reset"})
		return
	}

	o.contexts.ClearUser(userID)
	o.mu.Lock()
	delete(o.multicast, userID)
	o.mu.Unlock()
	o.sendToUser(ctx, userID, chat.Reply{Type: chat.ReplyTypeDirectiveResult, Text: "all contexts reset"})
}
