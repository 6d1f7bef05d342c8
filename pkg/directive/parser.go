// Package directive recognizes control commands embedded in chat text.
//
// Wire format: MOTHERREALM:ACTION(param1,param2,...). Commas always delimit
// parameters; there is no escaping, so a parameter cannot contain a literal
// comma. Bogus tokens produced by that limitation are rejected downstream by
// worker-name validation.
package directive

import (
	"strings"

	"github.com/pkg/errors"
)

// Prefix is the sentinel that marks a message as a directive.
const Prefix = "MOTHERREALM"

// ErrMalformed is returned when text carries the sentinel prefix but the
// ACTION(...) shape cannot be found. Callers report it back to the user as
// text; it never crosses the processing boundary as a fault.
var ErrMalformed = errors.New("malformed directive")

// Action is a recognized directive action.
type Action string

const (
	// ActionSetVoice assigns a voice profile to a worker: SETVOICE(worker,voice).
	ActionSetVoice Action = "SETVOICE"
	// ActionPrivateChat enables a multi-worker session: PRIVATECHAT(w1,w2,...).
	ActionPrivateChat Action = "PRIVATECHAT"
	// ActionResetContext drops conversation history: RESETCONTEXT(worker) or
	// RESETCONTEXT() for every pair the user owns.
	ActionResetContext Action = "RESETCONTEXT"
	// ActionUnrecognized marks a well-formed directive with an unknown action.
	ActionUnrecognized Action = "UNRECOGNIZED"
)

// legacyPrivateChat is the wire name the original web client emits for
// multi-worker sessions.
const legacyPrivateChat = "debugwindowoutONLYLLMONLYPRIVATECHAT"

// Directive is a parsed control command.
type Directive struct {
	// Action is the recognized action, or ActionUnrecognized.
	Action Action
	// RawAction is the action token as it appeared on the wire.
	RawAction string
	// Params is never nil; an empty parameter list yields an empty slice.
	Params []string
}

// TryParse decodes text as a directive. It returns (nil, false, nil) when the
// text does not start with the sentinel prefix, and (nil, true, ErrMalformed)
// when it does but the ACTION(...) shape is broken.
func TryParse(text string) (*Directive, bool, error) {
	if !strings.HasPrefix(text, Prefix+":") {
		return nil, false, nil
	}
	body := strings.SplitN(text, ":", 2)[1]

	parts := strings.SplitN(body, "(", 2)
	if len(parts) != 2 || parts[0] == "" || !strings.HasSuffix(parts[1], ")") {
		return nil, true, errors.Wrapf(ErrMalformed, "expected ACTION(params) in %q", body)
	}
	raw := parts[0]
	paramSegment := strings.TrimSuffix(parts[1], ")")

	params := []string{}
	if paramSegment != "" {
		params = strings.Split(paramSegment, ",")
	}

	return &Directive{
		Action:    actionFor(raw),
		RawAction: raw,
		Params:    params,
	}, true, nil
}

func actionFor(raw string) Action {
	switch raw {
	case string(ActionSetVoice):
		return ActionSetVoice
	case string(ActionPrivateChat), legacyPrivateChat:
		return ActionPrivateChat
	case string(ActionResetContext):
		return ActionResetContext
	default:
		return ActionUnrecognized
	}
}
