// internal/automation/action.go
package automation

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// Operation identifies the kind of step the engine performs. The engine owns
// the vocabulary; the client models the operations it knows and carries any
// other name through untouched.
type Operation string

const (
	OpClick     Operation = "click"     // Click at screen coordinates.
	OpType      Operation = "type"      // Type text at the current focus.
	OpKeyPress  Operation = "key_press" // Press a key chord, in order.
	OpExtract   Operation = "extract"   // Extract text from the screen.
	OpSummarize Operation = "summarize" // Summarize what has been observed.
)

// Known reports whether the client models this operation with a dedicated variant.
func (o Operation) Known() bool {
	switch o {
	case OpClick, OpType, OpKeyPress, OpExtract, OpSummarize:
		return true
	}
	return false
}

// RawAction is the loose wire form of an action. Every field except
// Operation is optional and its meaning depends on the operation.
type RawAction struct {
	Operation Operation `json:"operation" yaml:"operation"`
	Thought   string    `json:"thought,omitempty" yaml:"thought,omitempty"`
	X         string    `json:"x,omitempty" yaml:"x,omitempty"`
	Y         string    `json:"y,omitempty" yaml:"y,omitempty"`
	Keys      []string  `json:"keys,omitempty" yaml:"keys,omitempty"`
	Content   string    `json:"content,omitempty" yaml:"content,omitempty"`
	Summary   string    `json:"summary,omitempty" yaml:"summary,omitempty"`

	// Extra holds fields the client does not model, keyed by wire name and
	// written back unchanged.
	Extra map[string]jsoniter.RawMessage `json:"-" yaml:"-"`
}

// rawActionFields are the wire names RawAction models directly.
var rawActionFields = knownFields("operation", "thought", "x", "y", "keys", "content", "summary")

// rawActionAlias drops RawAction's methods for plain struct encoding.
type rawActionAlias RawAction

// MarshalJSON writes the modeled fields together with Extra.
func (r RawAction) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(rawActionAlias(r))
	if err != nil {
		return nil, err
	}
	return mergeExtra(data, r.Extra, rawActionFields)
}

// UnmarshalJSON decodes the modeled fields and keeps the rest in Extra.
func (r *RawAction) UnmarshalJSON(data []byte) error {
	var alias rawActionAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	extra, err := splitExtra(data, rawActionFields)
	if err != nil {
		return err
	}
	alias.Extra = extra
	*r = RawAction(alias)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for action files written in YAML.
func (r *RawAction) UnmarshalYAML(value *yaml.Node) error {
	var alias rawActionAlias
	if err := value.Decode(&alias); err != nil {
		return err
	}
	var fields map[string]interface{}
	if err := value.Decode(&fields); err != nil {
		return err
	}
	alias.Extra = nil
	for name, v := range fields {
		if rawActionFields[name] {
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		if alias.Extra == nil {
			alias.Extra = make(map[string]jsoniter.RawMessage)
		}
		alias.Extra[name] = data
	}
	*r = RawAction(alias)
	return nil
}

func (r RawAction) clone() RawAction {
	r.Keys = cloneKeys(r.Keys)
	r.Extra = cloneExtra(r.Extra)
	return r
}

func (r RawAction) isZero() bool {
	return r.Operation == "" && r.Thought == "" && r.X == "" && r.Y == "" &&
		len(r.Keys) == 0 && r.Content == "" && r.Summary == "" && len(r.Extra) == 0
}

// Action is one automation step. The concrete type determines which
// parameters exist; ParseAction is the only way in from the wire.
type Action interface {
	Operation() Operation
	// Annotations returns the engine's rationale and result note for the step.
	Annotations() Note
	// Raw converts the step back to its wire form.
	Raw() RawAction
	isAction()
}

// Note carries the free-text annotations shared by every action.
type Note struct {
	Thought string
	Summary string
}

// Annotations returns the note itself so variants embedding it satisfy Action.
func (n Note) Annotations() Note { return n }

// raw starts the wire form from the fields carried over by ParseAction.
func (n Note) raw(op Operation, rest RawAction) RawAction {
	r := rest.clone()
	r.Operation, r.Thought, r.Summary = op, n.Thought, n.Summary
	return r
}

// ClickAction clicks at a point. Coordinates stay string-encoded because the
// engine decides whether they are pixels or fractions of the screen.
type ClickAction struct {
	Note
	X string
	Y string

	rest RawAction
}

func (ClickAction) Operation() Operation { return OpClick }
func (ClickAction) isAction()            {}

func (a ClickAction) Raw() RawAction {
	r := a.Note.raw(OpClick, a.rest)
	r.X, r.Y = a.X, a.Y
	return r
}

// TypeAction types Content.
type TypeAction struct {
	Note
	Content string

	rest RawAction
}

func (TypeAction) Operation() Operation { return OpType }
func (TypeAction) isAction()            {}

func (a TypeAction) Raw() RawAction {
	r := a.Note.raw(OpType, a.rest)
	r.Content = a.Content
	return r
}

// KeyPressAction presses Keys as one chord, in order.
type KeyPressAction struct {
	Note
	Keys []string

	rest RawAction
}

func (KeyPressAction) Operation() Operation { return OpKeyPress }
func (KeyPressAction) isAction()            {}

func (a KeyPressAction) Raw() RawAction {
	r := a.Note.raw(OpKeyPress, a.rest)
	r.Keys = cloneKeys(a.Keys)
	return r
}

// ExtractAction extracts text; Content holds the extraction target or result.
type ExtractAction struct {
	Note
	Content string

	rest RawAction
}

func (ExtractAction) Operation() Operation { return OpExtract }
func (ExtractAction) isAction()            {}

func (a ExtractAction) Raw() RawAction {
	r := a.Note.raw(OpExtract, a.rest)
	r.Content = a.Content
	return r
}

// SummarizeAction has no parameters beyond its annotations.
type SummarizeAction struct {
	Note

	rest RawAction
}

func (SummarizeAction) Operation() Operation { return OpSummarize }
func (SummarizeAction) isAction()            {}

func (a SummarizeAction) Raw() RawAction { return a.Note.raw(OpSummarize, a.rest) }

// UnknownAction preserves an operation the client does not model, verbatim.
type UnknownAction struct {
	RawAction RawAction
}

func (a UnknownAction) Operation() Operation { return a.RawAction.Operation }
func (a UnknownAction) Annotations() Note {
	return Note{Thought: a.RawAction.Thought, Summary: a.RawAction.Summary}
}
func (UnknownAction) isAction() {}

func (a UnknownAction) Raw() RawAction { return a.RawAction.clone() }

// ParseAction maps a wire action onto its variant. Only a missing operation
// is rejected; per-operation parameters are the engine's business. Fields a
// variant does not model are kept aside so Raw returns the action unchanged.
func ParseAction(raw RawAction) (Action, error) {
	note := Note{Thought: raw.Thought, Summary: raw.Summary}
	rest := foreignFields(raw)

	switch raw.Operation {
	case "":
		return nil, ErrMissingOperation
	case OpClick:
		return ClickAction{Note: note, X: raw.X, Y: raw.Y, rest: rest}, nil
	case OpType:
		return TypeAction{Note: note, Content: raw.Content, rest: rest}, nil
	case OpKeyPress:
		return KeyPressAction{Note: note, Keys: cloneKeys(raw.Keys), rest: rest}, nil
	case OpExtract:
		return ExtractAction{Note: note, Content: raw.Content, rest: rest}, nil
	case OpSummarize:
		return SummarizeAction{Note: note, rest: rest}, nil
	default:
		return UnknownAction{RawAction: raw.clone()}, nil
	}
}

// foreignFields returns what the variant for raw's operation does not model.
// The result is the zero RawAction when nothing is left over.
func foreignFields(raw RawAction) RawAction {
	rest := raw.clone()
	rest.Operation, rest.Thought, rest.Summary = "", "", ""
	switch raw.Operation {
	case OpClick:
		rest.X, rest.Y = "", ""
	case OpType, OpExtract:
		rest.Content = ""
	case OpKeyPress:
		rest.Keys = nil
	}
	if rest.isZero() {
		return RawAction{}
	}
	return rest
}

// ParseActions maps a wire list in order. The result is never nil.
func ParseActions(raws []RawAction) ([]Action, error) {
	actions := make([]Action, 0, len(raws))
	for i, raw := range raws {
		action, err := ParseAction(raw)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// RawActions converts a list back to wire form. A nil entry is an error.
func RawActions(actions []Action) ([]RawAction, error) {
	raws := make([]RawAction, 0, len(actions))
	for i, action := range actions {
		if action == nil {
			return nil, fmt.Errorf("action %d: %w", i, ErrNilAction)
		}
		raws = append(raws, action.Raw())
	}
	return raws, nil
}

func cloneKeys(keys []string) []string {
	if keys == nil {
		return nil
	}
	return append([]string(nil), keys...)
}

func cloneExtra(extra map[string]jsoniter.RawMessage) map[string]jsoniter.RawMessage {
	if extra == nil {
		return nil
	}
	out := make(map[string]jsoniter.RawMessage, len(extra))
	for k, v := range extra {
		out[k] = append(jsoniter.RawMessage(nil), v...)
	}
	return out
}
