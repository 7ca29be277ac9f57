// internal/automation/models.go
package automation

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// json mirrors encoding/json semantics (sorted map keys, HTML escaping) so
// payloads stay byte-for-byte predictable.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ExecutionRequest asks the engine to run Actions, in order, toward Objective.
type ExecutionRequest struct {
	Actions   []Action
	Objective string
}

// executionRequestWire is the JSON shape of ExecutionRequest.
type executionRequestWire struct {
	Actions   []RawAction `json:"actions" yaml:"actions"`
	Objective string      `json:"objective" yaml:"objective"`
}

// NewExecutionRequest builds a request from an objective and actions.
func NewExecutionRequest(objective string, actions ...Action) ExecutionRequest {
	return ExecutionRequest{Actions: actions, Objective: objective}
}

// MarshalJSON writes the wire shape. Actions is always an array, never null.
func (r ExecutionRequest) MarshalJSON() ([]byte, error) {
	raws, err := RawActions(r.Actions)
	if err != nil {
		return nil, err
	}
	return json.Marshal(executionRequestWire{Actions: raws, Objective: r.Objective})
}

// UnmarshalJSON reads the wire shape through ParseActions.
func (r *ExecutionRequest) UnmarshalJSON(data []byte) error {
	var wire executionRequestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	return r.fromWire(wire)
}

// UnmarshalYAML lets action files be written in YAML as well as JSON.
func (r *ExecutionRequest) UnmarshalYAML(value *yaml.Node) error {
	var wire executionRequestWire
	if err := value.Decode(&wire); err != nil {
		return err
	}
	return r.fromWire(wire)
}

func (r *ExecutionRequest) fromWire(wire executionRequestWire) error {
	actions, err := ParseActions(wire.Actions)
	if err != nil {
		return fmt.Errorf("invalid execution request: %w", err)
	}
	r.Actions = actions
	r.Objective = wire.Objective
	return nil
}

// DirectRequest asks the engine to plan and execute an objective in one go.
type DirectRequest struct {
	Objective string `json:"objective"`
}

// generateResponse is the success body of /generate-actions.
type generateResponse struct {
	Actions []RawAction `json:"actions"`
}

// Result is the outcome of RunDirect and Execute. The engine reports the
// executed count under two different names depending on the endpoint; both
// decode into ActionsExecuted, which always encodes as actions_executed.
type Result struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	ActionsExecuted *int   `json:"actions_executed,omitempty"`
	Error           string `json:"error,omitempty"`

	// Extra holds response fields the client does not model, keyed by wire
	// name and written back unchanged.
	Extra map[string]jsoniter.RawMessage `json:"-"`

	// Err is the structured cause of a client-side failure: a
	// *TransportError, *HTTPError or *BodyParseError. It is nil when the
	// engine itself reported the outcome.
	Err error `json:"-"`
}

var resultFields = knownFields("success", "message", "actions_executed", "executedActions", "error")

type resultAlias Result

// MarshalJSON writes the modeled fields together with Extra.
func (r Result) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(resultAlias(r))
	if err != nil {
		return nil, err
	}
	return mergeExtra(data, r.Extra, resultFields)
}

// resultWire accepts both spellings of the executed count.
type resultWire struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	ActionsExecuted *int   `json:"actions_executed"`
	ExecutedActions *int   `json:"executedActions"`
	Error           string `json:"error"`
}

// UnmarshalJSON decodes either result shape.
func (r *Result) UnmarshalJSON(data []byte) error {
	var wire resultWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	extra, err := splitExtra(data, resultFields)
	if err != nil {
		return err
	}
	count := wire.ActionsExecuted
	if count == nil {
		count = wire.ExecutedActions
	}
	*r = Result{
		Success:         wire.Success,
		Message:         wire.Message,
		ActionsExecuted: count,
		Error:           wire.Error,
		Extra:           extra,
	}
	return nil
}

// Failed reports whether the outcome was a failure, either client-side or
// reported by the engine.
func (r Result) Failed() bool { return !r.Success }

// Cause returns the structured client-side failure, if any.
func (r Result) Cause() error { return r.Err }

// Executed returns the executed count and whether the engine reported one.
func (r Result) Executed() (int, bool) {
	if r.ActionsExecuted == nil {
		return 0, false
	}
	return *r.ActionsExecuted, true
}

// fieldSet is a set of modeled wire names. Lookups ignore case, matching how
// JSON object keys are matched to struct fields.
type fieldSet map[string]bool

func knownFields(names ...string) fieldSet {
	set := make(fieldSet, 2*len(names))
	for _, name := range names {
		set[name] = true
		set[strings.ToLower(name)] = true
	}
	return set
}

func (s fieldSet) has(name string) bool { return s[strings.ToLower(name)] }

// splitExtra returns the members of the JSON object data that known does not
// model, or nil when there are none.
func splitExtra(data []byte, known fieldSet) (map[string]jsoniter.RawMessage, error) {
	var fields map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	var extra map[string]jsoniter.RawMessage
	for name, v := range fields {
		if known.has(name) {
			continue
		}
		if extra == nil {
			extra = make(map[string]jsoniter.RawMessage)
		}
		extra[name] = append(jsoniter.RawMessage(nil), v...)
	}
	return extra, nil
}

// mergeExtra adds extra to the encoded object data. Names that collide with
// modeled fields are skipped.
func mergeExtra(data []byte, extra map[string]jsoniter.RawMessage, known fieldSet) ([]byte, error) {
	if len(extra) == 0 {
		return data, nil
	}
	var fields map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for name, v := range extra {
		if !known.has(name) {
			fields[name] = v
		}
	}
	return json.Marshal(fields)
}

// failedResult normalizes a client-side failure.
func failedResult(err error) Result {
	return Result{
		Success: false,
		Message: MsgAutomationFailed,
		Error:   describe(err),
		Err:     err,
	}
}

// ConnectionState is the client's last-known belief about the engine.
type ConnectionState int32

const (
	StateUnknown      ConnectionState = iota // Never checked since the endpoint was set.
	StateConnected                           // Last health check succeeded.
	StateDisconnected                        // Last health check failed.
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
