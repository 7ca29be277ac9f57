// internal/automation/action_test.go
package automation_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/automate-cli/internal/automation"
)

// actionFields lets cmp see the fields a variant carries over from the wire.
var actionFields = cmp.AllowUnexported(
	automation.ClickAction{},
	automation.TypeAction{},
	automation.KeyPressAction{},
	automation.ExtractAction{},
	automation.SummarizeAction{},
)

func TestParseAction(t *testing.T) {
	note := automation.Note{Thought: "why", Summary: "what happened"}

	tests := []struct {
		name string
		raw  automation.RawAction
		want automation.Action
	}{
		{
			name: "click",
			raw:  automation.RawAction{Operation: "click", Thought: "why", Summary: "what happened", X: "10", Y: "20"},
			want: automation.ClickAction{Note: note, X: "10", Y: "20"},
		},
		{
			name: "type",
			raw:  automation.RawAction{Operation: "type", Content: "hello"},
			want: automation.TypeAction{Content: "hello"},
		},
		{
			name: "key press keeps chord order",
			raw:  automation.RawAction{Operation: "key_press", Keys: []string{"ctrl", "shift", "t"}},
			want: automation.KeyPressAction{Keys: []string{"ctrl", "shift", "t"}},
		},
		{
			name: "extract",
			raw:  automation.RawAction{Operation: "extract", Content: "headline"},
			want: automation.ExtractAction{Content: "headline"},
		},
		{
			name: "summarize",
			raw:  automation.RawAction{Operation: "summarize", Thought: "why", Summary: "what happened"},
			want: automation.SummarizeAction{Note: note},
		},
		{
			name: "unknown operation is carried verbatim",
			raw:  automation.RawAction{Operation: "scroll", Content: "down", Keys: []string{"pagedown"}},
			want: automation.UnknownAction{RawAction: automation.RawAction{Operation: "scroll", Content: "down", Keys: []string{"pagedown"}}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := automation.ParseAction(tc.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got, actionFields); diff != "" {
				t.Errorf("ParseAction() mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tc.raw.Operation, got.Operation())
		})
	}
}

func TestParseAction_KeepsForeignFields(t *testing.T) {
	tests := []struct {
		name  string
		raw   automation.RawAction
		check func(t *testing.T, action automation.Action)
	}{
		{
			name: "click with content and keys",
			raw:  automation.RawAction{Operation: "click", X: "1", Y: "2", Content: "stray", Keys: []string{"a"}},
			check: func(t *testing.T, action automation.Action) {
				click := action.(automation.ClickAction)
				assert.Equal(t, "1", click.X)
				assert.Equal(t, "2", click.Y)
			},
		},
		{
			name: "type with coordinates",
			raw:  automation.RawAction{Operation: "type", X: "5", Y: "6", Content: "hi"},
			check: func(t *testing.T, action automation.Action) {
				assert.Equal(t, "hi", action.(automation.TypeAction).Content)
			},
		},
		{
			name: "summarize with unmodeled fields",
			raw: automation.RawAction{Operation: "summarize", Summary: "done", Content: "report",
				Extra: map[string]jsoniter.RawMessage{"confidence": jsoniter.RawMessage(`0.9`)}},
			check: func(t *testing.T, action automation.Action) {
				assert.Equal(t, "done", action.Annotations().Summary)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			action, err := automation.ParseAction(tc.raw)
			require.NoError(t, err)
			tc.check(t, action)
			assert.Empty(t, cmp.Diff(tc.raw, action.Raw()))
		})
	}
}

func TestParseAction_EditsKeepForeignFields(t *testing.T) {
	action, err := automation.ParseAction(automation.RawAction{Operation: "type", X: "5", Content: "hi"})
	require.NoError(t, err)

	typed := action.(automation.TypeAction)
	typed.Content = "bye"

	assert.Equal(t, automation.RawAction{Operation: "type", X: "5", Content: "bye"}, typed.Raw())
}

func TestRawAction_JSONKeepsUnmodeledFields(t *testing.T) {
	body := `{"operation":"click","x":"1","y":"2","button":"right","modifiers":["shift"],"meta":{"id":7}}`

	var raw automation.RawAction
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	assert.Equal(t, automation.OpClick, raw.Operation)
	assert.Len(t, raw.Extra, 3)
	assert.JSONEq(t, `"right"`, string(raw.Extra["button"]))

	action, err := automation.ParseAction(raw)
	require.NoError(t, err)
	data, err := json.Marshal(action.Raw())
	require.NoError(t, err)
	assert.JSONEq(t, body, string(data))
}

func TestRawAction_ExtraCannotShadowModeledFields(t *testing.T) {
	raw := automation.RawAction{Operation: "type", Content: "real",
		Extra: map[string]jsoniter.RawMessage{"content": jsoniter.RawMessage(`"shadow"`), "Operation": jsoniter.RawMessage(`"x"`)}}

	data, err := json.Marshal(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"operation":"type","content":"real"}`, string(data))
}

func TestRawAction_YAMLKeepsUnmodeledFields(t *testing.T) {
	doc := `
operation: click
x: "1"
y: "2"
button: right
modifiers: [shift]
`
	var raw automation.RawAction
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))

	data, err := json.Marshal(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"operation":"click","x":"1","y":"2","button":"right","modifiers":["shift"]}`, string(data))
}

func TestParseAction_MissingOperation(t *testing.T) {
	action, err := automation.ParseAction(automation.RawAction{Content: "orphan"})
	assert.Nil(t, action)
	assert.ErrorIs(t, err, automation.ErrMissingOperation)
}

func TestParseAction_DoesNotAliasKeys(t *testing.T) {
	keys := []string{"ctrl", "c"}
	action, err := automation.ParseAction(automation.RawAction{Operation: automation.OpKeyPress, Keys: keys})
	require.NoError(t, err)

	keys[0] = "alt"
	raw := action.Raw()
	assert.Equal(t, []string{"ctrl", "c"}, raw.Keys)

	raw.Keys[1] = "v"
	assert.Equal(t, []string{"ctrl", "c"}, action.(automation.KeyPressAction).Keys)
}

func TestActionRawRoundTrip(t *testing.T) {
	raws := []automation.RawAction{
		{Operation: "click", Thought: "t", X: "0.5", Y: "0.5"},
		{Operation: "type", Content: "query", Summary: "typed"},
		{Operation: "key_press", Keys: []string{"enter"}},
		{Operation: "extract", Content: "price"},
		{Operation: "summarize", Summary: "done"},
		{Operation: "drag", X: "1", Y: "2", Content: "file"},
	}

	actions, err := automation.ParseActions(raws)
	require.NoError(t, err)
	back, err := automation.RawActions(actions)
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(raws, back))
}

func TestParseActions(t *testing.T) {
	t.Run("nil input yields an empty list", func(t *testing.T) {
		actions, err := automation.ParseActions(nil)
		require.NoError(t, err)
		assert.NotNil(t, actions)
		assert.Empty(t, actions)
	})

	t.Run("reports the failing index", func(t *testing.T) {
		_, err := automation.ParseActions([]automation.RawAction{{Operation: "type"}, {}})
		require.ErrorIs(t, err, automation.ErrMissingOperation)
		assert.Contains(t, err.Error(), "action 1")
	})
}

func TestRawActions_RejectsNil(t *testing.T) {
	_, err := automation.RawActions([]automation.Action{automation.SummarizeAction{}, nil})
	assert.ErrorIs(t, err, automation.ErrNilAction)
}

func TestOperationKnown(t *testing.T) {
	for _, op := range []automation.Operation{automation.OpClick, automation.OpType, automation.OpKeyPress, automation.OpExtract, automation.OpSummarize} {
		assert.True(t, op.Known(), op)
	}
	assert.False(t, automation.Operation("scroll").Known())
	assert.False(t, automation.Operation("").Known())
}

func TestExecutionRequest_JSON(t *testing.T) {
	t.Run("marshals the wire shape", func(t *testing.T) {
		req := automation.NewExecutionRequest("open app", automation.ClickAction{X: "1", Y: "2"})
		data, err := json.Marshal(req)
		require.NoError(t, err)
		assert.JSONEq(t, `{"actions":[{"operation":"click","x":"1","y":"2"}],"objective":"open app"}`, string(data))
	})

	t.Run("no actions is an empty array", func(t *testing.T) {
		data, err := json.Marshal(automation.ExecutionRequest{Objective: "idle"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"actions":[],"objective":"idle"}`, string(data))
	})

	t.Run("unmarshals through the parser", func(t *testing.T) {
		var req automation.ExecutionRequest
		err := json.Unmarshal([]byte(`{"objective":"go","actions":[{"operation":"type","content":"x"}]}`), &req)
		require.NoError(t, err)
		want := automation.NewExecutionRequest("go", automation.TypeAction{Content: "x"})
		assert.Empty(t, cmp.Diff(want, req, actionFields))
	})

	t.Run("rejects an action without an operation", func(t *testing.T) {
		var req automation.ExecutionRequest
		err := json.Unmarshal([]byte(`{"objective":"go","actions":[{"content":"x"}]}`), &req)
		assert.ErrorIs(t, err, automation.ErrMissingOperation)
	})
}

func TestExecutionRequest_YAML(t *testing.T) {
	doc := `
objective: search for cats
actions:
  - operation: type
    thought: search box is focused
    content: cats
  - operation: key_press
    keys: [enter]
`
	var req automation.ExecutionRequest
	require.NoError(t, yaml.Unmarshal([]byte(doc), &req))

	want := automation.NewExecutionRequest("search for cats",
		automation.TypeAction{Note: automation.Note{Thought: "search box is focused"}, Content: "cats"},
		automation.KeyPressAction{Keys: []string{"enter"}},
	)
	assert.Empty(t, cmp.Diff(want, req, actionFields))
}

func TestResult_DecodesBothCountNames(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *int
	}{
		{"canonical", `{"success":true,"message":"m","actions_executed":4}`, intPtr(4)},
		{"legacy", `{"success":true,"message":"m","executedActions":2}`, intPtr(2)},
		{"canonical wins", `{"success":true,"message":"m","actions_executed":1,"executedActions":9}`, intPtr(1)},
		{"absent", `{"success":true,"message":"m"}`, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var result automation.Result
			require.NoError(t, json.Unmarshal([]byte(tc.body), &result))
			assert.Equal(t, tc.want, result.ActionsExecuted)
		})
	}
}

func TestResult_EncodesCanonicalName(t *testing.T) {
	data, err := json.Marshal(automation.Result{Success: true, Message: "ok", ActionsExecuted: intPtr(0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"ok","actions_executed":0}`, string(data))
}

func TestResult_KeepsUnmodeledFields(t *testing.T) {
	body := `{"success":true,"message":"done","actions_executed":3,"details":{"window":"Calculator"},"duration_ms":412}`

	var result automation.Result
	require.NoError(t, json.Unmarshal([]byte(body), &result))
	assert.Len(t, result.Extra, 2)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(data))
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "unknown", automation.StateUnknown.String())
	assert.Equal(t, "connected", automation.StateConnected.String())
	assert.Equal(t, "disconnected", automation.StateDisconnected.String())
}

func TestGenerationError(t *testing.T) {
	cause := &automation.HTTPError{Op: "generate-actions", StatusCode: 500, Message: "model offline"}
	err := &automation.GenerationError{Cause: cause}

	assert.Equal(t, automation.MsgGenerationFailed, err.Error())
	assert.NotContains(t, err.Error(), "model offline")

	var httpErr *automation.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, httpErr.StatusCode)
}
