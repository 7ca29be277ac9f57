// internal/enginestub/planner.go
package enginestub

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/automate-cli/internal/automation"
)

// ErrEmptyObjective is returned when there is nothing to plan.
var ErrEmptyObjective = errors.New("objective is required")

// stepSeparator splits an objective into sequential steps.
const stepSeparator = " then "

// Plan turns an objective into actions with a fixed set of phrase rules:
//
//	search for X   type X, press enter
//	open X         open the launcher, type X, press enter
//	type X         type X
//	press A+B      press the chord A+B
//	click X,Y      click at X,Y
//
// Steps may be chained with "then". A step matching no rule becomes a
// summarize action so that every objective produces a plan.
func Plan(objective string) ([]automation.RawAction, error) {
	objective = strings.TrimSpace(objective)
	if objective == "" {
		return nil, ErrEmptyObjective
	}

	var actions []automation.RawAction
	for i, step := range strings.Split(objective, stepSeparator) {
		step = strings.TrimSpace(step)
		if step == "" {
			continue
		}
		planned, err := planStep(step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%q): %w", i+1, step, err)
		}
		actions = append(actions, planned...)
	}
	if len(actions) == 0 {
		return nil, ErrEmptyObjective
	}
	return actions, nil
}

func planStep(step string) ([]automation.RawAction, error) {
	verb, rest := splitVerb(step)

	switch verb {
	case "search":
		query := rest
		if q, ok := strings.CutPrefix(rest, "for"); ok && (q == "" || q[0] == ' ') {
			query = strings.TrimSpace(q)
		}
		if query == "" {
			return nil, errors.New("nothing to search for")
		}
		return []automation.RawAction{
			{Operation: automation.OpType, Thought: "Entering the search query", Content: query},
			{Operation: automation.OpKeyPress, Keys: []string{"enter"}},
		}, nil

	case "open":
		if rest == "" {
			return nil, errors.New("nothing to open")
		}
		return []automation.RawAction{
			{Operation: automation.OpKeyPress, Thought: "Opening the launcher", Keys: []string{"command", "space"}},
			{Operation: automation.OpType, Content: rest},
			{Operation: automation.OpKeyPress, Keys: []string{"enter"}},
		}, nil

	case "type":
		if rest == "" {
			return nil, errors.New("nothing to type")
		}
		return []automation.RawAction{{Operation: automation.OpType, Content: rest}}, nil

	case "press":
		keys := splitList(rest, "+")
		if len(keys) == 0 {
			return nil, errors.New("no keys to press")
		}
		return []automation.RawAction{{Operation: automation.OpKeyPress, Keys: keys}}, nil

	case "click":
		coords := splitList(rest, ",")
		if len(coords) != 2 {
			return nil, fmt.Errorf("click needs x,y coordinates, got %q", rest)
		}
		return []automation.RawAction{{Operation: automation.OpClick, X: coords[0], Y: coords[1]}}, nil

	default:
		return []automation.RawAction{{
			Operation: automation.OpSummarize,
			Thought:   "No rule matches this step",
			Summary:   step,
		}}, nil
	}
}

// splitVerb lowercases the first word and returns it with the untouched rest.
func splitVerb(step string) (string, string) {
	verb, rest, _ := strings.Cut(step, " ")
	return strings.ToLower(verb), strings.TrimSpace(rest)
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that an action carries the parameters its operation needs.
// Operations the stub does not model are accepted as no-ops.
func Validate(action automation.Action) error {
	switch a := action.(type) {
	case automation.ClickAction:
		if a.X == "" || a.Y == "" {
			return errors.New("click requires x and y")
		}
	case automation.TypeAction:
		if a.Content == "" {
			return errors.New("type requires content")
		}
	case automation.KeyPressAction:
		if len(a.Keys) == 0 {
			return errors.New("key_press requires keys")
		}
	case nil:
		return automation.ErrNilAction
	}
	return nil
}
