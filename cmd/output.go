// -- cmd/output.go --
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/automate-cli/internal/automation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	outputText = "text"
	outputJSON = "json"
)

// printer renders command results as colored text or indented JSON.
type printer struct {
	out    io.Writer
	format string

	ok   *color.Color
	fail *color.Color
	dim  *color.Color
	op   *color.Color
}

func newPrinter(out io.Writer, format string) *printer {
	return &printer{
		out:    out,
		format: format,
		ok:     color.New(color.FgGreen, color.Bold),
		fail:   color.New(color.FgRed, color.Bold),
		dim:    color.New(color.Faint),
		op:     color.New(color.FgCyan),
	}
}

func (p *printer) jsonOut(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(p.out, string(data))
	return err
}

type healthReport struct {
	Endpoint string `json:"endpoint"`
	Healthy  bool   `json:"healthy"`
	State    string `json:"state"`
}

func (p *printer) health(endpoint string, healthy bool, state automation.ConnectionState) error {
	if p.format == outputJSON {
		return p.jsonOut(healthReport{Endpoint: endpoint, Healthy: healthy, State: state.String()})
	}
	mark := p.ok.Sprint("connected")
	if !healthy {
		mark = p.fail.Sprint("disconnected")
	}
	_, err := fmt.Fprintf(p.out, "%s %s\n", mark, p.dim.Sprint(endpoint))
	return err
}

func (p *printer) result(result automation.Result) error {
	if p.format == outputJSON {
		return p.jsonOut(result)
	}

	var b strings.Builder
	if result.Success {
		b.WriteString(p.ok.Sprint("success"))
	} else {
		b.WriteString(p.fail.Sprint("failed"))
	}
	if result.Message != "" {
		b.WriteString(": " + result.Message)
	}
	if n, ok := result.Executed(); ok {
		fmt.Fprintf(&b, " (%d actions executed)", n)
	}
	b.WriteString("\n")
	if result.Error != "" {
		fmt.Fprintf(&b, "  %s %s\n", p.fail.Sprint("error:"), result.Error)
	}
	_, err := io.WriteString(p.out, b.String())
	return err
}

func (p *printer) actions(actions []automation.Action) error {
	raws, err := automation.RawActions(actions)
	if err != nil {
		return err
	}
	if p.format == outputJSON {
		return p.jsonOut(map[string]interface{}{"actions": raws})
	}

	if len(raws) == 0 {
		_, err := fmt.Fprintln(p.out, p.dim.Sprint("no actions"))
		return err
	}
	for i, raw := range raws {
		line := fmt.Sprintf("%2d. %s%s", i+1, p.op.Sprint(raw.Operation), describeParams(raw))
		if raw.Thought != "" {
			line += " " + p.dim.Sprintf("# %s", raw.Thought)
		}
		if _, err := fmt.Fprintln(p.out, line); err != nil {
			return err
		}
	}
	return nil
}

// describeParams renders the parameters of a wire action in a compact form.
func describeParams(raw automation.RawAction) string {
	var parts []string
	if raw.X != "" || raw.Y != "" {
		parts = append(parts, fmt.Sprintf("at %s,%s", raw.X, raw.Y))
	}
	if len(raw.Keys) > 0 {
		parts = append(parts, strings.Join(raw.Keys, "+"))
	}
	if raw.Content != "" {
		parts = append(parts, fmt.Sprintf("%q", raw.Content))
	}
	if raw.Summary != "" {
		parts = append(parts, fmt.Sprintf("summary=%q", raw.Summary))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}
