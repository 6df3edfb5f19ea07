// Package ui renders the agent's event stream to the terminal. It is a
// plain listener over loop events; the agent never depends on it.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"raven/internal/agent"
)

var (
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	reasoningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

// Printer renders events in arrival order.
type Printer struct {
	w             io.Writer
	showReasoning bool
	inText        bool
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, showReasoning bool) *Printer {
	return &Printer{w: w, showReasoning: showReasoning}
}

// Consume renders events until the channel closes.
func (p *Printer) Consume(events <-chan agent.Event) {
	for ev := range events {
		p.render(ev)
	}
}

func (p *Printer) render(ev agent.Event) {
	switch ev.Kind {
	case agent.EventText:
		fmt.Fprint(p.w, ev.Text)
		p.inText = true

	case agent.EventReasoning:
		if p.showReasoning {
			fmt.Fprint(p.w, reasoningStyle.Render(ev.Text))
		}

	case agent.EventToolCall:
		p.breakLine()
		label := ev.ToolName
		if detail := keyArgument(ev.ToolName, ev.Args); detail != "" {
			label += dimStyle.Render(" " + detail)
		}
		prefix := "→"
		if ev.SessionID != "" {
			prefix = "  ↳"
		}
		fmt.Fprintf(p.w, "%s %s\n", prefix, toolStyle.Render(label))

	case agent.EventToolResult:
		if ev.Result != nil && !ev.Result.Success {
			p.breakLine()
			fmt.Fprintf(p.w, "  %s\n", errorStyle.Render(ev.Result.Error))
		}

	case agent.EventRunDone:
		p.breakLine()
		if ev.Result != nil && ev.Result.Error != "" {
			fmt.Fprintf(p.w, "%s\n", errorStyle.Render("run failed: "+ev.Result.Error))
		}
	}
}

func (p *Printer) breakLine() {
	if p.inText {
		fmt.Fprintln(p.w)
		p.inText = false
	}
}

// keyArgument picks the one argument worth showing inline.
func keyArgument(toolName string, args map[string]any) string {
	var v any
	switch toolName {
	case "bash":
		v = args["command"]
	case "read", "write", "edit":
		v = args["file_path"]
	case "glob", "grep":
		v = args["pattern"]
	case "web_search":
		v = args["query"]
	case "load_skill":
		v = args["name"]
	case "sub_agent":
		v = args["objective"]
	}
	s, _ := v.(string)
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 60 {
		s = s[:60] + "…"
	}
	return s
}
