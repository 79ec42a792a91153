package userinteraction

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"research-agent/internal/application/port/output"
)

var _ output.ProgressPort = (*ConsoleProgress)(nil)

type ConsoleProgress struct {
	out io.Writer
}

func NewConsoleProgress() *ConsoleProgress {
	return NewConsoleProgressWriter(color.Output)
}

func NewConsoleProgressWriter(w io.Writer) *ConsoleProgress {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleProgress{out: w}
}

func (u *ConsoleProgress) ShowSubtopics(ctx context.Context, subtopics []string) {
	bold := color.New(color.FgCyan, color.Bold)
	bold.Fprintf(u.out, "\n📋 Research plan (%d subtopics)\n", len(subtopics))
	for i, s := range subtopics {
		fmt.Fprintf(u.out, "   %d. %s\n", i+1, s)
	}
}

func (u *ConsoleProgress) ShowSubtopicStart(ctx context.Context, subtopic string, index, total int) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(u.out, "\n━━━ Subtopic %d/%d: %s ━━━\n", index, total, subtopic)
}

func (u *ConsoleProgress) ShowStep(ctx context.Context, step int, state string) {
	dim := color.New(color.Faint)
	dim.Fprintf(u.out, "[%d] %s\n", step, state)
}

func (u *ConsoleProgress) ShowThinking(ctx context.Context, content string) {
	if content == "" {
		return
	}

	blue := color.New(color.FgBlue)
	blue.Fprint(u.out, "💭 Thought: ")

	dim := color.New(color.Faint)
	dim.Fprintln(u.out, truncate(content, 500))
}

func (u *ConsoleProgress) ShowAction(ctx context.Context, actionType, target string) {
	icon, name := actionDisplay(actionType)

	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(u.out, "%s %s", icon, name)
	if target != "" {
		color.New(color.Faint).Fprintf(u.out, " %s", truncate(target, 80))
	}
	fmt.Fprintln(u.out)
}

func (u *ConsoleProgress) ShowTrace(ctx context.Context, entry string, isError bool) {
	if isError {
		red := color.New(color.FgRed)
		red.Fprint(u.out, "❌ ")
		color.New(color.Faint).Fprintln(u.out, truncate(entry, 300))
		return
	}

	green := color.New(color.FgGreen)
	green.Fprintf(u.out, "✓ %s\n", truncate(entry, 150))
}

func (u *ConsoleProgress) ShowReview(ctx context.Context, subtopic string, sufficient bool, reasoning string) {
	if sufficient {
		color.New(color.FgGreen, color.Bold).Fprintf(u.out, "🔎 Enough evidence for %q\n", subtopic)
	} else {
		color.New(color.FgMagenta, color.Bold).Fprintf(u.out, "🔎 More evidence needed for %q\n", subtopic)
	}
	if reasoning != "" {
		color.New(color.Faint).Fprintf(u.out, "   %s\n", truncate(reasoning, 200))
	}
}

func actionDisplay(actionType string) (string, string) {
	displays := map[string][2]string{
		"click":        {"🖱️", "Click"},
		"type":         {"✏️", "Type"},
		"scroll_read":  {"📜", "Scroll and read"},
		"close_page":   {"🗙", "Close tab"},
		"wait":         {"⏳", "Wait"},
		"go_back":      {"↩️", "Back"},
		"go_to_search": {"🔎", "Search"},
		"retry":        {"🔁", "Retry"},
		"navigate":     {"🌐", "Navigate"},
	}

	if display, ok := displays[strings.ToLower(actionType)]; ok {
		return display[0], display[1]
	}
	return "🔧", actionType
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
