package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"

	"github.com/ridgedb/ridgedb/internal/config"
	"github.com/ridgedb/ridgedb/internal/logx"
)

// printYAML marshals v with gopkg.in/yaml.v3 for machine-readable output
// (--yaml), the same struct-tag-driven serialization the teacher corpus
// uses for its own config files, repurposed here for command output
// instead of config round-tripping.
func printYAML(v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("rendering yaml: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func loggerFor(cfg *config.ServerConfig) logx.Logger {
	return logx.New(os.Stderr, cfg.LogLevel)
}

// profile is the color profile this run should render with; termenv
// degrades to ascii automatically when stdout isn't a tty, so --pretty on
// a pipe is harmless rather than garbled.
func profile() termenv.Profile {
	return termenv.NewOutput(os.Stdout).ColorProfile()
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

func printHeading(s string) {
	if pretty {
		fmt.Println(headingStyle.Render(s))
		return
	}
	fmt.Println(s)
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if pretty {
		fmt.Println(successStyle.Render("✓ ") + msg)
		return
	}
	fmt.Println(msg)
}

// printTable renders rows as a plain tab-aligned table. headers is
// printed first, dimmed when --pretty is set.
func printTable(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	headerLine := strings.Join(headers, "\t")
	if pretty {
		headerLine = dimStyle.Render(headerLine)
	}
	fmt.Fprintln(w, headerLine)
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

// renderHelpMarkdown renders long-form help text as markdown via glamour
// when --pretty is set, falling back to the raw text otherwise.
func renderHelpMarkdown(markdown string) string {
	if !pretty {
		return markdown
	}
	out, err := glamour.Render(markdown, "auto")
	if err != nil {
		return markdown
	}
	return out
}
