package defscan

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	// FormatText outputs human-readable text (default)
	FormatText OutputFormat = "text"
	// FormatJSON outputs machine-readable JSON
	FormatJSON OutputFormat = "json"
	// FormatMarkdown outputs Markdown format for documentation
	FormatMarkdown OutputFormat = "markdown"
)

// ColorMode represents when to use colors in output
type ColorMode string

const (
	// ColorAuto automatically detects TTY and enables colors appropriately
	ColorAuto ColorMode = "auto"
	// ColorAlways forces colors to be enabled
	ColorAlways ColorMode = "always"
	// ColorNever disables colors
	ColorNever ColorMode = "never"
)

// Formatter renders a scan report for output.
type Formatter interface {
	Format(report *Report) ([]byte, error)
	ContentType() string
}

// NewFormatter creates a formatter for the given output format.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: true}, nil
	case FormatMarkdown:
		return &MarkdownFormatter{}, nil
	case FormatText, "":
		return NewTextFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// JSONFormatter outputs reports in JSON format
type JSONFormatter struct {
	Pretty bool
}

func (f *JSONFormatter) Format(report *Report) ([]byte, error) {
	if f.Pretty {
		return json.MarshalIndent(report, "", "  ")
	}
	return json.Marshal(report)
}

func (f *JSONFormatter) ContentType() string {
	return "application/json"
}

// TextFormatter outputs reports as human-readable text, colored when the
// destination is a terminal.
type TextFormatter struct {
	// ColorMode controls when to enable colors (auto, always, never)
	ColorMode ColorMode
	// Writer is only consulted for TTY detection in ColorAuto mode
	Writer io.Writer
	// MaxTypes caps the per-mod type breakdown; 0 means unlimited
	MaxTypes int
}

// NewTextFormatter creates a TextFormatter with sensible defaults.
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		ColorMode: ColorAuto,
		Writer:    os.Stdout,
	}
}

func (f *TextFormatter) Format(report *Report) ([]byte, error) {
	enable := f.shouldEnableColor()

	name := fmt.Sprintf
	count := fmt.Sprintf
	dim := fmt.Sprintf
	if enable {
		name = color.New(color.FgCyan, color.Bold).Sprintf
		count = color.New(color.FgGreen).Sprintf
		dim = color.New(color.Faint).Sprintf
	}

	var sb strings.Builder
	for _, mod := range report.Mods {
		sb.WriteString(name("%s", mod.Name))
		sb.WriteString(dim(" (%s)", mod.Path))
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("  defs: %s  files scanned: %d",
			count("%d", mod.Summary.TotalDefs), mod.Summary.FilesScanned))
		if mod.StartupMS > 0 {
			sb.WriteString(fmt.Sprintf("  startup: %dms", mod.StartupMS))
		}
		sb.WriteString("\n")
		for i, tc := range sortedTypeCounts(mod.Summary.TypeCounts) {
			if f.MaxTypes > 0 && i == f.MaxTypes {
				sb.WriteString(dim("    …\n"))
				break
			}
			sb.WriteString(fmt.Sprintf("    %s: %d\n", tc.Tag, tc.Count))
		}
	}
	sb.WriteString(fmt.Sprintf("%d defs in %d files across %d mods\n",
		report.TotalDefs, report.TotalFiles, len(report.Mods)))

	return []byte(sb.String()), nil
}

func (f *TextFormatter) ContentType() string {
	return "text/plain"
}

// shouldEnableColor determines if colors should be enabled based on the ColorMode
func (f *TextFormatter) shouldEnableColor() bool {
	switch f.ColorMode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		if file, ok := f.Writer.(*os.File); ok {
			return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
		}
		return false
	}
}

// MarkdownFormatter outputs reports as a Markdown table.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(report *Report) ([]byte, error) {
	var sb strings.Builder
	sb.WriteString("# Defs Summary\n\n")
	sb.WriteString("| Mod | Defs | Files | Top types |\n")
	sb.WriteString("| --- | ---: | ---: | --- |\n")
	for _, mod := range report.Mods {
		tcs := sortedTypeCounts(mod.Summary.TypeCounts)
		if len(tcs) > 3 {
			tcs = tcs[:3]
		}
		parts := make([]string, 0, len(tcs))
		for _, tc := range tcs {
			parts = append(parts, fmt.Sprintf("%s (%d)", tc.Tag, tc.Count))
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s |\n",
			mod.Name, mod.Summary.TotalDefs, mod.Summary.FilesScanned,
			strings.Join(parts, ", ")))
	}
	sb.WriteString(fmt.Sprintf("\n**Total:** %d defs in %d files across %d mods\n",
		report.TotalDefs, report.TotalFiles, len(report.Mods)))
	return []byte(sb.String()), nil
}

func (f *MarkdownFormatter) ContentType() string {
	return "text/markdown"
}

type typeCount struct {
	Tag   string
	Count int
}

// sortedTypeCounts orders a type breakdown by descending count, then name,
// for stable output.
func sortedTypeCounts(counts map[string]int) []typeCount {
	out := make([]typeCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, typeCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
