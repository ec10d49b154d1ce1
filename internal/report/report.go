package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Report is the plain-text run report written next to a tool's output.
type Report struct {
	Title     string
	RunID     uuid.UUID
	Generated time.Time
	Stats     []Stat
	Sections  []Section
}

type Stat struct {
	Name  string
	Value string
}

type Section struct {
	Title string
	// Blocks are separated by blank lines in the output.
	Blocks [][]string
}

func New(title string, now time.Time) *Report {
	return &Report{
		Title:     title,
		RunID:     uuid.New(),
		Generated: now,
	}
}

// Add appends a statistic. Integers are rendered with thousands separators.
func (r *Report) Add(name string, value any) *Report {
	r.Stats = append(r.Stats, Stat{Name: name, Value: formatValue(value)})
	return r
}

func (r *Report) AddSection(s Section) *Report {
	r.Sections = append(r.Sections, s)
	return r
}

// Value returns the rendered value of a statistic, or "" when absent.
func (r *Report) Value(name string) string {
	for _, s := range r.Stats {
		if s.Name == name {
			return s.Value
		}
	}
	return ""
}

func (r *Report) Write(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", strings.ToUpper(r.Title))
	fmt.Fprintf(&b, "Run ID: %s\n", r.RunID)
	fmt.Fprintf(&b, "Generated: %s\n", r.Generated.Format("2006-01-02 15:04:05"))
	b.WriteString(Rule('=', 80) + "\n\n")

	b.WriteString("STATISTICS:\n")
	b.WriteString(Rule('-', 40) + "\n")
	for _, s := range r.Stats {
		fmt.Fprintf(&b, "%s: %s\n", s.Name, s.Value)
	}

	for _, sec := range r.Sections {
		fmt.Fprintf(&b, "\n\n%s:\n", strings.ToUpper(sec.Title))
		b.WriteString(Rule('-', 40) + "\n")
		for _, block := range sec.Blocks {
			b.WriteString("\n")
			for _, line := range block {
				b.WriteString(line + "\n")
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Report) Save(path string) error {
	var buf bytes.Buffer
	if err := r.Write(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

func Rule(c rune, n int) string {
	return strings.Repeat(string(c), n)
}

// Number renders n with thousands separators.
func Number(n int) string {
	return printer.Sprintf("%d", n)
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func formatValue(v any) string {
	switch x := v.(type) {
	case int:
		return Number(x)
	case int64:
		return Number(int(x))
	case float64:
		return printer.Sprintf("%.1f", x)
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
