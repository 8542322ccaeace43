package publish

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wricardo/readme-2048/game/engine"
)

//go:embed readme.md.tmpl
var defaultTemplate string

// HighScoreDateLayout renders the high score date as "05 Mar, 2024"
const HighScoreDateLayout = "02 Jan, 2006"

// ReadmeData is everything the README shows
type ReadmeData struct {
	CurrentScore int
	HighScore    int
	HighScoreAt  *time.Time
	Grid         engine.Grid
	PreviousGrid engine.Grid
	ServerURL    string
}

// Cell is one rendered board cell
type Cell struct {
	Value   int
	Empty   bool
	Changed bool
}

type readmeView struct {
	CurrentScore  int
	HighScore     int
	HighScoreDate string
	Header        []struct{}
	Rows          [][]Cell
	ServerURL     string
}

// Renderer turns game state into README markdown
type Renderer struct {
	tmpl *template.Template
}

var funcs = template.FuncMap{
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
}

// NewRenderer parses the template at templatePath, or the built-in README
// template when templatePath is empty.
func NewRenderer(templatePath string) (*Renderer, error) {
	text := defaultTemplate
	name := "readme.md.tmpl"
	if templatePath != "" {
		data, err := os.ReadFile(templatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read readme template: %w", err)
		}
		text = string(data)
		name = templatePath
	}

	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse readme template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the template. Cells that differ from PreviousGrid are
// marked changed; a missing or differently sized previous grid marks nothing.
func (r *Renderer) Render(data ReadmeData) ([]byte, error) {
	view := readmeView{
		CurrentScore: data.CurrentScore,
		HighScore:    data.HighScore,
		Header:       make([]struct{}, data.Grid.Size()),
		Rows:         boardRows(data.Grid, data.PreviousGrid),
		ServerURL:    strings.TrimRight(data.ServerURL, "/"),
	}
	if data.HighScoreAt != nil {
		view.HighScoreDate = data.HighScoreAt.Format(HighScoreDateLayout)
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render readme: %w", err)
	}
	return buf.Bytes(), nil
}

func boardRows(grid, previous engine.Grid) [][]Cell {
	compare := previous != nil && previous.Validate(grid.Size()) == nil
	rows := make([][]Cell, len(grid))
	for r, row := range grid {
		rows[r] = make([]Cell, len(row))
		for c, v := range row {
			rows[r][c] = Cell{
				Value:   v,
				Empty:   v == engine.Empty,
				Changed: compare && v != engine.Empty && previous[r][c] != v,
			}
		}
	}
	return rows
}

// PlainBoard renders the grid as monospace text with comma-grouped values,
// used by the terminal client.
func PlainBoard(grid engine.Grid) string {
	width := 1
	for _, row := range grid {
		for _, v := range row {
			if l := len(humanize.Comma(int64(v))); l > width {
				width = l
			}
		}
	}

	var b strings.Builder
	sep := "+" + strings.Repeat(strings.Repeat("-", width+2)+"+", grid.Size()) + "\n"
	b.WriteString(sep)
	for _, row := range grid {
		b.WriteString("|")
		for _, v := range row {
			text := ""
			if v != engine.Empty {
				text = humanize.Comma(int64(v))
			}
			b.WriteString(" " + strings.Repeat(" ", width-len(text)) + text + " |")
		}
		b.WriteString("\n")
		b.WriteString(sep)
	}
	return b.String()
}
