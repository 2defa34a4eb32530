package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"skycast/model"
)

// toolPalette lists the tool catalog with a fuzzy filter.
type toolPalette struct {
	open     bool
	input    textinput.Model
	catalog  []model.FunctionSpec
	matches  []model.FunctionSpec
	selected int
}

func newToolPalette(catalog []model.FunctionSpec) toolPalette {
	ti := textinput.New()
	ti.Placeholder = "filter tools"
	ti.Prompt = "/ "
	ti.CharLimit = 64
	return toolPalette{input: ti, catalog: catalog, matches: catalog}
}

func (p *toolPalette) Open(query string) {
	p.open = true
	p.input.SetValue(query)
	p.input.Focus()
	p.refilter()
}

func (p *toolPalette) Close() {
	p.open = false
	p.input.Blur()
}

// refilter applies the current query. An empty query lists the catalog in
// server order; otherwise matches are ranked by fuzzy score.
func (p *toolPalette) refilter() {
	p.matches = FilterTools(p.catalog, p.input.Value())
	if p.selected >= len(p.matches) {
		p.selected = max(len(p.matches)-1, 0)
	}
}

// FilterTools fuzzy matches query against tool names.
func FilterTools(catalog []model.FunctionSpec, query string) []model.FunctionSpec {
	query = strings.TrimSpace(query)
	if query == "" {
		return catalog
	}
	names := make([]string, len(catalog))
	for i, spec := range catalog {
		names[i] = spec.Name
	}
	found := fuzzy.Find(query, names)
	out := make([]model.FunctionSpec, len(found))
	for i, match := range found {
		out[i] = catalog[match.Index]
	}
	return out
}

func (p *toolPalette) Move(delta int) {
	if len(p.matches) == 0 {
		return
	}
	p.selected = (p.selected + delta + len(p.matches)) % len(p.matches)
}

func (p toolPalette) Selected() (model.FunctionSpec, bool) {
	if len(p.matches) == 0 {
		return model.FunctionSpec{}, false
	}
	return p.matches[p.selected], true
}

func (p toolPalette) View(width int) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Tools"))
	b.WriteString("\n")
	b.WriteString(p.input.View())
	b.WriteString("\n\n")

	if len(p.matches) == 0 {
		b.WriteString(DimStyle.Render("no matching tools"))
		return PaletteStyle.Render(b.String())
	}

	inner := max(width-6, 20)
	for i, spec := range p.matches {
		b.WriteString(ToolLine(spec, inner, i == p.selected))
		b.WriteString("\n")
	}
	return PaletteStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// ToolLine renders "name(params)  description" truncated to width cells.
func ToolLine(spec model.FunctionSpec, width int, selected bool) string {
	params := make([]string, 0, len(spec.Parameters))
	for _, p := range spec.Parameters {
		name := p.Name
		if !p.Required {
			name += "?"
		}
		params = append(params, name)
	}
	head := spec.Name + "(" + strings.Join(params, ", ") + ")"

	desc := strings.Join(strings.Fields(spec.Description), " ")
	room := width - runewidth.StringWidth(head) - 2
	switch {
	case room <= 3:
		head = runewidth.Truncate(head, width, "...")
		desc = ""
	default:
		desc = runewidth.Truncate(desc, room, "...")
	}

	if selected {
		head = SelectedStyle.Render(head)
	} else {
		head = HighlightStyle.Render(head)
	}
	if desc == "" {
		return head
	}
	return head + "  " + DimStyle.Render(desc)
}
