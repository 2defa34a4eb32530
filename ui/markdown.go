package ui

import (
	"regexp"
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"

	"skycast/config"
)

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
	ansiRegex       = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// renderMarkdown renders a finished reply for the terminal. Links are reduced
// to their URL and autolinking is off so the terminal can detect them.
func renderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}
	content = mdLinkRegex.ReplaceAllString(content, "$2")

	p := parser.NewWithExtensions(markdown.Extensions() &^ parser.Autolink)
	doc := p.Parse([]byte(content))
	rendered := string(gomarkdown.Render(doc, markdown.NewRenderer(width, 0)))

	rendered = inlineCodeRegex.ReplaceAllString(rendered, "\x1b[31m$1\x1b[0m")
	lines := strings.Split(rendered, "\n")
	for i, line := range lines {
		lines[i] = urlRegex.ReplaceAllString(line, "\x1b[31m$1\x1b[0m")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func renderMarkdownCmd(index int, content string, width int) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		rendered := renderMarkdown(content, width)
		if config.DebugLog != nil {
			config.DebugLog.Printf("Markdown for entry %d rendered in %v", index, time.Since(start))
		}
		return markdownRenderedMsg{index: index, rendered: rendered}
	}
}

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}
