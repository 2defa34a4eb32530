// Package ui is the interactive chat view of skycast.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"skycast/config"
	"skycast/model"
)

const eventBuffer = 256

type Options struct {
	Keys      config.KeyBindingsConfig
	ModelName string
	Servers   []string
}

// ChatView drives one conversation through an orchestrator. Input is
// submitted with Enter; "exit" quits, "/tools [query]" opens the tool
// palette and "/retry" resumes a failed turn.
type ChatView struct {
	ctx  context.Context
	orch *model.Orchestrator
	opts Options

	keyActions map[string]string // key string -> action

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	palette  toolPalette

	width  int
	height int
	ready  bool

	entries []entry
	current *strings.Builder

	streaming  bool
	turn       int
	cancelTurn context.CancelFunc
	events     chan tea.Msg

	flash string
}

func NewChatView(ctx context.Context, orch *model.Orchestrator, opts Options) ChatView {
	ta := textarea.New()
	ta.Placeholder = "Ask about the weather ('exit' to quit, /tools, /retry)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = DimStyle

	keyActions := make(map[string]string)
	for _, action := range config.Actions() {
		if key := opts.Keys.ActionKey(action); key != "" {
			keyActions[key] = action
		}
	}

	return ChatView{
		ctx:        ctx,
		orch:       orch,
		opts:       opts,
		keyActions: keyActions,
		input:      ta,
		spinner:    sp,
		palette:    newToolPalette(orch.Catalog()),
		current:    &strings.Builder{},
		events:     make(chan tea.Msg, eventBuffer),
	}
}

func (c ChatView) Init() tea.Cmd {
	return textarea.Blink
}

func (c ChatView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width, c.height = msg.Width, msg.Height
		c.input.SetWidth(max(msg.Width-2, 10))
		vh := max(msg.Height-c.input.Height()-4, 3)
		if !c.ready {
			c.viewport = viewport.New(msg.Width, vh)
			c.ready = true
		} else {
			c.viewport.Width, c.viewport.Height = msg.Width, vh
		}
		c.refresh(true)
		return c, nil

	case tea.KeyMsg:
		return c.handleKey(msg)

	case spinner.TickMsg:
		if !c.streaming {
			return c, nil
		}
		var cmd tea.Cmd
		c.spinner, cmd = c.spinner.Update(msg)
		c.refresh(false)
		return c, cmd

	case turnDeltaMsg:
		if msg.turn != c.turn {
			return c, c.waitForEvent()
		}
		c.current.WriteString(msg.text)
		c.refresh(true)
		return c, c.waitForEvent()

	case turnDoneMsg:
		if msg.turn != c.turn {
			return c, c.waitForEvent()
		}
		return c.finishTurn(msg)

	case markdownRenderedMsg:
		if msg.index >= 0 && msg.index < len(c.entries) {
			c.entries[msg.index].Rendered = msg.rendered
			c.refresh(false)
		}
		return c, nil
	}

	return c, nil
}

func (c ChatView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	action := c.keyActions[key]

	if key == "ctrl+c" {
		if c.streaming {
			c.cancelTurn()
			return c, nil
		}
		return c, tea.Quit
	}

	if c.palette.open {
		switch {
		case action == "close_palette" || action == "tool_palette":
			c.palette.Close()
			c.input.Focus()
		case action == "palette_down":
			c.palette.Move(1)
		case action == "palette_up":
			c.palette.Move(-1)
		case key == "enter":
			if spec, ok := c.palette.Selected(); ok {
				c.input.InsertString(spec.Name + " ")
			}
			c.palette.Close()
			c.input.Focus()
		default:
			var cmd tea.Cmd
			c.palette.input, cmd = c.palette.input.Update(msg)
			c.palette.refilter()
			return c, cmd
		}
		return c, nil
	}

	switch action {
	case "quit":
		if c.streaming {
			c.cancelTurn()
		}
		return c, tea.Quit
	case "retry_turn":
		return c.retry()
	case "tool_palette":
		c.palette.Open("")
		c.input.Blur()
		return c, nil
	case "yank_last_response":
		if last := c.lastReply(); last != "" {
			c.copy(last, "Copied last reply")
		}
		return c, nil
	case "yank_conversation":
		c.copy(c.transcript(), "Copied conversation")
		return c, nil
	case "clear_input":
		c.input.Reset()
		return c, nil
	case "scroll_down":
		c.viewport.LineDown(1)
		return c, nil
	case "scroll_up":
		c.viewport.LineUp(1)
		return c, nil
	case "half_page_down":
		c.viewport.HalfPageDown()
		return c, nil
	case "half_page_up":
		c.viewport.HalfPageUp()
		return c, nil
	case "page_down":
		c.viewport.PageDown()
		return c, nil
	case "page_up":
		c.viewport.PageUp()
		return c, nil
	}

	switch key {
	case "esc":
		if c.streaming {
			c.cancelTurn()
		}
		return c, nil
	case "enter":
		if c.streaming {
			return c, nil
		}
		text := c.input.Value()
		c.input.Reset()
		return c.submit(text)
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

func (c ChatView) submit(text string) (tea.Model, tea.Cmd) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return c, nil
	case text == "exit":
		return c, tea.Quit
	case text == "/retry":
		return c.retry()
	case text == "/tools" || strings.HasPrefix(text, "/tools "):
		c.palette.Open(strings.TrimSpace(strings.TrimPrefix(text, "/tools")))
		c.input.Blur()
		return c, nil
	case strings.HasPrefix(text, "/"):
		c.addSystem(fmt.Sprintf("Unknown command %s. Try /tools [query], /retry or exit.", strings.Fields(text)[0]))
		c.refresh(true)
		return c, nil
	}

	c.entries = append(c.entries, entry{Role: "user", Content: text, Timestamp: time.Now()})
	return c.startTurn(func(ctx context.Context, onText func(string)) (string, error) {
		return c.orch.RunTurn(ctx, text, onText)
	})
}

func (c ChatView) retry() (tea.Model, tea.Cmd) {
	if c.streaming {
		return c, nil
	}
	if c.orch.State() != model.TurnFailed {
		c.addSystem("Nothing to retry.")
		c.refresh(true)
		return c, nil
	}
	return c.startTurn(c.orch.RetryTurn)
}

// startTurn runs fn on its own goroutine. Deltas and the final outcome are
// delivered through c.events and picked up by waitForEvent.
func (c ChatView) startTurn(fn func(context.Context, func(string)) (string, error)) (tea.Model, tea.Cmd) {
	c.turn++
	turn := c.turn
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelTurn = cancel
	c.streaming = true
	c.current = &strings.Builder{}
	c.flash = ""

	events := c.events
	appCtx := c.ctx
	send := func(msg tea.Msg) {
		select {
		case events <- msg:
		case <-appCtx.Done():
		}
	}

	go func() {
		defer cancel()
		reply, err := fn(ctx, func(s string) { send(turnDeltaMsg{turn: turn, text: s}) })
		send(turnDoneMsg{turn: turn, reply: reply, err: err})
	}()

	c.refresh(true)
	return c, tea.Batch(c.waitForEvent(), c.spinner.Tick)
}

func (c ChatView) waitForEvent() tea.Cmd {
	events := c.events
	ctx := c.ctx
	return func() tea.Msg {
		select {
		case msg := <-events:
			return msg
		case <-ctx.Done():
			return nil
		}
	}
}

func (c ChatView) finishTurn(msg turnDoneMsg) (tea.Model, tea.Cmd) {
	c.streaming = false
	c.current = &strings.Builder{}

	if msg.err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[TURN] chat view turn %d failed: %v", msg.turn, msg.err)
		}
		c.addSystem(c.describeError(msg.err))
		c.refresh(true)
		return c, nil
	}

	c.entries = append(c.entries, entry{
		Role:      "assistant",
		Content:   msg.reply,
		Rendered:  msg.reply,
		Timestamp: time.Now(),
	})
	c.refresh(true)
	return c, renderMarkdownCmd(len(c.entries)-1, msg.reply, max(c.width-4, 20))
}

func (c ChatView) describeError(err error) string {
	retry := c.opts.Keys.DisplayActionKey("retry_turn")
	switch {
	case errors.Is(err, context.Canceled):
		return "Cancelled. /retry or " + retry + " resumes the turn."
	case errors.Is(err, model.ErrStreamInterrupted):
		return fmt.Sprintf("The response stream broke off (%v). /retry or %s resumes the turn.", err, retry)
	case errors.Is(err, model.ErrToolRoundsExceeded):
		return "The model kept calling tools without answering. Ask again or rephrase."
	default:
		return "Error: " + err.Error()
	}
}

func (c *ChatView) addSystem(text string) {
	c.entries = append(c.entries, entry{Role: "system", Content: text, Rendered: text, Timestamp: time.Now()})
}

func (c *ChatView) copy(text, done string) {
	if err := clipboard.WriteAll(text); err != nil {
		c.flash = "Copy failed: " + err.Error()
		return
	}
	c.flash = done
}

func (c ChatView) lastReply() string {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].Role == "assistant" {
			return c.entries[i].Content
		}
	}
	return ""
}

func roleLabel(role string) string {
	switch role {
	case "user":
		return "You"
	case "assistant":
		return "Assistant"
	default:
		return "System"
	}
}

// transcript is the plain text form of the conversation for the clipboard.
func (c ChatView) transcript() string {
	var b strings.Builder
	for _, e := range c.entries {
		fmt.Fprintf(&b, "[%s] %s:\n%s\n\n", e.Timestamp.Format("15:04"), roleLabel(e.Role), e.Content)
	}
	return b.String()
}

func (c *ChatView) refresh(toBottom bool) {
	if !c.ready {
		return
	}
	wrap := lipgloss.NewStyle().Width(max(c.width-2, 10))

	var b strings.Builder
	for _, e := range c.entries {
		header := DimStyle.Render("["+e.Timestamp.Format("15:04")+"] ") + labelStyle(e.Role).Render(roleLabel(e.Role)+":")
		b.WriteString(header + "\n")
		body := e.Rendered
		if body == "" {
			body = e.Content
		}
		switch e.Role {
		case "system":
			b.WriteString(ErrorStyle.Render(wrap.Render(body)))
		case "assistant":
			b.WriteString(body)
		default:
			b.WriteString(wrap.Render(body))
		}
		b.WriteString("\n\n")
	}

	if c.streaming {
		b.WriteString(labelStyle("assistant").Render("Assistant:") + "\n")
		if c.current.Len() == 0 {
			b.WriteString(c.spinner.View() + DimStyle.Render(" "+c.orch.State().String()))
		} else {
			b.WriteString(wrap.Render(c.current.String()))
		}
	}

	c.viewport.SetContent(b.String())
	if toBottom {
		c.viewport.GotoBottom()
	}
}

func labelStyle(role string) lipgloss.Style {
	switch role {
	case "user":
		return UserStyle
	case "assistant":
		return AssistantStyle.Bold(true)
	default:
		return ErrorStyle
	}
}

func (c ChatView) statusLine() string {
	parts := []string{"skycast"}
	if c.opts.ModelName != "" {
		parts = append(parts, c.opts.ModelName)
	}
	parts = append(parts, fmt.Sprintf("%d tools", len(c.orch.Catalog())))
	if len(c.opts.Servers) > 0 {
		parts = append(parts, strings.Join(c.opts.Servers, ","))
	}
	if c.streaming {
		parts = append(parts, c.orch.State().String())
	}
	if c.flash != "" {
		parts = append(parts, c.flash)
	}
	return StatusStyle.Render(strings.Join(parts, " · "))
}

func (c ChatView) View() string {
	if !c.ready {
		return "Initializing..."
	}

	k := c.opts.Keys
	footer := FormatFooter(
		"Enter", "Send",
		k.DisplayActionKey("tool_palette"), "Tools",
		k.DisplayActionKey("retry_turn"), "Retry",
		k.DisplayActionKey("yank_last_response"), "Copy",
		k.DisplayActionKey("quit"), "Quit",
	)

	sections := []string{c.statusLine(), c.viewport.View()}
	if c.palette.open {
		sections = append(sections, c.palette.View(c.width))
	}
	sections = append(sections, c.input.View(), footer)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// Run shows the chat view until the user quits or ctx is done.
func Run(ctx context.Context, orch *model.Orchestrator, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewChatView(ctx, orch, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
