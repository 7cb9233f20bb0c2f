package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	clrBrand  = lipgloss.Color("114")
	clrDim    = lipgloss.Color("245")
	clrRed    = lipgloss.Color("203")
	brandText = lipgloss.NewStyle().Foreground(clrBrand)
	dimText   = lipgloss.NewStyle().Foreground(clrDim)
	errText   = lipgloss.NewStyle().Foreground(clrRed)
)

type replyMsg struct {
	output string
	err    error
	quit   bool
	clear  bool
}

type chatModel struct {
	ctx       context.Context
	client    *apiClient
	viewport  viewport.Model
	textInput textinput.Model
	spinner   spinner.Model
	messages  []string
	banner    []string
	isLoading bool
	ready     bool
	width     int
	height    int
}

func initialModel(ctx context.Context, client *apiClient, serverURL string) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about patients or type /help..."
	ti.Focus()
	ti.CharLimit = 1000
	ti.Width = 80

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = brandText

	banner := []string{
		brandText.Render("careline chat") + dimText.Render("  connected to "+serverURL),
		dimText.Render("Commands: /help /clear /quit"),
	}

	return chatModel{
		ctx:       ctx,
		client:    client,
		textInput: ti,
		spinner:   s,
		messages:  append([]string(nil), banner...),
		banner:    banner,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	m.textInput, tiCmd = m.textInput.Update(msg)
	m.spinner, spCmd = m.spinner.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.isLoading {
				return m, nil
			}
			input := strings.TrimSpace(m.textInput.Value())
			if input == "" {
				return m, nil
			}
			m.textInput.SetValue("")

			m.messages = append(m.messages, brandText.Render("you> ")+input)
			m.isLoading = true
			m.refreshViewport()
			return m, tea.Batch(m.sendCmd(input), m.spinner.Tick)
		}

	case tea.WindowSizeMsg:
		m.applyWindowSize(msg.Width, msg.Height)

	case replyMsg:
		m.isLoading = false
		if msg.quit {
			return m, tea.Quit
		}
		if msg.clear {
			m.messages = append([]string(nil), m.banner...)
			m.refreshViewport()
			return m, nil
		}
		if msg.err != nil {
			m.messages = append(m.messages, errText.Render(fmt.Sprintf("error: %v", msg.err)))
		} else if msg.output != "" {
			m.messages = append(m.messages, msg.output)
		}
		m.refreshViewport()
		return m, nil
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m chatModel) View() string {
	if !m.ready {
		return "\n  Connecting..."
	}

	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.isLoading {
		b.WriteString(m.spinner.View() + " ")
	} else {
		b.WriteString(brandText.Render("you> "))
	}
	b.WriteString(m.textInput.View())
	b.WriteString("\n")
	b.WriteString(dimText.Render("/help for commands, esc to quit"))
	return b.String()
}

func (m *chatModel) refreshViewport() {
	m.viewport.SetContent(strings.Join(m.messages, "\n\n"))
	m.viewport.GotoBottom()
}

func (m *chatModel) applyWindowSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width = width
	m.height = height

	vpWidth := maxInt(width-2, 1)
	m.textInput.Width = maxInt(width-16, 1)
	vpHeight := maxInt(height-3, 1)

	if !m.ready {
		m.viewport = viewport.New(vpWidth, vpHeight)
		m.viewport.SetContent(strings.Join(m.messages, "\n\n"))
		m.ready = true
		return
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
}

func (m *chatModel) sendCmd(input string) tea.Cmd {
	return func() tea.Msg {
		switch strings.ToLower(input) {
		case "/quit", "/exit":
			return replyMsg{quit: true}
		case "/clear":
			if err := m.client.Clear(m.ctx); err != nil {
				return replyMsg{err: err}
			}
			return replyMsg{clear: true}
		case "/help":
			input = "help"
		}

		output, err := m.client.Send(m.ctx, input)
		if err != nil {
			return replyMsg{err: err}
		}
		return replyMsg{output: output}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Run connects to serverURL and drives the chat loop until the user quits.
func Run(ctx context.Context, serverURL string) error {
	client := newAPIClient(serverURL)
	if err := client.Ping(ctx); err != nil {
		return err
	}
	program := tea.NewProgram(initialModel(ctx, client, serverURL), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
