package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const (
	replyFailed      = "Uplink failure. Please try again later."
	replyInterrupted = "_Transmission interrupted._"
)

func (m mainModel) initPrompt() mainModel {
	m.promptViewport = viewport.New(0, 0)
	m.promptViewport.KeyMap = m.keymap.viewportKeymap

	m.promptSpinner = spinner.New(spinner.WithSpinner(spinner.MiniDot))

	m.promptTextArea = textarea.New()
	m.promptTextArea.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return ""
	})
	m.promptTextArea.ShowLineNumbers = false
	m.promptTextArea.SetHeight(3)
	m.promptTextArea.Placeholder = "Type your prompt here..."
	m.promptTextArea.CharLimit = 0
	m.promptTextArea.KeyMap = m.keymap.textAreaKeymap

	m.promptMDRenderer, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithPreservedNewLines(),
		glamour.WithWordWrap(0),
	)

	m.llmResponses = make(chan llmResponseMsg)

	return m
}

func (m mainModel) promptTitle() string {
	return "Uplink: " + strings.ToUpper(m.settings.Model)
}

func (m mainModel) updatePromptSize() mainModel {
	titleHeight := lipgloss.Height(titleStyle.Render(m.promptTitle()))
	textareaHeight := lipgloss.Height(promptTextareaStyle.Render(m.promptTextArea.View()))
	helpHeight := lipgloss.Height(m.helpModel.View(m.keymap))

	newHeight := m.height - titleHeight - textareaHeight - helpHeight
	if m.err != nil {
		newHeight -= errHeight(m.width, m.err)
	}
	m.promptViewport.Width = m.width
	m.promptViewport.Height = max(newHeight, 0)

	m.promptTextArea.SetWidth(m.width - promptTextareaStyle.GetHorizontalFrameSize())

	var sb strings.Builder
	for _, c := range m.promptChats {
		sb.WriteString(promptEntityStyle.Render(fmt.Sprintf("%s: ", c.displayName())))
		sb.WriteString(promptContentStyle.Render(renderMarkdown(m.promptMDRenderer, c.Content, m.width)))
		sb.WriteString("\n")
	}
	if m.promptIsThinking {
		sb.WriteString(spinnerStyle.Render(m.promptSpinner.View()))
	}

	m.promptViewport.SetContent(sb.String())
	m.promptViewport.GotoBottom()

	return m
}

func (m mainModel) handlePromptEvents(msg tea.Msg) (mainModel, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.updatePromptSize()
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.escape):
			if m.promptCancelFunc != nil {
				m.promptCancelFunc()
				m.promptCancelFunc = nil
				return m, nil
			}

			m.err = nil
			m.promptTextArea.Blur()
			return m.setViewState(viewStateMenu).updateMenuSize(), nil
		case key.Matches(msg, m.keymap.submit):
			return m.sendPrompt()
		case key.Matches(msg, m.keymap.openHelp):
			m.keymap.openHelp.SetEnabled(false)
			m.keymap.closeHelp.SetEnabled(true)
			m.helpModel.ShowAll = true
			return m.updatePromptSize(), nil
		case key.Matches(msg, m.keymap.closeHelp):
			m.keymap.closeHelp.SetEnabled(false)
			m.keymap.openHelp.SetEnabled(true)
			m.helpModel.ShowAll = false
			return m.updatePromptSize(), nil
		}
	case spinner.TickMsg:
		if !m.promptIsThinking {
			// Stop the spinner once the reply is complete.
			return m, nil
		}
		// Updating the spinner here would cause the spinner to tick again
		m.promptSpinner, cmd = m.promptSpinner.Update(msg)
		return m.updatePromptSize(), cmd
	}

	m.promptTextArea, cmd = m.promptTextArea.Update(msg)
	cmds = append(cmds, cmd)

	m.promptViewport, cmd = m.promptViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handlePromptResponse appends a streamed part to the latest reply.
func (m mainModel) handlePromptResponse(msg llmResponseMsg) (mainModel, tea.Cmd) {
	if len(m.promptChats) == 0 {
		return m, nil
	}
	reply := &m.promptChats[len(m.promptChats)-1]

	if msg.err != nil {
		m.promptIsThinking = false
		m.promptCancelFunc = nil

		switch {
		case errors.Is(msg.err, context.Canceled):
			if reply.Content == "" {
				reply.Content = replyInterrupted
			}
		default:
			slog.Error("prompt failed", slog.String("error", msg.err.Error()))
			if reply.Content == "" {
				reply.Content = replyFailed
			}
			m.err = msg.err
		}

		cmd := m.promptTextArea.Focus()
		return m.updatePromptSize(), cmd
	}

	reply.Content += msg.content

	var cmd tea.Cmd
	if msg.done {
		m.promptIsThinking = false
		m.promptCancelFunc = nil
		cmd = m.promptTextArea.Focus()
	}

	return m.updatePromptSize(), cmd
}

func (m mainModel) promptView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(m.promptTitle()),
		m.promptViewport.View(),
		promptTextareaStyle.Render(m.promptTextArea.View()),
		m.helpModel.View(m.keymap),
	)
}

// sendPrompt starts streaming the reply for the text in the textarea. Each
// prompt is sent on its own with the current system message and memory; the
// transcript is only kept for display.
func (m mainModel) sendPrompt() (mainModel, tea.Cmd) {
	prompt := strings.TrimSpace(m.promptTextArea.Value())
	if prompt == "" || m.promptIsThinking {
		return m, nil
	}

	m.err = nil

	l, err := m.newLLM(m.settings.Model)
	if err != nil {
		m.err = fmt.Errorf("error creating llm client: %w", err)
		return m.updatePromptSize(), nil
	}

	chats, err := loadPromptChats(m.db, m.settings, prompt)
	if err != nil {
		m.err = err
		return m.updatePromptSize(), nil
	}

	m.promptChats = append(m.promptChats,
		chat{Role: roleUser, Content: prompt},
		chat{Role: roleAssistant},
	)
	m.promptIsThinking = true
	m.promptTextArea.Reset()
	m.promptTextArea.Blur()

	ctx, cancel := context.WithCancel(context.Background())
	m.promptCancelFunc = cancel

	go streamPrompt(ctx, l, chats, m.llmResponses)

	return m.updatePromptSize(), m.promptSpinner.Tick
}

// renderMarkdown wraps content to the screen and renders it with r. The raw
// text is returned when rendering fails.
func renderMarkdown(r *glamour.TermRenderer, content string, width int) string {
	if width > 10 {
		content = wordwrap.String(content, width-10)
	}
	if r == nil {
		return content
	}

	rc, err := r.Render(content)
	if err != nil {
		slog.Warn("error rendering markdown", slog.String("error", err.Error()))
		return content
	}
	return rc
}

func (c chat) displayName() string {
	if c.Role == roleUser {
		return "You"
	}
	if c.Role == roleAssistant {
		return "Terminus"
	}

	return "System"
}
