package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	bolt "go.etcd.io/bbolt"
)

type mainModel struct {
	db      *bolt.DB
	cfg     config
	cfgPath string
	newLLM  func(model string) (llm, error)

	llmResponses     chan llmResponseMsg
	promptCancelFunc context.CancelFunc

	menuList list.Model

	promptViewport   viewport.Model
	promptMDRenderer *glamour.TermRenderer
	promptSpinner    spinner.Model
	promptTextArea   textarea.Model

	noteViewport viewport.Model

	form      *huh.Form
	formValue *string

	helpModel help.Model

	settings         settings
	promptChats      []chat
	promptIsThinking bool
	noteTitle        string
	noteContent      string
	formTitle        string

	keymap     keymap
	width      int
	height     int
	formWidth  int
	formHeight int

	viewState viewState
	err       error
}

type viewState int

const (
	viewStateMenu viewState = iota
	viewStatePrompt
	viewStateNote
	viewStateModelForm
	viewStateSystemForm
	viewStateMemoryForm
)

func initLogger(cfgPath string, debug bool) error {
	logPath := filepath.Join(cfgPath, "terminus.log")
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating log file: %w", err)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	}

	handler := slog.NewJSONHandler(logFile, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return nil
}

func main() {
	// The .env file is optional.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		// cobra has already printed the error.
		stop()
		os.Exit(1)
	}
}

func newMainModel(db *bolt.DB, cfg config, cfgPath string, newLLM func(string) (llm, error)) (mainModel, error) {
	m := mainModel{
		db:      db,
		cfg:     cfg,
		cfgPath: cfgPath,
		newLLM:  newLLM,
	}

	var err error
	m.settings, err = loadSettings(db)
	if err != nil {
		return mainModel{}, fmt.Errorf("error loading settings: %w", err)
	}
	if !cfg.hasModel(m.settings.Model) {
		slog.Warn("selected model is not configured", slog.String("model", m.settings.Model))
	}

	m.keymap = newKeymap()
	m.viewState = viewStateMenu

	m = m.initMenu()
	m = m.initPrompt()
	m = m.initNote()

	m.helpModel = help.New()

	return m, nil
}

func (mainModel) Init() tea.Cmd {
	return nil
}

func (m mainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		if key.Matches(msg, m.keymap.quit) {
			if m.promptCancelFunc != nil {
				m.promptCancelFunc()
				m.promptCancelFunc = nil
			}
			return m, tea.Quit
		}
	case llmResponseMsg:
		// Replies keep streaming after the user leaves the prompt view.
		return m.handlePromptResponse(msg)
	case memoryEditedMsg:
		return m.handleMemoryEdited(msg), nil
	}

	var cmd tea.Cmd

	switch m.viewState {
	case viewStateMenu:
		m, cmd = m.handleMenuEvents(msg)
	case viewStatePrompt:
		m, cmd = m.handlePromptEvents(msg)
	case viewStateNote:
		m, cmd = m.handleNoteEvents(msg)
	case viewStateModelForm, viewStateSystemForm, viewStateMemoryForm:
		m, cmd = m.handleFormEvents(msg)
	}

	return m, cmd
}

func (m mainModel) View() string {
	var vs []string

	switch m.viewState {
	case viewStateMenu:
		vs = append(vs, m.menuView())
	case viewStatePrompt:
		vs = append(vs, m.promptView())
	case viewStateNote:
		vs = append(vs, m.noteView())
	case viewStateModelForm, viewStateSystemForm, viewStateMemoryForm:
		vs = append(vs, m.formView())
	default:
		m.err = fmt.Errorf("unknown view state %d", m.viewState)
	}

	if m.err != nil {
		vs = append(vs, errView(m.width, m.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left, vs...)
}

func (m mainModel) setViewState(state viewState) mainModel {
	m.viewState = state
	m.keymap.viewState = state

	return m
}

func (m mainModel) updateFormSize() mainModel {
	m.formWidth = m.width
	m.formHeight = m.height - logoHeight() - lipgloss.Height(titleStyle.Render(m.formTitle))
	if m.err != nil {
		m.formHeight -= errHeight(m.width, m.err)
	}
	m.formHeight = max(m.formHeight, 1)

	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth).WithHeight(m.formHeight)
	}

	return m
}
