package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	bolt "go.etcd.io/bbolt"
)

const memoryFileName = "memory.md"

type memoryEditedMsg struct {
	err error
}

func (m mainModel) initNote() mainModel {
	m.noteViewport = viewport.New(0, 0)
	m.noteViewport.KeyMap = m.keymap.viewportKeymap

	return m
}

// showNote opens the note view on content, or on placeholder when content is
// blank.
func (m mainModel) showNote(title, content, placeholder string) mainModel {
	if strings.TrimSpace(content) == "" {
		content = placeholder
	}
	m.noteTitle = title
	m.noteContent = content

	return m.setViewState(viewStateNote).updateNoteSize()
}

func (m mainModel) updateNoteSize() mainModel {
	titleHeight := lipgloss.Height(titleStyle.Render(m.noteTitle))
	helpHeight := lipgloss.Height(m.helpModel.View(m.keymap))

	height := m.height - titleHeight - helpHeight
	if m.err != nil {
		height -= errHeight(m.width, m.err)
	}
	m.noteViewport.Width = m.width
	m.noteViewport.Height = max(height, 0)

	m.noteViewport.SetContent(renderMarkdown(m.promptMDRenderer, m.noteContent, m.width))
	m.noteViewport.GotoTop()

	return m
}

func (m mainModel) handleNoteEvents(msg tea.Msg) (mainModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.updateNoteSize()
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.escape):
			m.err = nil
			return m.setViewState(viewStateMenu).updateMenuSize(), nil
		case key.Matches(msg, m.keymap.openHelp):
			m.keymap.openHelp.SetEnabled(false)
			m.keymap.closeHelp.SetEnabled(true)
			m.helpModel.ShowAll = true
			return m.updateNoteSize(), nil
		case key.Matches(msg, m.keymap.closeHelp):
			m.keymap.closeHelp.SetEnabled(false)
			m.keymap.openHelp.SetEnabled(true)
			m.helpModel.ShowAll = false
			return m.updateNoteSize(), nil
		}
	}

	var cmd tea.Cmd
	m.noteViewport, cmd = m.noteViewport.Update(msg)
	return m, cmd
}

func (m mainModel) noteView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(m.noteTitle),
		m.noteViewport.View(),
		m.helpModel.View(m.keymap),
	)
}

// newForm opens a single field form. The field must be bound to value, which
// holds the answer once the form completes.
func (m mainModel) newForm(state viewState, title string, value *string, field huh.Field) (mainModel, tea.Cmd) {
	m.formTitle = title
	m.formValue = value
	m = m.setViewState(state).updateFormSize()

	m.form = huh.NewForm(huh.NewGroup(field)).
		WithWidth(m.formWidth).
		WithHeight(m.formHeight).
		WithKeyMap(m.keymap.formKeymap).
		WithTheme(huh.ThemeBase16()).
		WithShowHelp(true)

	return m, m.form.Init()
}

func (m mainModel) newModelForm() (mainModel, tea.Cmd) {
	model := m.settings.Model

	return m.newForm(viewStateModelForm, "Select Model", &model,
		huh.NewSelect[string]().
			Title("Model").
			Description("Answers every prompt from now on").
			Options(huh.NewOptions(m.cfg.API.Models...)...).
			Value(&model),
	)
}

func (m mainModel) newSystemForm() (mainModel, tea.Cmd) {
	systemMessage, err := loadSystemMessage(m.db)
	if err != nil {
		m.err = fmt.Errorf("error loading system message: %w", err)
		return m.updateMenuSize(), nil
	}

	return m.newForm(viewStateSystemForm, "Set System Message", &systemMessage,
		huh.NewText().
			Title("System message").
			Description("Sent before every prompt. Leave empty to clear it.").
			CharLimit(0).
			Value(&systemMessage),
	)
}

func (m mainModel) newMemoryForm() (mainModel, tea.Cmd) {
	var entry string

	return m.newForm(viewStateMemoryForm, "Add Memory Entry", &entry,
		huh.NewText().
			Title("Memory entry").
			Description("Appended to the memory bank").
			CharLimit(0).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errEmptyNote
				}
				return nil
			}).
			Value(&entry),
	)
}

func (m mainModel) handleFormEvents(msg tea.Msg) (mainModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.updateFormSize()
	case tea.KeyMsg:
		if key.Matches(msg, m.keymap.escape) {
			m.err = nil
			return m.setViewState(viewStateMenu).updateMenuSize(), nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		return m.setViewState(viewStateMenu).updateMenuSize(), nil
	case huh.StateCompleted:
		return m.submitForm(), nil
	}

	return m, cmd
}

// submitForm saves the completed form and returns to the menu.
func (m mainModel) submitForm() mainModel {
	var err error
	value := *m.formValue

	switch m.viewState {
	case viewStateModelForm:
		if err = m.cfg.checkModel(value); err != nil {
			break
		}
		s := m.settings
		s.Model = value
		if err = saveSettings(m.db, s); err != nil {
			err = fmt.Errorf("error saving settings: %w", err)
			break
		}
		m.settings = s
	case viewStateSystemForm:
		if err = saveSystemMessage(m.db, value); err != nil {
			err = fmt.Errorf("error saving system message: %w", err)
		}
	case viewStateMemoryForm:
		if err = appendMemory(m.db, value); err != nil {
			err = fmt.Errorf("error adding memory: %w", err)
		}
	}

	m.err = err
	m.form = nil
	m.formValue = nil
	return m.setViewState(viewStateMenu).updateMenuSize()
}

func (m mainModel) formView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		logoView(),
		titleStyle.Render(m.formTitle),
		m.form.View(),
	)
}

func (m mainModel) editMemory() (mainModel, tea.Cmd) {
	path := filepath.Join(m.cfgPath, memoryFileName)

	c, err := prepareMemoryEdit(m.db, path)
	if err != nil {
		m.err = err
		return m.updateMenuSize(), nil
	}

	return m, tea.ExecProcess(c, func(err error) tea.Msg {
		return memoryEditedMsg{err: err}
	})
}

func (m mainModel) handleMemoryEdited(msg memoryEditedMsg) mainModel {
	m.err = nil
	if msg.err != nil {
		m.err = fmt.Errorf("error running editor: %w", msg.err)
		return m.updateMenuSize()
	}

	if err := finishMemoryEdit(m.db, filepath.Join(m.cfgPath, memoryFileName)); err != nil {
		m.err = err
	}
	return m.updateMenuSize()
}

// prepareMemoryEdit writes the memory to path and returns the editor command
// that opens it.
func prepareMemoryEdit(db *bolt.DB, path string) (*exec.Cmd, error) {
	memory, err := loadMemory(db)
	if err != nil {
		return nil, fmt.Errorf("error loading memory: %w", err)
	}

	if err := os.WriteFile(path, []byte(memory), 0600); err != nil {
		return nil, fmt.Errorf("error writing %s: %w", path, err)
	}

	return editorCommand(path)
}

// finishMemoryEdit stores what the editor left in path as the memory.
func finishMemoryEdit(db *bolt.DB, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}

	if err := saveMemory(db, string(data)); err != nil {
		return fmt.Errorf("error saving memory: %w", err)
	}
	return nil
}

var errNoEditor = errors.New("EDITOR is blank")

// editorCommand opens path in $EDITOR, which may carry its own arguments
// ("code --wait").
func editorCommand(path string) (*exec.Cmd, error) {
	editor, ok := os.LookupEnv("EDITOR")
	if !ok {
		editor = "vi"
		if runtime.GOOS == "windows" {
			editor = "notepad"
		}
	}

	args := strings.Fields(editor)
	if len(args) == 0 {
		return nil, errNoEditor
	}

	return exec.Command(args[0], append(args[1:], path)...), nil
}
