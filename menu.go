package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type menuItem struct {
	title       string
	description string
}

const (
	menuPromptTitle       = "Enter prompt"
	menuSelectModelTitle  = "Select model"
	menuSetSystemTitle    = "Set system message"
	menuShowSystemTitle   = "Show system message"
	menuAddMemoryTitle    = "Add memory entry"
	menuShowMemoryTitle   = "Show memory"
	menuToggleMemoryTitle = "Toggle memory usage"
	menuEditMemoryTitle   = "Edit memory"
	menuExitTitle         = "Exit"
)

var menuItems = []menuItem{
	{title: menuPromptTitle, description: "Send a prompt to the active model"},
	{title: menuSelectModelTitle, description: "Choose the model that answers prompts"},
	{title: menuSetSystemTitle, description: "Instructions sent before every prompt"},
	{title: menuShowSystemTitle, description: "Display the current system message"},
	{title: menuAddMemoryTitle, description: "Append an entry to the memory bank"},
	{title: menuShowMemoryTitle, description: "Display the memory bank"},
	{title: menuToggleMemoryTitle, description: "Include or leave out the memory bank in prompts"},
	{title: menuEditMemoryTitle, description: "Open the memory bank in $EDITOR"},
	{title: menuExitTitle, description: "Leave terminus"},
}

func (m mainModel) initMenu() mainModel {
	items := make([]list.Item, len(menuItems))
	for i, item := range menuItems {
		items[i] = item
	}

	m.menuList = defaultList("Command Interface", m.keymap, func() []key.Binding {
		return []key.Binding{m.keymap.pick, m.keymap.quit}
	})
	m.menuList.SetItems(items)

	return m
}

func (m mainModel) statusLine() string {
	memory := "disabled"
	if m.settings.UseMemory {
		memory = "enabled"
	}
	return fmt.Sprintf("Model: %s | Memory: %s", strings.ToUpper(m.settings.Model), memory)
}

func (m mainModel) updateMenuSize() mainModel {
	height := m.height - logoHeight() - lipgloss.Height(statusStyle.Render(m.statusLine()))

	if m.err != nil {
		height -= errHeight(m.width, m.err)
	}

	m.menuList.SetSize(m.width, height)
	return m
}

func (m mainModel) handleMenuEvents(msg tea.Msg) (mainModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.updateMenuSize()
	case tea.KeyMsg:
		if key.Matches(msg, m.keymap.pick) {
			return m.selectMenuItem(m.menuList.Index())
		}
	}
	var cmd tea.Cmd
	m.menuList, cmd = m.menuList.Update(msg)
	return m, cmd
}

func (m mainModel) menuView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		logoView(),
		statusStyle.Render(m.statusLine()),
		m.menuList.View(),
	)
}

func (m mainModel) selectMenuItem(index int) (mainModel, tea.Cmd) {
	if index < 0 || index >= len(menuItems) {
		return m, nil
	}
	m.err = nil

	switch menuItems[index].title {
	case menuPromptTitle:
		cmd := m.promptTextArea.Focus()
		return m.setViewState(viewStatePrompt).updatePromptSize(), cmd
	case menuSelectModelTitle:
		return m.newModelForm()
	case menuSetSystemTitle:
		return m.newSystemForm()
	case menuShowSystemTitle:
		msg, err := loadSystemMessage(m.db)
		if err != nil {
			m.err = fmt.Errorf("error loading system message: %w", err)
			return m.updateMenuSize(), nil
		}
		return m.showNote("System Message", msg, "_No system message set._"), nil
	case menuAddMemoryTitle:
		return m.newMemoryForm()
	case menuShowMemoryTitle:
		memory, err := loadMemory(m.db)
		if err != nil {
			m.err = fmt.Errorf("error loading memory: %w", err)
			return m.updateMenuSize(), nil
		}
		return m.showNote("Memory Bank", memory, "_Memory bank is empty._"), nil
	case menuToggleMemoryTitle:
		return m.toggleMemory(), nil
	case menuEditMemoryTitle:
		return m.editMemory()
	case menuExitTitle:
		return m, tea.Quit
	}
	return m, nil
}

func (m mainModel) toggleMemory() mainModel {
	s := m.settings
	s.UseMemory = !s.UseMemory

	if err := saveSettings(m.db, s); err != nil {
		m.err = fmt.Errorf("error saving settings: %w", err)
		return m.updateMenuSize()
	}
	m.settings = s

	return m.updateMenuSize()
}

func (c menuItem) Title() string {
	return c.title
}

func (c menuItem) Description() string {
	return c.description
}

func (c menuItem) FilterValue() string {
	return c.title
}
