package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/term"
)

type rootOptions struct {
	configDir string
	debug     bool
	noBoot    bool

	setSystem    string
	showSystem   bool
	selectModel  bool
	model        string
	showMemory   bool
	addMemory    string
	toggleMemory bool
	editMemory   bool
	prompt       string
}

// app holds what every command needs once the config directory is open.
type app struct {
	db      *bolt.DB
	cfg     config
	cfgPath string
	apiKey  string

	out io.Writer
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	rootCmd := &cobra.Command{
		Use:   "terminus",
		Short: "A retro terminal interface for chatting with language models.",
		Long: `A retro terminal interface for chatting with language models.

Every action flag runs once and exits. Without one, terminus plays its boot
sequence and opens the command menu.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts.configDir, opts.debug, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			return a.run(cmd.Context(), opts)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configDir, "config-dir", "", "Config directory (default: <user config dir>/terminus)")
	pf.BoolVar(&opts.debug, "debug", false, "Write debug entries to the log")

	f := rootCmd.Flags()
	f.BoolVar(&opts.noBoot, "no-boot", false, "Skip the boot sequence")
	f.StringVar(&opts.setSystem, "set-system", "", "Set the system message")
	f.BoolVar(&opts.showSystem, "show-system", false, "Show the system message")
	f.BoolVar(&opts.selectModel, "select-model", false, "Choose the model interactively")
	f.StringVar(&opts.model, "model", "", "Set the model without prompting")
	f.BoolVar(&opts.showMemory, "show-memory", false, "Show the memory bank")
	f.StringVar(&opts.addMemory, "add-memory", "", "Append an entry to the memory bank")
	f.BoolVar(&opts.toggleMemory, "toggle-memory", false, "Include or leave out the memory bank in prompts")
	f.BoolVar(&opts.editMemory, "edit-memory", false, "Open the memory bank in $EDITOR")
	f.StringVarP(&opts.prompt, "prompt", "p", "", "Send a single prompt and print the reply")

	rootCmd.AddCommand(newRainCmd(&opts))

	return rootCmd
}

func newRainCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rain",
		Short: "Run the falling character rain until a key is pressed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts.configDir, opts.debug, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			return runScreensaver(cmd.Context(), a.cfg)
		},
	}
}

func defaultConfigPath() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting user config dir: %w", err)
	}
	return filepath.Join(cfgDir, "terminus"), nil
}

func openApp(cfgPath string, debug bool, out io.Writer) (*app, error) {
	if cfgPath == "" {
		var err error
		if cfgPath, err = defaultConfigPath(); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		return nil, fmt.Errorf("error creating config directory: %w", err)
	}

	if err := initLogger(cfgPath, debug); err != nil {
		return nil, fmt.Errorf("error initializing logger: %w", err)
	}
	slog.Info("starting terminus", slog.String("config", cfgPath))

	cfg, err := loadConfig(filepath.Join(cfgPath, configFileName))
	if err != nil {
		return nil, err
	}

	db, err := bolt.Open(filepath.Join(cfgPath, "terminus.db"), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := initKVDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing kvdb: %w", err)
	}

	if err := importLegacyFiles(db, cfgPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("error importing legacy files: %w", err)
	}

	return &app{
		db:      db,
		cfg:     cfg,
		cfgPath: cfgPath,
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		out:     out,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", slog.String("error", err.Error()))
	}
}

func (a *app) newLLM(model string) (llm, error) {
	o, err := newOpenAI(a.apiKey, a.cfg.API, model)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// run performs the first action flag that is set, or starts the interactive
// interface when none is.
func (a *app) run(ctx context.Context, opts rootOptions) error {
	switch {
	case opts.setSystem != "":
		return a.setSystemMessage(opts.setSystem)
	case opts.showSystem:
		return a.showSystemMessage()
	case opts.model != "":
		return a.setModel(opts.model)
	case opts.selectModel:
		return a.selectModel()
	case opts.showMemory:
		return a.showMemory()
	case opts.addMemory != "":
		return a.addMemory(opts.addMemory)
	case opts.toggleMemory:
		return a.toggleMemory()
	case opts.editMemory:
		return a.editMemory()
	case opts.prompt != "":
		return a.sendPrompt(ctx, opts.prompt)
	}

	return a.interactive(ctx, opts.noBoot)
}

func (a *app) setSystemMessage(msg string) error {
	if err := saveSystemMessage(a.db, msg); err != nil {
		return fmt.Errorf("error saving system message: %w", err)
	}
	fmt.Fprintln(a.out, "System message updated.")
	return nil
}

func (a *app) showSystemMessage() error {
	msg, err := loadSystemMessage(a.db)
	if err != nil {
		return fmt.Errorf("error loading system message: %w", err)
	}
	if msg == "" {
		fmt.Fprintln(a.out, "No system message set.")
		return nil
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *app) setModel(model string) error {
	if err := a.cfg.checkModel(model); err != nil {
		return err
	}

	s, err := loadSettings(a.db)
	if err != nil {
		return fmt.Errorf("error loading settings: %w", err)
	}
	s.Model = model
	if err := saveSettings(a.db, s); err != nil {
		return fmt.Errorf("error saving settings: %w", err)
	}

	fmt.Fprintf(a.out, "Model set to %s.\n", model)
	return nil
}

func (a *app) selectModel() error {
	s, err := loadSettings(a.db)
	if err != nil {
		return fmt.Errorf("error loading settings: %w", err)
	}

	model := s.Model
	err = huh.NewSelect[string]().
		Title("Select model").
		Options(huh.NewOptions(a.cfg.API.Models...)...).
		Value(&model).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return fmt.Errorf("error selecting model: %w", err)
	}

	return a.setModel(model)
}

func (a *app) showMemory() error {
	memory, err := loadMemory(a.db)
	if err != nil {
		return fmt.Errorf("error loading memory: %w", err)
	}
	if memory == "" {
		fmt.Fprintln(a.out, "Memory bank is empty.")
		return nil
	}
	fmt.Fprintln(a.out, memory)
	return nil
}

func (a *app) addMemory(entry string) error {
	if err := appendMemory(a.db, entry); err != nil {
		return fmt.Errorf("error adding memory: %w", err)
	}
	fmt.Fprintln(a.out, "Memory entry added.")
	return nil
}

func (a *app) toggleMemory() error {
	s, err := loadSettings(a.db)
	if err != nil {
		return fmt.Errorf("error loading settings: %w", err)
	}
	s.UseMemory = !s.UseMemory
	if err := saveSettings(a.db, s); err != nil {
		return fmt.Errorf("error saving settings: %w", err)
	}

	state := "disabled"
	if s.UseMemory {
		state = "enabled"
	}
	fmt.Fprintf(a.out, "Memory usage %s.\n", state)
	return nil
}

func (a *app) editMemory() error {
	path := filepath.Join(a.cfgPath, memoryFileName)

	c, err := prepareMemoryEdit(a.db, path)
	if err != nil {
		return err
	}
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("error running editor: %w", err)
	}

	if err := finishMemoryEdit(a.db, path); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Memory updated.")
	return nil
}

func (a *app) sendPrompt(ctx context.Context, prompt string) error {
	s, err := loadSettings(a.db)
	if err != nil {
		return fmt.Errorf("error loading settings: %w", err)
	}

	chats, err := loadPromptChats(a.db, s, prompt)
	if err != nil {
		return err
	}

	l, err := a.newLLM(s.Model)
	if err != nil {
		return err
	}

	res := l.chat(ctx, chats)
	if res.err != nil {
		return res.err
	}

	// Piped output gets plain text.
	width := 80
	style := glamour.WithStandardStyle("notty")
	if f, ok := a.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
		style = glamour.WithAutoStyle()
	}

	r, err := glamour.NewTermRenderer(
		style,
		glamour.WithPreservedNewLines(),
		glamour.WithWordWrap(0),
	)
	if err != nil {
		slog.Warn("error creating markdown renderer", slog.String("error", err.Error()))
	}

	fmt.Fprintln(a.out, strings.TrimRight(renderMarkdown(r, res.content, width), "\n"))
	return nil
}

// interactive plays the boot sequence on a terminal and then runs the menu.
func (a *app) interactive(ctx context.Context, noBoot bool) error {
	s, err := loadSettings(a.db)
	if err != nil {
		return fmt.Errorf("error loading settings: %w", err)
	}

	if !noBoot && a.cfg.Boot.Enabled && term.IsTerminal(int(os.Stdout.Fd())) {
		width, height := terminalSize()
		b := bootScreen{
			con:    newConsole(os.Stdout, termenv.EnvColorProfile()),
			width:  width,
			height: height,
			cfg:    a.cfg,
		}
		if err := b.run(ctx, s); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("error running boot sequence: %w", err)
		}
	}

	m, err := newMainModel(a.db, a.cfg, a.cfgPath, a.newLLM)
	if err != nil {
		return fmt.Errorf("error initializing model: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	go forwardResponses(ctx, m.llmResponses, p.Send)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

// forwardResponses hands streamed replies to the program until ctx is done.
func forwardResponses(ctx context.Context, responses <-chan llmResponseMsg, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-responses:
			send(msg)
		}
	}
}

func terminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 || height <= 0 {
		return 80, 24
	}
	return width, height
}
