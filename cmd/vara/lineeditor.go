// =============================================================================
// lineeditor.go - Line Editor with Dual-Mode Operation
// =============================================================================
//
// The REPL reads input through a LineEditor that picks its input method from
// the terminal it finds itself in:
//
//   - Interactive mode: ergochat/readline provides Emacs keybindings,
//     persistent history in ~/.vara_history and Ctrl-R history search.
//   - Non-interactive mode: input is piped (a script, a test, an Emacs
//     comint buffer, TERM=dumb), so a bufio.Scanner reads it line by line
//     and the prompt is printed by hand.
//
// =============================================================================

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

const (
	// historyFileName is the history file in the user's home directory.
	historyFileName = ".vara_history"

	// historySize is the maximum number of history entries to retain.
	historySize = 500
)

// GO CONCEPT: Implicit Interfaces
// -------------------------------
// The REPL only needs GetLine, so it accepts a lineReader rather than a
// *LineEditor. LineEditor satisfies the interface without declaring it, and
// tests pass a scripted reader instead of wiring up a pipe on stdin.
type lineReader interface {
	GetLine(prompt string) (string, error)
}

// LineEditor wraps line editing with dual-mode operation.
type LineEditor struct {
	// interactive is true when stdin is a capable terminal.
	interactive bool

	// rl is nil in non-interactive mode.
	rl *readline.Instance

	// scanner is nil in interactive mode.
	scanner *bufio.Scanner
}

// NewLineEditor creates a LineEditor for os.Stdin.
func NewLineEditor() *LineEditor {
	if !stdinIsInteractive() {
		return &LineEditor{
			interactive: false,
			scanner:     bufio.NewScanner(os.Stdin),
		}
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:  historyPath(),
		HistoryLimit: historySize,

		// Lines are saved by hand so blank input stays out of the history.
		DisableAutoSaveHistory: true,
		Prompt:                 "",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return &LineEditor{
			interactive: false,
			scanner:     bufio.NewScanner(os.Stdin),
		}
	}

	return &LineEditor{
		interactive: true,
		rl:          rl,
	}
}

// stdinIsInteractive reports whether stdin is a terminal that can handle
// readline's escape sequences.
func stdinIsInteractive() bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	if os.Getenv("INSIDE_EMACS") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

func historyPath() string {
	return filepath.Join(homeDir(), historyFileName)
}

// GetLine displays prompt and reads one line. It returns io.EOF at end of
// input, and on Ctrl-C / Ctrl-D in interactive mode.
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if le.interactive {
		return le.getInteractiveLine(prompt)
	}
	return le.getNonInteractiveLine(prompt)
}

func (le *LineEditor) getInteractiveLine(prompt string) (string, error) {
	// The prompt tracks the link state, so it is set on every read.
	le.rl.SetPrompt(prompt)

	line, err := le.rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return "", err
	}

	if trimmed := strings.TrimSpace(line); trimmed != "" {
		le.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

func (le *LineEditor) getNonInteractiveLine(prompt string) (string, error) {
	fmt.Print(prompt)

	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return le.scanner.Text(), nil
}

// Close releases the terminal. It is safe to call more than once.
func (le *LineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}

// IsInteractive reports whether readline is in use.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}
