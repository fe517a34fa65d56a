// =============================================================================
// repl.go - REPL Loop
// =============================================================================
//
// The REPL reads a line, translates it (translate.go), runs it against the
// client and prints the outcome. Modem notifications and received data are
// printed as they arrive, prefixed with "<<", while the REPL waits for input.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/taylorsreid/govara/varaprotocol"
)

// defaultCommandTimeout bounds each wire command. CONNECT waits for the
// remote station, so it is generous.
const defaultCommandTimeout = 2 * time.Minute

// console serialises output from the REPL goroutine and the client's
// reader goroutines.
type console struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.stdout, format, args...)
}

func (c *console) errorf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.stderr, "Error: "+format+"\n", args...)
}

type repl struct {
	client  *varaprotocol.Client
	input   lineReader
	out     *console
	timeout time.Duration
}

func newREPL(client *varaprotocol.Client, input lineReader, stdout, stderr io.Writer) *repl {
	return &repl{
		client:  client,
		input:   input,
		out:     &console{stdout: stdout, stderr: stderr},
		timeout: defaultCommandTimeout,
	}
}

// prompt reflects the link: "vara> " when idle, "vara N0CALL>W1AW> " while
// connected and "vara (offline)> " once the modem is gone.
func (r *repl) prompt() string {
	if !r.client.IsConnected() {
		return "vara (offline)> "
	}
	if cd := r.client.State().Connected(); cd != nil {
		return fmt.Sprintf("vara %s>%s> ", cd.Source, cd.Destination)
	}
	return "vara> "
}

// run reads and executes lines until .quit, end of input or ctx is done.
func (r *repl) run(ctx context.Context) error {
	unsubscribe := r.client.Subscribe(r.printNotification)
	defer unsubscribe()
	unsubscribeData := r.client.SubscribeData(r.printData)
	defer unsubscribeData()

	for ctx.Err() == nil {
		line, err := r.input.GetLine(r.prompt())
		if errors.Is(err, io.EOF) {
			r.out.printf("\n")
			return nil
		}
		if err != nil {
			return err
		}

		if quit := r.execute(ctx, line); quit {
			return nil
		}
	}
	return nil
}

// execute runs one line and reports whether the REPL should exit.
func (r *repl) execute(ctx context.Context, line string) bool {
	act, err := translateLine(line)
	if err != nil {
		r.out.errorf("%v", err)
		return false
	}

	switch act.kind {
	case actionNone:

	case actionQuit:
		return true

	case actionHelp:
		r.out.mu.Lock()
		printHelp(r.out.stdout, r.out.stderr, act.text)
		r.out.mu.Unlock()

	case actionState:
		text, err := formatState(r.client.State().Snapshot(), act.text)
		if err != nil {
			r.out.errorf("%v", err)
			break
		}
		r.out.printf("%s\n", text)

	case actionSend:
		opCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.client.Send(opCtx, []byte(act.text))
		cancel()
		if err != nil {
			r.out.errorf("%v", err)
			break
		}
		r.out.printf("sent %d bytes\n", len(act.text))

	case actionWait:
		opCtx, cancel := context.WithTimeout(ctx, act.timeout)
		n, err := r.client.Next(opCtx, act.notification)
		cancel()
		if err != nil {
			r.out.errorf("waiting for %s: %v", act.notification, err)
			break
		}
		r.out.printf("received %s\n", describeNotification(n))

	case actionCommand:
		opCtx, cancel := context.WithTimeout(ctx, r.timeout)
		result, err := runCommand(opCtx, r.client, act.cmd)
		cancel()
		if err != nil {
			r.out.errorf("%s: %v", act.cmd.Format(), err)
			break
		}
		r.out.printf("%s\n", result)
	}
	return false
}

func (r *repl) printNotification(n varaprotocol.Notification) {
	r.out.printf("<< %s\n", describeNotification(n))
}

func (r *repl) printData(n varaprotocol.Notification) {
	r.out.printf("<< DATA %d bytes: %s\n", len(n.Data), printable(n.Data))
}

func describeNotification(n varaprotocol.Notification) string {
	if n.Type == varaprotocol.NotificationData {
		return fmt.Sprintf("DATA %d bytes", len(n.Data))
	}
	if n.Raw != "" {
		return n.Raw
	}
	return n.Format()
}

// printable replaces control characters so received data cannot move the
// cursor or clear the screen.
func printable(data []byte) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\r' || r == '\n' || r == '\t':
			return ' '
		case r < 0x20 || r == 0x7f:
			return '.'
		}
		return r
	}, string(data))
}
