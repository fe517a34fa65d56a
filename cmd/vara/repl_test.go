// =============================================================================
// repl_test.go - Tests for the REPL Loop (repl.go)
// =============================================================================
//
// The REPL is driven by a scripted lineReader against varatest.Modem. Output
// arrives from two goroutines (the REPL and the client's reader), so tests
// poll a locked buffer until the expected text shows up.
//
// =============================================================================

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/taylorsreid/govara/varaprotocol"
	"github.com/taylorsreid/govara/varaprotocol/varatest"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// waitFor polls until want appears in b.
func waitFor(t *testing.T, b *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(varatest.WaitTimeout)
	for time.Now().Before(deadline) {
		if strings.Contains(b.String(), want) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("output never contained %q:\n%s", want, b.String())
}

// scriptReader feeds lines to the REPL one at a time. Each GetLine blocks
// until the test sends the next line, so tests can interleave modem events.
type scriptReader struct {
	lines   chan string
	prompts chan string
}

func newScriptReader() *scriptReader {
	return &scriptReader{
		lines:   make(chan string),
		prompts: make(chan string, 64),
	}
}

func (s *scriptReader) GetLine(prompt string) (string, error) {
	s.prompts <- prompt
	line, ok := <-s.lines
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

// send delivers line once the REPL is waiting for input.
func (s *scriptReader) send(t *testing.T, line string) {
	t.Helper()
	select {
	case s.lines <- line:
	case <-time.After(varatest.WaitTimeout):
		t.Fatalf("REPL never asked for input (sending %q)", line)
	}
}

// nextPrompt returns the prompt of the next GetLine call.
func (s *scriptReader) nextPrompt(t *testing.T) string {
	t.Helper()
	select {
	case p := <-s.prompts:
		return p
	case <-time.After(varatest.WaitTimeout):
		t.Fatal("REPL never prompted")
		return ""
	}
}

type replEnv struct {
	client *varaprotocol.Client
	modem  *varatest.Modem
	input  *scriptReader
	stdout *syncBuffer
	stderr *syncBuffer
	done   chan error
	exited bool
}

func startREPL(t *testing.T, handler varatest.Handler) *replEnv {
	t.Helper()

	client, modem := openTestClient(t, varaprotocol.VariantHF, handler)
	env := &replEnv{
		client: client,
		modem:  modem,
		input:  newScriptReader(),
		stdout: &syncBuffer{},
		stderr: &syncBuffer{},
		done:   make(chan error, 1),
	}

	r := newREPL(client, env.input, env.stdout, env.stderr)
	r.timeout = varatest.WaitTimeout
	go func() { env.done <- r.run(context.Background()) }()

	t.Cleanup(func() {
		if !env.exited {
			close(env.input.lines)
			<-env.done
		}
	})
	return env
}

func (e *replEnv) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-e.done:
		e.exited = true
		return err
	case <-time.After(varatest.WaitTimeout):
		t.Fatal("REPL did not exit")
		return nil
	}
}

func TestREPLQuit(t *testing.T) {
	env := startREPL(t, nil)

	env.input.send(t, ".quit")
	if err := env.wait(t); err != nil {
		t.Errorf("run() = %v", err)
	}
}

func TestREPLEndOfInput(t *testing.T) {
	env := startREPL(t, nil)

	env.input.nextPrompt(t)
	close(env.input.lines)
	env.exited = true
	if err := env.wait(t); err != nil {
		t.Errorf("run() = %v", err)
	}
}

func TestREPLRunsWireCommands(t *testing.T) {
	env := startREPL(t, nil)

	env.input.send(t, "MYCALL N0CALL")
	env.modem.ExpectCommand("MYCALL N0CALL")
	waitFor(t, env.stdout, "registered N0CALL\n")
	waitFor(t, env.stdout, "<< REGISTERED N0CALL\n")

	env.input.send(t, "VERSION")
	env.modem.ExpectCommand("VERSION")
	waitFor(t, env.stdout, varatest.Version+"\n")
}

func TestREPLPromptFollowsLink(t *testing.T) {
	env := startREPL(t, nil)

	if p := env.input.nextPrompt(t); p != "vara> " {
		t.Errorf("idle prompt = %q", p)
	}

	env.input.send(t, "CONNECT N0CALL W1AW")
	env.modem.ExpectCommand("CONNECT N0CALL W1AW")
	waitFor(t, env.stdout, "connected N0CALL -> W1AW")

	if p := env.input.nextPrompt(t); p != "vara N0CALL>W1AW> " {
		t.Errorf("connected prompt = %q", p)
	}

	env.input.send(t, "DISCONNECT")
	env.modem.ExpectCommand("DISCONNECT")
	waitFor(t, env.stdout, "disconnected\n")
	if p := env.input.nextPrompt(t); p != "vara> " {
		t.Errorf("prompt after disconnect = %q", p)
	}
}

func TestREPLOfflinePrompt(t *testing.T) {
	env := startREPL(t, nil)
	env.input.nextPrompt(t)

	env.modem.Drop()
	deadline := time.Now().Add(varatest.WaitTimeout)
	for env.client.IsConnected() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	env.input.send(t, "")
	if p := env.input.nextPrompt(t); p != "vara (offline)> " {
		t.Errorf("prompt = %q", p)
	}

	env.input.send(t, "LISTEN ON")
	waitFor(t, env.stderr, "Error: LISTEN ON:")
	if !strings.Contains(env.stderr.String(), varaprotocol.ErrNotConnected.Error()) {
		t.Errorf("stderr = %q", env.stderr.String())
	}
}

func TestREPLPrintsNotificationsAndData(t *testing.T) {
	env := startREPL(t, nil)
	env.input.nextPrompt(t)

	env.modem.Send("BUFFER 120", "SN 3")
	waitFor(t, env.stdout, "<< BUFFER 120\n")
	waitFor(t, env.stdout, "<< SN 3\n")

	env.modem.SendData([]byte("hi\x07there\r\n"))
	waitFor(t, env.stdout, "<< DATA 10 bytes: hi.there  \n")
}

func TestREPLErrors(t *testing.T) {
	env := startREPL(t, func(string) []string { return []string{"WRONG"} })

	env.input.send(t, "FROBNICATE")
	waitFor(t, env.stderr, "Error: ")

	env.input.send(t, "LISTEN ON")
	env.modem.ExpectCommand("LISTEN ON")
	waitFor(t, env.stderr, "Error: LISTEN ON: ")
	if !strings.Contains(env.stderr.String(), "rejected") {
		t.Errorf("stderr should report the rejection: %q", env.stderr.String())
	}

	env.input.send(t, ".quit")
	if err := env.wait(t); err != nil {
		t.Errorf("REPL should survive errors, got %v", err)
	}
}

func TestREPLSend(t *testing.T) {
	env := startREPL(t, nil)

	env.input.send(t, ".send Hello W1AW")
	if got := string(env.modem.NextData()); got != "Hello W1AW" {
		t.Errorf("modem received %q", got)
	}
	waitFor(t, env.stdout, "sent 10 bytes\n")
}

func TestREPLWait(t *testing.T) {
	env := startREPL(t, nil)

	env.input.send(t, ".wait PTT_OFF 5")
	// The REPL blocks in .wait; give it a moment to subscribe.
	time.Sleep(50 * time.Millisecond)
	env.modem.Send("PTT OFF")
	waitFor(t, env.stdout, "received PTT OFF\n")

	env.input.send(t, ".wait DATA 5")
	time.Sleep(50 * time.Millisecond)
	env.modem.SendData([]byte("abc"))
	waitFor(t, env.stdout, "received DATA 3 bytes\n")
}

func TestREPLWaitTimeout(t *testing.T) {
	env := startREPL(t, nil)

	env.input.send(t, ".wait CONNECTED 1")
	waitFor(t, env.stderr, "waiting for CONNECTED")
	if !strings.Contains(env.stderr.String(), context.DeadlineExceeded.Error()) {
		t.Errorf("stderr = %q", env.stderr.String())
	}
}

func TestREPLState(t *testing.T) {
	env := startREPL(t, nil)

	env.input.send(t, ".state")
	waitFor(t, env.stdout, `"variant": "HF"`)

	env.input.send(t, ".state compression")
	waitFor(t, env.stdout, `compression: "TEXT"`)

	env.input.send(t, ".state nope")
	waitFor(t, env.stderr, "no state field")
}

func TestREPLHelp(t *testing.T) {
	env := startREPL(t, nil)

	env.input.send(t, ".help")
	waitFor(t, env.stdout, "Dot-commands:")

	env.input.send(t, ".help tune")
	waitFor(t, env.stdout, "TUNE <dB> | TUNE OFF | TUNE ?")
}

func TestREPLStopsWithContext(t *testing.T) {
	client, _ := openTestClient(t, varaprotocol.VariantHF, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newREPL(client, newScriptReader(), io.Discard, io.Discard)
	if err := r.run(ctx); err != nil {
		t.Errorf("run() = %v", err)
	}
}

type failingReader struct{}

func (failingReader) GetLine(string) (string, error) {
	return "", errors.New("terminal gone")
}

func TestREPLReadError(t *testing.T) {
	client, _ := openTestClient(t, varaprotocol.VariantHF, nil)

	r := newREPL(client, failingReader{}, io.Discard, io.Discard)
	if err := r.run(context.Background()); err == nil || err.Error() != "terminal gone" {
		t.Errorf("run() = %v, want read error", err)
	}
}

func TestPrintable(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"line\r\nbreak", "line  break"},
		{"bell\x07", "bell."},
		{"\x1b[2J", ".[2J"},
		{"tab\there", "tab here"},
	}
	for _, tc := range tests {
		if got := printable([]byte(tc.in)); got != tc.want {
			t.Errorf("printable(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
