// Package varatest provides an in-process fake VARA modem for tests.
//
// The fake listens on loopback on a command port and the port after it,
// like the real modem. Every command line it receives is recorded and passed
// to a Handler, whose reply lines are written back in order. Tests can also
// push unsolicited notifications and data at any time.
package varatest

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/taylorsreid/govara/varaprotocol"
)

// WaitTimeout bounds every blocking helper of Modem.
const WaitTimeout = 2 * time.Second

// Handler returns the lines the modem answers to one command line. Lines
// are written without their terminator.
type Handler func(cmd string) []string

// Silent never answers.
func Silent(string) []string { return nil }

// Modem is a fake modem bound to two loopback ports.
type Modem struct {
	// Host and Port are what a client passes to Open.
	Host string
	Port int

	t       testing.TB
	handler Handler

	cmdListener  net.Listener
	dataListener net.Listener

	commands chan string
	data     chan []byte

	mu        sync.Mutex
	cmdConn   net.Conn
	dataConn  net.Conn
	cmdReady  chan struct{}
	dataReady chan struct{}

	// Closed when the client's side of each connection reaches EOF.
	cmdClosed  chan struct{}
	dataClosed chan struct{}

	wg sync.WaitGroup
}

// Start starts a fake modem and stops it when the test ends. A nil handler
// uses Respond.
func Start(t testing.TB, handler Handler) *Modem {
	t.Helper()

	if handler == nil {
		handler = Respond
	}

	cmdListener, dataListener := listenPair(t)
	m := &Modem{
		Host:         "127.0.0.1",
		Port:         cmdListener.Addr().(*net.TCPAddr).Port,
		t:            t,
		handler:      handler,
		cmdListener:  cmdListener,
		dataListener: dataListener,
		commands:     make(chan string, 256),
		data:         make(chan []byte, 256),
		cmdReady:     make(chan struct{}),
		dataReady:    make(chan struct{}),
		cmdClosed:    make(chan struct{}),
		dataClosed:   make(chan struct{}),
	}

	m.wg.Add(2)
	go m.acceptCommand()
	go m.acceptData()

	t.Cleanup(m.Close)
	return m
}

// listenPair binds two consecutive loopback ports. The kernel picks the
// first; the second may be taken, so a few attempts are made.
func listenPair(t testing.TB) (net.Listener, net.Listener) {
	t.Helper()

	for attempt := 0; attempt < 20; attempt++ {
		cmdListener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}
		port := cmdListener.Addr().(*net.TCPAddr).Port
		dataListener, err := net.Listen("tcp", varaprotocol.DataAddress("127.0.0.1", port))
		if err == nil {
			return cmdListener, dataListener
		}
		cmdListener.Close()
	}
	t.Fatalf("failed to bind two consecutive ports")
	return nil, nil
}

func (m *Modem) acceptCommand() {
	defer m.wg.Done()

	conn, err := m.cmdListener.Accept()
	if err != nil {
		return
	}
	m.mu.Lock()
	m.cmdConn = conn
	m.mu.Unlock()
	close(m.cmdReady)
	defer close(m.cmdClosed)

	scanner := bufio.NewScanner(conn)
	scanner.Split(splitCR)
	for scanner.Scan() {
		line := scanner.Text()
		select {
		case m.commands <- line:
		default:
		}
		for _, reply := range m.handler(line) {
			if _, err := io.WriteString(conn, reply+varaprotocol.LineTerminator); err != nil {
				return
			}
		}
	}
}

func (m *Modem) acceptData() {
	defer m.wg.Done()

	conn, err := m.dataListener.Accept()
	if err != nil {
		return
	}
	m.mu.Lock()
	m.dataConn = conn
	m.mu.Unlock()
	close(m.dataReady)
	defer close(m.dataClosed)

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			select {
			case m.data <- bytes.Clone(buf[:n]):
			default:
			}
		}
		if err != nil {
			return
		}
	}
}

func splitCR(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\r'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (m *Modem) waitReady(ready chan struct{}, what string) {
	m.t.Helper()
	select {
	case <-ready:
	case <-time.After(WaitTimeout):
		m.t.Fatalf("no client connected to the %s port", what)
	}
}

// Send writes notification lines to the command channel.
func (m *Modem) Send(lines ...string) {
	m.t.Helper()
	m.waitReady(m.cmdReady, "command")

	m.mu.Lock()
	conn := m.cmdConn
	m.mu.Unlock()

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString(varaprotocol.LineTerminator)
	}
	if _, err := io.WriteString(conn, b.String()); err != nil {
		m.t.Fatalf("failed to send %q: %v", lines, err)
	}
}

// Notify writes notifications to the command channel.
func (m *Modem) Notify(notifications ...varaprotocol.Notification) {
	m.t.Helper()
	lines := make([]string, len(notifications))
	for i, n := range notifications {
		lines[i] = n.Format()
	}
	m.Send(lines...)
}

// SendData writes payload to the data channel.
func (m *Modem) SendData(payload []byte) {
	m.t.Helper()
	m.waitReady(m.dataReady, "data")

	m.mu.Lock()
	conn := m.dataConn
	m.mu.Unlock()

	if _, err := conn.Write(payload); err != nil {
		m.t.Fatalf("failed to send data: %v", err)
	}
}

// NextCommand returns the next command line the client wrote.
func (m *Modem) NextCommand() string {
	m.t.Helper()
	select {
	case line := <-m.commands:
		return line
	case <-time.After(WaitTimeout):
		m.t.Fatalf("no command received within %v", WaitTimeout)
		return ""
	}
}

// ExpectCommand fails the test unless the next command line is want.
func (m *Modem) ExpectCommand(want string) {
	m.t.Helper()
	if got := m.NextCommand(); got != want {
		m.t.Fatalf("got command %q, want %q", got, want)
	}
}

// ExpectNoCommand fails the test if a command arrives within d.
func (m *Modem) ExpectNoCommand(d time.Duration) {
	m.t.Helper()
	select {
	case line := <-m.commands:
		m.t.Fatalf("unexpected command %q", line)
	case <-time.After(d):
	}
}

// NextData returns the next chunk the client wrote to the data channel.
func (m *Modem) NextData() []byte {
	m.t.Helper()
	select {
	case chunk := <-m.data:
		return chunk
	case <-time.After(WaitTimeout):
		m.t.Fatalf("no data received within %v", WaitTimeout)
		return nil
	}
}

// WaitCommandClosed fails the test unless the command connection ends
// within WaitTimeout.
func (m *Modem) WaitCommandClosed() {
	m.t.Helper()
	m.waitClosed(m.cmdClosed, "command")
}

// WaitDataClosed fails the test unless the data connection ends within
// WaitTimeout.
func (m *Modem) WaitDataClosed() {
	m.t.Helper()
	m.waitClosed(m.dataClosed, "data")
}

func (m *Modem) waitClosed(closed chan struct{}, what string) {
	m.t.Helper()
	select {
	case <-closed:
	case <-time.After(WaitTimeout):
		m.t.Fatalf("the %s connection was not closed", what)
	}
}

// Drop closes both client connections, as if the modem went away.
func (m *Modem) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmdConn != nil {
		m.cmdConn.Close()
	}
	if m.dataConn != nil {
		m.dataConn.Close()
	}
}

// Close stops both listeners and drops the client.
func (m *Modem) Close() {
	m.cmdListener.Close()
	m.dataListener.Close()
	m.Drop()
	m.wg.Wait()
}
