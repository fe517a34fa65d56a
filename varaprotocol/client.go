package varaprotocol

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DisconnectHandler is called once when either transport fails.
type DisconnectHandler func(err error)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records client activity on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithSettleInterval overrides DefaultSettleInterval.
func WithSettleInterval(d time.Duration) Option {
	return func(c *Client) { c.settle = d }
}

// WithQuirks overrides the default quirks of the variant.
func WithQuirks(q Quirks) Option {
	return func(c *Client) { c.quirks = q }
}

// Client drives a VARA modem over its command and data channels.
//
// Every operation writes one command line and blocks until the notification
// that ends it arrives, the modem answers WRONG, the transport fails, or ctx
// is done. There is no built-in timeout.
//
// Thread Safety:
// Operations may be issued from several goroutines. Writes are serialised.
// Issuing two operations whose terminal notifications cannot be told apart,
// such as two Connect calls, is allowed but their outcomes are not defined.
type Client struct {
	mu sync.Mutex

	variant Variant
	quirks  Quirks
	settle  time.Duration
	logger  *slog.Logger
	metrics *Metrics

	cmdConn     net.Conn
	dataConn    net.Conn
	isConnected bool
	closing     bool

	// writeMu serialises command writes so guards are armed in write order.
	writeMu     sync.Mutex
	dataWriteMu sync.Mutex

	commands *bus
	data     *bus
	state    *state
	parser   *NotificationParser

	// Pending operations. guards and acks are kept in write order.
	pending map[string]*operation
	guards  []*operation
	acks    []*operation

	disconnectHandler DisconnectHandler

	readers *readerGroup
}

// readerGroup tracks the two readers of one session. done is closed once
// both have stopped and the disconnect handler, if any, has returned.
type readerGroup struct {
	left int
	done chan struct{}
}

// operation is one in-flight command.
type operation struct {
	id          string
	cmd         Command
	done        chan opResult
	settled     bool
	unsubscribe func()
}

type opResult struct {
	n   Notification
	err error
}

// completion describes how an operation ends.
type completion struct {
	// ack operations end on the first OK not claimed by an older operation.
	ack bool
	// immediate operations end as soon as the line is written and never arm
	// a WRONG guard.
	immediate bool
	// match reports whether n ends the operation, and with which error.
	match func(n Notification) (bool, error)
}

// NewClient creates a client for the given modem variant. Call Open before
// issuing operations.
func NewClient(variant Variant, opts ...Option) *Client {
	c := &Client{
		variant:  variant,
		quirks:   DefaultQuirks(variant),
		settle:   DefaultSettleInterval,
		logger:   slog.Default(),
		commands: newBus(),
		data:     newBus(),
		state:    newState(variant),
		parser:   NewNotificationParser(),
		pending:  make(map[string]*operation),
	}
	c.readers = &readerGroup{done: make(chan struct{})}
	close(c.readers.done)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Variant returns the modem variant the client was created for.
func (c *Client) Variant() Variant { return c.variant }

// Quirks returns the quirks in effect.
func (c *Client) Quirks() Quirks { return c.quirks }

// State returns a read-only view of the session state.
func (c *Client) State() StateView { return StateView{s: c.state} }

// SetDisconnectHandler sets the callback for transport failures. It is not
// called for Close.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectHandler = handler
}

// IsConnected reports whether both transports are up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// Open dials the command channel on port and the data channel on port+1,
// starts a reader for each, and returns after the settle interval.
func (c *Client) Open(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	if c.isConnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	if c.closing {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	d := net.Dialer{Timeout: ConnectionTimeout}

	cmdConn, err := d.DialContext(ctx, "tcp", CommandAddress(host, port))
	if err != nil {
		return NewConnectionError("failed to open command channel", err)
	}
	dataConn, err := d.DialContext(ctx, "tcp", DataAddress(host, port))
	if err != nil {
		cmdConn.Close()
		return NewConnectionError("failed to open data channel", err)
	}

	c.mu.Lock()
	c.cmdConn = cmdConn
	c.dataConn = dataConn
	c.isConnected = true
	readers := &readerGroup{left: 2, done: make(chan struct{})}
	c.readers = readers
	go c.runReader(c.commandLoop, cmdConn, readers)
	go c.runReader(c.dataLoop, dataConn, readers)
	c.mu.Unlock()

	c.logger.Debug("transports open",
		"command", cmdConn.RemoteAddr().String(),
		"data", dataConn.RemoteAddr().String(),
		"variant", c.variant.String())

	// The modem can accept the connection before it reliably accepts writes.
	if c.settle > 0 {
		timer := time.NewTimer(c.settle)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		}
	}
	return nil
}

// Close tears down both transports without sending anything to the modem.
// Pending operations fail with ErrClosed. Close is idempotent and does not
// wait for the readers, so it may be called from a subscriber or the
// disconnect handler; use Done to wait for them.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closing = true
	c.isConnected = false
	cmdConn, dataConn := c.cmdConn, c.dataConn
	c.cmdConn, c.dataConn = nil, nil
	c.mu.Unlock()

	var errs []error
	if cmdConn != nil {
		errs = append(errs, cmdConn.Close())
	}
	if dataConn != nil {
		errs = append(errs, dataConn.Close())
	}

	c.failPending(ErrClosed, "closed")
	return errors.Join(errs...)
}

// Done returns a channel that is closed once both readers have stopped,
// after Close or after the transport is lost. Handlers must not wait on it.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readers.done
}

func (c *Client) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

// handleDisconnect runs when a reader on conn stops. It does nothing after
// Close or once conn belongs to an earlier session.
func (c *Client) handleDisconnect(conn net.Conn, err error) {
	c.mu.Lock()
	if !c.isConnected || (conn != c.cmdConn && conn != c.dataConn) {
		c.mu.Unlock()
		return
	}
	c.isConnected = false
	cmdConn, dataConn := c.cmdConn, c.dataConn
	c.cmdConn, c.dataConn = nil, nil
	handler := c.disconnectHandler
	c.mu.Unlock()

	if cmdConn != nil {
		cmdConn.Close()
	}
	if dataConn != nil {
		dataConn.Close()
	}

	c.logger.Error("transport lost", "error", err)
	c.failPending(NewConnectionError("transport lost", err), "transport")

	if handler != nil {
		handler(err)
	}
}

func (c *Client) failPending(err error, reason string) {
	c.mu.Lock()
	ops := make([]*operation, 0, len(c.pending))
	for _, op := range c.pending {
		ops = append(ops, op)
	}
	c.mu.Unlock()

	for _, op := range ops {
		if c.finish(op, Notification{}, err) {
			c.metrics.recordFailure(op.cmd, reason)
		}
	}
}

// splitLines is a bufio.SplitFunc for the command channel. Lines end with
// '\r'; a '\n' next to it is tolerated.
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// runReader runs loop until the transport fails.
func (c *Client) runReader(loop func(net.Conn) error, conn net.Conn, g *readerGroup) {
	err := loop(conn)
	c.handleDisconnect(conn, err)

	c.mu.Lock()
	g.left--
	if g.left == 0 {
		close(g.done)
	}
	c.mu.Unlock()
}

// commandLoop frames the command channel and dispatches each line in order.
func (c *Client) commandLoop(conn net.Conn) error {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 512), MaxLineLength)
	scanner.Split(splitLines)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		// Lines still buffered when Close runs are dropped.
		if c.isClosing() {
			break
		}
		c.dispatch(line)
	}

	err := scanner.Err()
	if errors.Is(err, bufio.ErrTooLong) {
		err = ErrLineTooLong
	}
	if err == nil {
		err = io.EOF
	}
	return err
}

// dataLoop publishes every chunk received on the data channel.
func (c *Client) dataLoop(conn net.Conn) error {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 && !c.isClosing() {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			c.state.applyData(chunk)
			c.metrics.recordData("rx", n)
			c.data.publish(Notification{
				Type:     NotificationData,
				Data:     chunk,
				Received: time.Now(),
			})
		}
		if err != nil {
			return err
		}
	}
}

// dispatch classifies one command channel line, updates state, settles the
// operations it acknowledges, then publishes it.
func (c *Client) dispatch(line string) {
	n, err := c.parser.Parse(line)
	n.Received = time.Now()
	if err != nil {
		c.logger.Debug("malformed line", "line", n.Raw, "error", err)
	} else if n.Type == NotificationUnknown {
		c.logger.Debug("unrecognised line", "line", n.Raw)
	}

	c.state.apply(n)
	c.metrics.recordLine(n)

	switch n.Type {
	case NotificationWrong:
		c.reject(n)
	case NotificationOK:
		c.acknowledge(n)
	}

	c.commands.publish(n)
}

// reject fails the most recently written operation whose guard is armed.
func (c *Client) reject(n Notification) {
	c.mu.Lock()
	var op *operation
	if len(c.guards) > 0 {
		op = c.guards[len(c.guards)-1]
	}
	c.mu.Unlock()

	if op == nil {
		c.logger.Warn("WRONG with no pending operation")
		return
	}
	if c.finish(op, n, &RejectedError{Command: op.cmd}) {
		c.metrics.recordRejection(op.cmd)
		c.logger.Warn("command rejected", "op_id", op.id, "command", op.cmd.Format())
	}
}

// acknowledge resolves the oldest operation waiting for OK.
func (c *Client) acknowledge(n Notification) {
	c.mu.Lock()
	var op *operation
	if len(c.acks) > 0 {
		op = c.acks[0]
	}
	c.mu.Unlock()

	if op != nil {
		c.finish(op, n, nil)
	}
}

// finish settles op exactly once and reports whether this call did it.
func (c *Client) finish(op *operation, n Notification, err error) bool {
	c.mu.Lock()
	if op.settled {
		c.mu.Unlock()
		return false
	}
	op.settled = true
	delete(c.pending, op.id)
	c.guards = removeOperation(c.guards, op)
	c.acks = removeOperation(c.acks, op)
	unsubscribe := op.unsubscribe
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	op.done <- opResult{n: n, err: err}
	c.metrics.opSettled()
	return true
}

func removeOperation(ops []*operation, op *operation) []*operation {
	for i, cur := range ops {
		if cur == op {
			return append(ops[:i], ops[i+1:]...)
		}
	}
	return ops
}

// check runs the local preconditions of cmd. Nothing is written when it
// fails.
func (c *Client) check(cmd Command) error {
	switch cmd.Type {
	case CmdBandwidth:
		if !c.variant.HasBandwidth() {
			return fmt.Errorf("%s on VARA %s: %w", cmd.Type, c.variant, ErrUnsupportedVariant)
		}
	case CmdCQFrame:
		if cmd.Bandwidth != 0 && !c.variant.HasBandwidth() {
			return fmt.Errorf("%s with bandwidth on VARA %s: %w", cmd.Type, c.variant, ErrUnsupportedVariant)
		}
	case CmdWinlinkSession, CmdP2PSession:
		if !c.variant.HasSession() {
			return fmt.Errorf("%s on VARA %s: %w", cmd.Type, c.variant, ErrUnsupportedVariant)
		}
	case CmdTune, CmdTuneOff, CmdTuneQuery:
		if !c.variant.HasTune() {
			return fmt.Errorf("%s on VARA %s: %w", cmd.Type, c.variant, ErrUnsupportedVariant)
		}
		if !c.state.hasRegistered() {
			return ErrNotRegistered
		}
	}
	return cmd.Validate()
}

// completionFor returns the terminal condition of cmd.
func (c *Client) completionFor(cmd Command) completion {
	switch cmd.Type {
	case CmdConnect:
		return completion{match: func(n Notification) (bool, error) {
			switch {
			case strings.HasPrefix(n.Raw, "CONNECTED"):
				return true, nil
			case n.Type == NotificationDisconnected:
				return true, &OutcomeError{Command: cmd, Notification: n, Message: "link not established"}
			}
			return false, nil
		}}

	case CmdDisconnect:
		return completion{
			ack:   c.quirks.DisconnectAcksWithOK,
			match: matchType(NotificationDisconnected),
		}

	case CmdChat:
		if cmd.On && c.quirks.ChatOnWithoutOK {
			return completion{immediate: true}
		}
		return completion{ack: true}

	case CmdMyCall:
		return completion{match: func(n Notification) (bool, error) {
			return n.Type == NotificationRegistered, nil
		}}

	case CmdCQFrame:
		return completion{match: matchType(NotificationPTTOff)}

	case CmdTuneQuery:
		return completion{match: matchType(NotificationTune)}

	case CmdCleanTxBuffer:
		return completion{match: func(n Notification) (bool, error) {
			if n.Type != NotificationCleanTxBuffer {
				return false, nil
			}
			if n.CleanStatus == CleanFailed {
				return true, &OutcomeError{Command: cmd, Notification: n, Message: "modem could not clear the transmit buffer"}
			}
			return true, nil
		}}

	case CmdVersion:
		return completion{match: func(n Notification) (bool, error) {
			return n.Type == NotificationVersion && strings.HasPrefix(n.Version, "VARA"), nil
		}}

	default:
		return completion{ack: true}
	}
}

func matchType(typ NotificationType) func(Notification) (bool, error) {
	return func(n Notification) (bool, error) {
		return n.Type == typ, nil
	}
}

// Execute validates cmd, writes it, and waits for its terminal notification,
// which is returned. Immediate operations return a zero Notification.
func (c *Client) Execute(ctx context.Context, cmd Command) (Notification, error) {
	if err := c.check(cmd); err != nil {
		return Notification{}, err
	}
	if err := ctx.Err(); err != nil {
		return Notification{}, err
	}

	c.mu.Lock()
	if !c.isConnected {
		c.mu.Unlock()
		return Notification{}, ErrNotConnected
	}
	c.mu.Unlock()

	comp := c.completionFor(cmd)
	op := &operation{
		id:   uuid.NewString(),
		cmd:  cmd,
		done: make(chan opResult, 1),
	}

	// The listener goes in before the line is written so a fast reply
	// cannot be missed.
	c.mu.Lock()
	c.pending[op.id] = op
	if comp.ack {
		c.acks = append(c.acks, op)
	}
	if comp.match != nil {
		match := comp.match
		op.unsubscribe = c.commands.once(func(n Notification) bool {
			ok, err := match(n)
			if !ok {
				return false
			}
			if c.finish(op, n, err) && err != nil {
				c.metrics.recordFailure(cmd, "outcome")
			}
			return true
		})
	}
	c.mu.Unlock()
	c.metrics.opStarted()

	c.logger.Debug("sending command", "op_id", op.id, "command", cmd.Format())

	if err := c.write(op, comp); err != nil {
		if c.finish(op, Notification{}, err) {
			c.metrics.recordFailure(cmd, "transport")
		}
	} else if comp.immediate {
		c.finish(op, Notification{}, nil)
	}

	select {
	case res := <-op.done:
		return res.n, res.err
	case <-ctx.Done():
		if c.finish(op, Notification{}, ctx.Err()) {
			c.metrics.recordFailure(cmd, "canceled")
		}
		res := <-op.done
		return res.n, res.err
	}
}

// write arms the guard and writes the command line. Both happen under
// writeMu so the guard order is the write order.
func (c *Client) write(op *operation, comp completion) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	conn := c.cmdConn
	if conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if !comp.immediate && !op.settled {
		c.guards = append(c.guards, op)
	}
	c.mu.Unlock()

	if _, err := io.WriteString(conn, op.cmd.FormatLine()); err != nil {
		return NewConnectionError("failed to send command", err)
	}
	c.state.echo(op.cmd)
	c.metrics.recordCommand(op.cmd)
	return nil
}

// Connect opens a link from source to destination, optionally through one
// or two relays. It returns the link as announced by CONNECTED; the result
// is nil if that line was malformed.
func (c *Client) Connect(ctx context.Context, source, destination string, relays ...string) (*ConnectionData, error) {
	n, err := c.Execute(ctx, NewConnectViaCommand(source, destination, relays...))
	if err != nil {
		return nil, err
	}
	return n.Connection, nil
}

// Disconnect ends the current link and waits for DISCONNECTED.
func (c *Client) Disconnect(ctx context.Context) error {
	_, err := c.Execute(ctx, NewDisconnectCommand())
	return err
}

// Abort drops the current link immediately.
func (c *Client) Abort(ctx context.Context) error {
	_, err := c.Execute(ctx, NewAbortCommand())
	return err
}

// ListenOn makes the modem answer incoming calls.
func (c *Client) ListenOn(ctx context.Context) error {
	_, err := c.Execute(ctx, NewListenCommand(true))
	return err
}

// ListenOff makes the modem ignore incoming calls.
func (c *Client) ListenOff(ctx context.Context) error {
	_, err := c.Execute(ctx, NewListenCommand(false))
	return err
}

// SetCompression selects the payload compression mode.
func (c *Client) SetCompression(ctx context.Context, mode Compression) error {
	_, err := c.Execute(ctx, NewCompressionCommand(mode))
	return err
}

// CompressionOff sends COMPRESSION OFF.
func (c *Client) CompressionOff(ctx context.Context) error {
	return c.SetCompression(ctx, CompressionOff)
}

// CompressionText sends COMPRESSION TEXT.
func (c *Client) CompressionText(ctx context.Context) error {
	return c.SetCompression(ctx, CompressionText)
}

// CompressionFiles sends COMPRESSION FILES.
func (c *Client) CompressionFiles(ctx context.Context) error {
	return c.SetCompression(ctx, CompressionFiles)
}

// SetBandwidth selects the channel bandwidth. VARA HF only.
func (c *Client) SetBandwidth(ctx context.Context, bw Bandwidth) error {
	_, err := c.Execute(ctx, NewBandwidthCommand(bw))
	return err
}

// BW500 sends BW500.
func (c *Client) BW500(ctx context.Context) error { return c.SetBandwidth(ctx, Bandwidth500) }

// BW2300 sends BW2300.
func (c *Client) BW2300(ctx context.Context) error { return c.SetBandwidth(ctx, Bandwidth2300) }

// BW2750 sends BW2750.
func (c *Client) BW2750(ctx context.Context) error { return c.SetBandwidth(ctx, Bandwidth2750) }

// ChatOn sends CHAT ON. With the ChatOnWithoutOK quirk it returns as soon
// as the line is written.
func (c *Client) ChatOn(ctx context.Context) error {
	_, err := c.Execute(ctx, NewChatCommand(true))
	return err
}

// ChatOff sends CHAT OFF.
func (c *Client) ChatOff(ctx context.Context) error {
	_, err := c.Execute(ctx, NewChatCommand(false))
	return err
}

// RegisterCallsigns sends MYCALL and returns the callsigns the modem
// reports as registered.
func (c *Client) RegisterCallsigns(ctx context.Context, callsigns ...string) ([]string, error) {
	n, err := c.Execute(ctx, NewMyCallCommand(callsigns...))
	if err != nil {
		return nil, err
	}
	return n.Callsigns, nil
}

// WinlinkSession selects Winlink session framing. Not available on VARA FM.
func (c *Client) WinlinkSession(ctx context.Context) error {
	_, err := c.Execute(ctx, NewWinlinkSessionCommand())
	return err
}

// P2PSession selects peer-to-peer session framing. Not available on VARA FM.
func (c *Client) P2PSession(ctx context.Context) error {
	_, err := c.Execute(ctx, NewP2PSessionCommand())
	return err
}

// SetTune keys a tune carrier at level dB, in [MinTuneLevel, MaxTuneLevel].
// A callsign must be registered first.
func (c *Client) SetTune(ctx context.Context, level int) error {
	_, err := c.Execute(ctx, NewTuneCommand(level))
	return err
}

// GetTune asks the modem for the current tune level.
func (c *Client) GetTune(ctx context.Context) (int, error) {
	n, err := c.Execute(ctx, NewTuneQueryCommand())
	if err != nil {
		return 0, err
	}
	return n.Tune, nil
}

// TuneOff stops the tune carrier.
func (c *Client) TuneOff(ctx context.Context) error {
	_, err := c.Execute(ctx, NewTuneOffCommand())
	return err
}

// PurgeBuffer discards data queued for transmission. CLEANTXBUFFER FAILED
// is returned as an *OutcomeError.
func (c *Client) PurgeBuffer(ctx context.Context) (CleanStatus, error) {
	n, err := c.Execute(ctx, NewCleanTxBufferCommand())
	return n.CleanStatus, err
}

// Version returns the version string reported by the modem.
func (c *Client) Version(ctx context.Context) (string, error) {
	n, err := c.Execute(ctx, NewVersionCommand())
	if err != nil {
		return "", err
	}
	return n.Version, nil
}

// SendCQFrame transmits a CQ frame built with one of the NewCQFrame
// constructors and waits until the transmitter is released.
func (c *Client) SendCQFrame(ctx context.Context, cmd Command) error {
	if cmd.Type != CmdCQFrame {
		return newInvalidCommandError(cmd.Type.String())
	}
	_, err := c.Execute(ctx, cmd)
	return err
}

// Send writes payload to the data channel.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.dataConn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.dataWriteMu.Lock()
	defer c.dataWriteMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
	}
	n, err := conn.Write(payload)
	c.metrics.recordData("tx", n)
	if err != nil {
		return NewConnectionError("failed to send data", err)
	}
	return nil
}

// Subscribe calls handler for every command channel line, in arrival
// order, until the returned function is called. Handlers run on the reader
// goroutine and must not block; they may call Close.
func (c *Client) Subscribe(handler func(Notification)) func() {
	return c.commands.subscribe(handler)
}

// SubscribeData calls handler for every chunk received on the data channel.
func (c *Client) SubscribeData(handler func(Notification)) func() {
	return c.data.subscribe(handler)
}

// Next waits for the next notification of type typ. NotificationData waits
// on the data channel.
func (c *Client) Next(ctx context.Context, typ NotificationType) (Notification, error) {
	b := c.commands
	if typ == NotificationData {
		b = c.data
	}

	ch := make(chan Notification, 1)
	cancel := b.once(func(n Notification) bool {
		if n.Type != typ {
			return false
		}
		ch <- n
		return true
	})

	select {
	case n := <-ch:
		return n, nil
	case <-ctx.Done():
		cancel()
		return Notification{}, ctx.Err()
	}
}
