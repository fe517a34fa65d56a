// Package bridge mirrors modem traffic onto NATS.
//
// Uplink: every notification is published as JSON to <prefix>.<type> and
// <prefix>.all, where <type> is the lower-cased wire token with spaces
// replaced by underscores (vara.ptt_off, vara.connected). Data channel
// chunks are published raw to <prefix>.data.
//
// Downlink: a command line sent to <prefix>.command is executed and the
// outcome is published to the message's reply subject. Bytes sent to
// <prefix>.send are written to the data channel.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/taylorsreid/govara/varaprotocol"
)

// DefaultCommandTimeout bounds each downlink command.
const DefaultCommandTimeout = 60 * time.Second

// Conn is the subset of *nats.Conn the bridge uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Modem is the subset of *varaprotocol.Client the bridge drives.
type Modem interface {
	Subscribe(handler func(varaprotocol.Notification)) func()
	SubscribeData(handler func(varaprotocol.Notification)) func()
	Execute(ctx context.Context, cmd varaprotocol.Command) (varaprotocol.Notification, error)
	Send(ctx context.Context, payload []byte) error
}

// Reply is published in answer to a downlink command.
type Reply struct {
	OK           bool                       `json:"ok"`
	Notification *varaprotocol.Notification `json:"notification,omitempty"`
	Error        string                     `json:"error,omitempty"`
}

// Bridge mirrors a modem onto NATS. Every notification is published as
// JSON under <prefix>.<type> and <prefix>.all, received data as raw bytes
// under <prefix>.data. Command lines arriving on <prefix>.command are run
// against the modem and answered on the message's reply subject; payloads
// on <prefix>.send go out on the data channel.
type Bridge struct {
	conn    Conn
	modem   Modem
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
	parser  *varaprotocol.CommandParser

	mu     sync.Mutex
	closed bool
	unsubs []func()
	subs   []*nats.Subscription
	wg     sync.WaitGroup
}

// New creates a bridge publishing under prefix. Call Start to attach it.
func New(conn Conn, modem Modem, prefix string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		conn:    conn,
		modem:   modem,
		prefix:  prefix,
		timeout: DefaultCommandTimeout,
		logger:  logger.With("component", "bridge", "prefix", prefix),
		parser:  varaprotocol.NewCommandParser(),
	}
}

// Subject returns the uplink subject for a notification type.
func Subject(prefix string, typ varaprotocol.NotificationType) string {
	return prefix + "." + strings.ToLower(strings.ReplaceAll(typ.String(), " ", "_"))
}

// Start subscribes to the modem and to the downlink subjects.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, d := range []struct {
		subject string
		handle  func(*nats.Msg)
	}{
		{b.prefix + ".command", b.handleCommand},
		{b.prefix + ".send", b.handleSend},
	} {
		handle := d.handle
		sub, err := b.conn.Subscribe(d.subject, func(msg *nats.Msg) {
			b.spawn(func() { handle(msg) })
		})
		if err != nil {
			return err
		}
		if sub != nil {
			b.subs = append(b.subs, sub)
		}
	}

	b.unsubs = append(b.unsubs,
		b.modem.Subscribe(b.publishNotification),
		b.modem.SubscribeData(b.publishData),
	)
	return nil
}

// spawn runs fn in a tracked goroutine unless the bridge is closed.
func (b *Bridge) spawn(fn func()) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		fn()
	}()
}

// Close detaches the bridge and waits for in-flight downlink handlers.
// Messages delivered after Close are dropped.
func (b *Bridge) Close() error {
	b.mu.Lock()
	b.closed = true
	unsubs, subs := b.unsubs, b.subs
	b.unsubs, b.subs = nil, nil
	b.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	b.wg.Wait()
	return errors.Join(errs...)
}

func (b *Bridge) publishNotification(n varaprotocol.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		b.logger.Warn("failed to encode notification", "type", n.Type.String(), "error", err)
		return
	}
	for _, subject := range []string{Subject(b.prefix, n.Type), b.prefix + ".all"} {
		if err := b.conn.Publish(subject, data); err != nil {
			b.logger.Warn("failed to publish notification", "subject", subject, "error", err)
		}
	}
}

func (b *Bridge) publishData(n varaprotocol.Notification) {
	subject := b.prefix + ".data"
	if err := b.conn.Publish(subject, n.Data); err != nil {
		b.logger.Warn("failed to publish data", "subject", subject, "error", err)
	}
}

func (b *Bridge) handleCommand(msg *nats.Msg) {
	line := strings.TrimSpace(string(msg.Data))
	reply := Reply{}

	cmd, err := b.parser.Parse(line)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		var n varaprotocol.Notification
		n, err = b.modem.Execute(ctx, cmd)
		cancel()
		if err == nil {
			reply.OK = true
			reply.Notification = &n
		}
	}
	if err != nil {
		reply.Error = err.Error()
		b.logger.Info("downlink command failed", "command", line, "error", err)
	} else {
		b.logger.Debug("downlink command done", "command", line)
	}

	b.reply(msg, reply)
}

func (b *Bridge) handleSend(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	reply := Reply{OK: true}
	if err := b.modem.Send(ctx, msg.Data); err != nil {
		reply = Reply{Error: err.Error()}
		b.logger.Info("downlink send failed", "bytes", len(msg.Data), "error", err)
	}
	b.reply(msg, reply)
}

func (b *Bridge) reply(msg *nats.Msg, reply Reply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return
	}
	if err := b.conn.Publish(msg.Reply, data); err != nil {
		b.logger.Warn("failed to publish reply", "subject", msg.Reply, "error", err)
	}
}

// Connect dials NATS with reconnect handling that logs through logger.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return nats.Connect(url,
		nats.Name("vara"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
}
