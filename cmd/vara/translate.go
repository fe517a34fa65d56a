// =============================================================================
// translate.go - REPL Input Translation and Command Routing
// =============================================================================
//
// Every REPL line becomes an action. Lines starting with "." are local
// dot-commands; anything else is a modem command in wire syntax (LISTEN ON,
// CONNECT N0CALL W1AW VIA K1ABC, TUNE -10, ...). Wire commands are parsed
// with varaprotocol.CommandParser and then routed through the matching typed
// client operation, so the REPL exercises exactly what library users call.
//
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/taylorsreid/govara/varaprotocol"
)

// defaultWaitTimeout bounds .wait when no timeout is given.
const defaultWaitTimeout = 60 * time.Second

type actionKind int

const (
	actionNone actionKind = iota
	actionCommand
	actionState
	actionSend
	actionWait
	actionHelp
	actionQuit
)

// action is one parsed REPL line.
type action struct {
	kind actionKind

	// cmd is set for actionCommand.
	cmd varaprotocol.Command

	// text is the .send payload, the .help topic or the .state field.
	text string

	// notification and timeout are set for actionWait.
	notification varaprotocol.NotificationType
	timeout      time.Duration
}

var commandParser = varaprotocol.NewCommandParser()

// translateLine converts one line of REPL input into an action. Blank lines
// yield actionNone.
func translateLine(line string) (action, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return action{kind: actionNone}, nil
	}

	if strings.HasPrefix(trimmed, ".") {
		return translateDotCommand(trimmed)
	}

	cmd, err := commandParser.Parse(trimmed)
	if err != nil {
		return action{}, err
	}
	return action{kind: actionCommand, cmd: cmd}, nil
}

func translateDotCommand(line string) (action, error) {
	parts := strings.SplitN(line, " ", 2)
	keyword := strings.ToLower(parts[0])
	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	switch keyword {
	case ".quit", ".exit":
		return action{kind: actionQuit}, nil

	case ".help":
		return action{kind: actionHelp, text: args}, nil

	case ".state":
		return action{kind: actionState, text: args}, nil

	case ".send":
		if args == "" {
			return action{}, errors.New(".send requires text to transmit")
		}
		return action{kind: actionSend, text: args}, nil

	case ".wait":
		return translateWait(args)

	default:
		return action{}, fmt.Errorf("unknown command %s (type .help for a list)", parts[0])
	}
}

// translateWait parses ".wait NOTIFICATION [seconds]". Multi-word
// notifications may be written with a space or an underscore (PTT OFF,
// PTT_OFF).
func translateWait(args string) (action, error) {
	if args == "" {
		return action{}, errors.New(".wait requires a notification name, e.g. .wait CONNECTED")
	}

	fields := strings.Fields(args)
	timeout := defaultWaitTimeout
	if len(fields) > 1 {
		if secs, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
			if secs <= 0 {
				return action{}, fmt.Errorf("invalid timeout %d", secs)
			}
			timeout = time.Duration(secs) * time.Second
			fields = fields[:len(fields)-1]
		}
	}

	typ, err := varaprotocol.ParseNotificationType(strings.Join(fields, " "))
	if err != nil {
		return action{}, err
	}
	return action{kind: actionWait, notification: typ, timeout: timeout}, nil
}

// runCommand routes cmd through the client operation that owns it and
// returns a one-line description of the outcome.
func runCommand(ctx context.Context, client *varaprotocol.Client, cmd varaprotocol.Command) (string, error) {
	switch cmd.Type {
	case varaprotocol.CmdConnect:
		cd, err := client.Connect(ctx, cmd.Source, cmd.Destination, cmd.Relays...)
		if err != nil {
			return "", err
		}
		return describeConnection(cd), nil

	case varaprotocol.CmdDisconnect:
		return outcome("disconnected", client.Disconnect(ctx))

	case varaprotocol.CmdAbort:
		return outcome("aborted", client.Abort(ctx))

	case varaprotocol.CmdListen:
		if cmd.On {
			return outcome("listening", client.ListenOn(ctx))
		}
		return outcome("not listening", client.ListenOff(ctx))

	case varaprotocol.CmdMyCall:
		calls, err := client.RegisterCallsigns(ctx, cmd.Callsigns...)
		if err != nil {
			return "", err
		}
		return "registered " + strings.Join(calls, " "), nil

	case varaprotocol.CmdCompression:
		return outcome("compression "+string(cmd.Compression), client.SetCompression(ctx, cmd.Compression))

	case varaprotocol.CmdBandwidth:
		return outcome("bandwidth "+cmd.Bandwidth.String()+" Hz", client.SetBandwidth(ctx, cmd.Bandwidth))

	case varaprotocol.CmdChat:
		if cmd.On {
			return outcome("chat on", client.ChatOn(ctx))
		}
		return outcome("chat off", client.ChatOff(ctx))

	case varaprotocol.CmdWinlinkSession:
		return outcome("winlink session", client.WinlinkSession(ctx))

	case varaprotocol.CmdP2PSession:
		return outcome("p2p session", client.P2PSession(ctx))

	case varaprotocol.CmdCQFrame:
		return outcome("cq frame sent", client.SendCQFrame(ctx, cmd))

	case varaprotocol.CmdTune:
		return outcome(fmt.Sprintf("tune %d dB", cmd.TuneLevel), client.SetTune(ctx, cmd.TuneLevel))

	case varaprotocol.CmdTuneOff:
		return outcome("tune off", client.TuneOff(ctx))

	case varaprotocol.CmdTuneQuery:
		level, err := client.GetTune(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("tune %d dB", level), nil

	case varaprotocol.CmdCleanTxBuffer:
		status, err := client.PurgeBuffer(ctx)
		if err != nil {
			return "", err
		}
		return "tx buffer " + strings.ToLower(string(status)), nil

	case varaprotocol.CmdVersion:
		return client.Version(ctx)

	default:
		n, err := client.Execute(ctx, cmd)
		if err != nil {
			return "", err
		}
		return n.Format(), nil
	}
}

func outcome(done string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return done, nil
}

func describeConnection(cd *varaprotocol.ConnectionData) string {
	if cd == nil {
		return "connected"
	}
	s := fmt.Sprintf("connected %s -> %s", cd.Source, cd.Destination)
	if relays := cd.Relays(); len(relays) > 0 {
		s += " via " + strings.Join(relays, ", ")
	}
	if cd.Bandwidth != 0 {
		s += fmt.Sprintf(" (%s Hz)", cd.Bandwidth)
	}
	return s
}

// formatState renders the state snapshot as indented JSON, or one field
// of it when field is set. Field names match case-insensitively.
func formatState(snap varaprotocol.Snapshot, field string) (string, error) {
	if field == "" {
		raw, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", err
	}

	for name, value := range fields {
		if strings.EqualFold(name, field) {
			return name + ": " + string(value), nil
		}
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "", fmt.Errorf("no state field %q (fields: %s)", field, strings.Join(names, ", "))
}
