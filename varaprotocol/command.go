package varaprotocol

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// CommandType represents the verb of an outbound command.
type CommandType int

const (
	// Session control
	CmdConnect CommandType = iota
	CmdDisconnect
	CmdAbort
	CmdListen

	// Station setup
	CmdMyCall
	CmdCompression
	CmdBandwidth
	CmdChat
	CmdWinlinkSession
	CmdP2PSession

	// Broadcast
	CmdCQFrame

	// Transmitter tuning
	CmdTune
	CmdTuneOff
	CmdTuneQuery

	// Queries
	CmdCleanTxBuffer
	CmdVersion
)

var commandTypeNames = map[CommandType]string{
	CmdConnect:        "Connect",
	CmdDisconnect:     "Disconnect",
	CmdAbort:          "Abort",
	CmdListen:         "Listen",
	CmdMyCall:         "MyCall",
	CmdCompression:    "Compression",
	CmdBandwidth:      "Bandwidth",
	CmdChat:           "Chat",
	CmdWinlinkSession: "WinlinkSession",
	CmdP2PSession:     "P2PSession",
	CmdCQFrame:        "CQFrame",
	CmdTune:           "Tune",
	CmdTuneOff:        "TuneOff",
	CmdTuneQuery:      "TuneQuery",
	CmdCleanTxBuffer:  "CleanTxBuffer",
	CmdVersion:        "Version",
}

// String returns the operation name of the command type.
func (t CommandType) String() string {
	if name, ok := commandTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("CommandType(%d)", int(t))
}

// Command represents one outbound command line.
// Use the constructor functions (NewConnectCommand, NewMyCallCommand, etc.)
// to create Command instances.
type Command struct {
	Type CommandType

	// Fields used by various commands (only relevant fields are populated)
	Source      string      // For connect, cqFrame
	Destination string      // For connect
	Relays      []string    // For connect, cqFrame (at most MaxRelays)
	Callsigns   []string    // For myCall
	On          bool        // For listen, chat
	Compression Compression // For compression
	Bandwidth   Bandwidth   // For bandwidth, cqFrame (HF form)
	TuneLevel   int         // For tune, in dB
}

// Command constructors, one per verb and arity.

// NewConnectCommand creates a direct CONNECT command.
func NewConnectCommand(source, destination string) Command {
	return Command{Type: CmdConnect, Source: source, Destination: destination}
}

// NewConnectViaCommand creates a CONNECT through one or two digipeaters.
func NewConnectViaCommand(source, destination string, relays ...string) Command {
	return Command{Type: CmdConnect, Source: source, Destination: destination, Relays: relays}
}

// NewDisconnectCommand creates a DISCONNECT command.
func NewDisconnectCommand() Command {
	return Command{Type: CmdDisconnect}
}

// NewAbortCommand creates an ABORT command.
func NewAbortCommand() Command {
	return Command{Type: CmdAbort}
}

// NewListenCommand creates LISTEN ON or LISTEN OFF.
func NewListenCommand(on bool) Command {
	return Command{Type: CmdListen, On: on}
}

// NewMyCallCommand registers up to MaxCallsigns callsigns.
func NewMyCallCommand(callsigns ...string) Command {
	return Command{Type: CmdMyCall, Callsigns: callsigns}
}

// NewCompressionCommand creates COMPRESSION OFF, TEXT or FILES.
func NewCompressionCommand(mode Compression) Command {
	return Command{Type: CmdCompression, Compression: mode}
}

// NewBandwidthCommand creates BW500, BW2300 or BW2750 (VARA HF only).
func NewBandwidthCommand(bw Bandwidth) Command {
	return Command{Type: CmdBandwidth, Bandwidth: bw}
}

// NewChatCommand creates CHAT ON or CHAT OFF.
func NewChatCommand(on bool) Command {
	return Command{Type: CmdChat, On: on}
}

// NewWinlinkSessionCommand creates WINLINK SESSION.
func NewWinlinkSessionCommand() Command {
	return Command{Type: CmdWinlinkSession}
}

// NewP2PSessionCommand creates P2P SESSION.
func NewP2PSessionCommand() Command {
	return Command{Type: CmdP2PSession}
}

// NewCQFrameCommand creates a bare CQFRAME, as used by VARA FM and SAT.
func NewCQFrameCommand(source string) Command {
	return Command{Type: CmdCQFrame, Source: source}
}

// NewCQFrameBandwidthCommand creates a CQFRAME announcing a bandwidth, as
// used by VARA HF.
func NewCQFrameBandwidthCommand(source string, bw Bandwidth) Command {
	return Command{Type: CmdCQFrame, Source: source, Bandwidth: bw}
}

// NewCQFrameViaCommand creates a CQFRAME through one or two digipeaters, as
// used by VARA FM.
func NewCQFrameViaCommand(source string, relays ...string) Command {
	return Command{Type: CmdCQFrame, Source: source, Relays: relays}
}

// NewTuneCommand creates TUNE <dB>.
func NewTuneCommand(level int) Command {
	return Command{Type: CmdTune, TuneLevel: level}
}

// NewTuneOffCommand creates TUNE OFF.
func NewTuneOffCommand() Command {
	return Command{Type: CmdTuneOff}
}

// NewTuneQueryCommand creates TUNE ?.
func NewTuneQueryCommand() Command {
	return Command{Type: CmdTuneQuery}
}

// NewCleanTxBufferCommand creates CLEANTXBUFFER.
func NewCleanTxBufferCommand() Command {
	return Command{Type: CmdCleanTxBuffer}
}

// NewVersionCommand creates VERSION.
func NewVersionCommand() Command {
	return Command{Type: CmdVersion}
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// Format returns the command line without the terminator.
func (c Command) Format() string {
	switch c.Type {
	case CmdConnect:
		line := "CONNECT " + c.Source + " " + c.Destination
		if len(c.Relays) > 0 {
			line += " VIA " + strings.Join(c.Relays, " ")
		}
		return line

	case CmdDisconnect:
		return "DISCONNECT"

	case CmdAbort:
		return "ABORT"

	case CmdListen:
		return "LISTEN " + onOff(c.On)

	case CmdMyCall:
		return "MYCALL " + strings.Join(c.Callsigns, " ")

	case CmdCompression:
		return "COMPRESSION " + string(c.Compression)

	case CmdBandwidth:
		return c.Bandwidth.Token()

	case CmdChat:
		return "CHAT " + onOff(c.On)

	case CmdWinlinkSession:
		return "WINLINK SESSION"

	case CmdP2PSession:
		return "P2P SESSION"

	case CmdCQFrame:
		line := "CQFRAME " + c.Source
		if c.Bandwidth != 0 {
			return line + " " + c.Bandwidth.String()
		}
		if len(c.Relays) > 0 {
			line += " " + strings.Join(c.Relays, " ")
		}
		return line

	case CmdTune:
		return "TUNE " + strconv.Itoa(c.TuneLevel)

	case CmdTuneOff:
		return "TUNE OFF"

	case CmdTuneQuery:
		return "TUNE ?"

	case CmdCleanTxBuffer:
		return "CLEANTXBUFFER"

	case CmdVersion:
		return "VERSION"

	default:
		return ""
	}
}

// FormatLine returns the command ready to be written, terminator included.
func (c Command) FormatLine() string {
	return c.Format() + LineTerminator
}

// Args returns the arguments of the command, for error messages and logs.
func (c Command) Args() []string {
	switch c.Type {
	case CmdConnect:
		return append([]string{c.Source, c.Destination}, c.Relays...)
	case CmdMyCall:
		return append([]string(nil), c.Callsigns...)
	case CmdListen, CmdChat:
		return []string{strconv.FormatBool(c.On)}
	case CmdCompression:
		return []string{string(c.Compression)}
	case CmdBandwidth:
		return []string{c.Bandwidth.String()}
	case CmdCQFrame:
		args := []string{c.Source}
		if c.Bandwidth != 0 {
			args = append(args, c.Bandwidth.String())
		}
		return append(args, c.Relays...)
	case CmdTune:
		return []string{strconv.Itoa(c.TuneLevel)}
	default:
		return nil
	}
}

// Validate checks the arguments of the command without touching the network.
func (c Command) Validate() error {
	switch c.Type {
	case CmdConnect:
		if err := validateCallsigns(c.Source, c.Destination); err != nil {
			return err
		}
		return validateRelays(c.Relays)

	case CmdMyCall:
		if len(c.Callsigns) == 0 {
			return ErrNoCallsigns
		}
		if len(c.Callsigns) > MaxCallsigns {
			return fmt.Errorf("%d callsigns given: %w", len(c.Callsigns), ErrTooManyCallsigns)
		}
		return validateCallsigns(c.Callsigns...)

	case CmdCompression:
		if !c.Compression.Valid() {
			return newInvalidValueError("compression", string(c.Compression))
		}

	case CmdBandwidth:
		if !c.Bandwidth.Valid() {
			return fmt.Errorf("%d Hz: %w", int(c.Bandwidth), ErrInvalidBandwidth)
		}

	case CmdCQFrame:
		if err := validateCallsigns(c.Source); err != nil {
			return err
		}
		if c.Bandwidth != 0 {
			if len(c.Relays) > 0 {
				return newInvalidValueError("cq frame", "bandwidth and relays are exclusive")
			}
			if !c.Bandwidth.Valid() {
				return fmt.Errorf("%d Hz: %w", int(c.Bandwidth), ErrInvalidBandwidth)
			}
		}
		return validateRelays(c.Relays)

	case CmdTune:
		if c.TuneLevel < MinTuneLevel || c.TuneLevel > MaxTuneLevel {
			return fmt.Errorf("%d is an invalid decibel value: %w", c.TuneLevel, ErrTuneOutOfRange)
		}
	}
	return nil
}

func validateRelays(relays []string) error {
	if len(relays) > MaxRelays {
		return fmt.Errorf("%d relays given: %w", len(relays), ErrTooManyRelays)
	}
	return validateCallsigns(relays...)
}

func validateCallsigns(calls ...string) error {
	for _, call := range calls {
		if call == "" || strings.IndexFunc(call, unicode.IsSpace) >= 0 {
			return fmt.Errorf("%q: %w", call, ErrInvalidCallsign)
		}
	}
	return nil
}
