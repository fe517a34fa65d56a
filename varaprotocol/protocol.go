// Package varaprotocol implements the TCP control protocol spoken by the
// VARA HF, VARA FM and VARA SAT modems.
//
// Protocol Format:
//
//	Command (client -> modem):   <VERB> [arguments...]\r
//	Notification (modem -> client): <TOKEN> [fields...]\r
//	Data channel:                raw payload bytes, no framing
//
// The command channel listens on the configured port; the data channel
// listens on the port immediately after it.
//
// Example Session:
//
//	CLI: MYCALL N0CALL
//	SRV: REGISTERED N0CALL
//	CLI: LISTEN ON
//	SRV: OK
//	CLI: CONNECT N0CALL W1AW
//	SRV: PTT ON
//	SRV: CONNECTED N0CALL W1AW 2300
package varaprotocol

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Protocol constants.
const (
	// LineTerminator ends every line on the command channel. The modem uses a
	// bare carriage return, not a newline.
	LineTerminator = "\r"

	// DefaultHost is the address the modem listens on out of the box.
	DefaultHost = "127.0.0.1"

	// DefaultPort is the default command port. The data port is DefaultPort+1.
	DefaultPort = 8300

	// DataPortOffset is added to the command port to get the data port.
	DataPortOffset = 1

	// MaxCallsigns is the number of callsigns MYCALL accepts at once.
	MaxCallsigns = 5

	// MaxRelays is the number of digipeaters CONNECT and CQFRAME accept.
	MaxRelays = 2

	// MinTuneLevel and MaxTuneLevel bound TUNE, in dB.
	MinTuneLevel = -30
	MaxTuneLevel = 0

	// MaxLineLength is the longest command channel line accepted before the
	// reader gives up on the stream.
	MaxLineLength = 4096

	// DefaultSettleInterval is how long Open waits after both transports are
	// up before handing out the client. The modem sometimes accepts the TCP
	// connection before it will reliably accept writes.
	DefaultSettleInterval = 100 * time.Millisecond

	// ConnectionTimeout bounds each TCP dial.
	ConnectionTimeout = 5 * time.Second
)

// Variant identifies which modem build the client is talking to.
type Variant int

const (
	// VariantHF is VARA HF.
	VariantHF Variant = iota
	// VariantFM is VARA FM.
	VariantFM
	// VariantSAT is VARA SAT.
	VariantSAT
)

// String returns the variant name as printed by the modem.
func (v Variant) String() string {
	switch v {
	case VariantHF:
		return "HF"
	case VariantFM:
		return "FM"
	case VariantSAT:
		return "SAT"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant parses "HF", "FM" or "SAT" (case-insensitive).
func ParseVariant(s string) (Variant, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HF":
		return VariantHF, nil
	case "FM":
		return VariantFM, nil
	case "SAT":
		return VariantSAT, nil
	default:
		return 0, newInvalidValueError("variant", s)
	}
}

// HasBandwidth reports whether the variant supports BW500/BW2300/BW2750.
func (v Variant) HasBandwidth() bool { return v == VariantHF }

// HasSession reports whether the variant supports WINLINK/P2P SESSION.
func (v Variant) HasSession() bool { return v != VariantFM }

// HasTune reports whether the variant supports the TUNE commands.
func (v Variant) HasTune() bool { return v != VariantFM }

// Quirks captures known deviations of a modem build from the documented
// protocol. They are defaults, not guarantees; override with WithQuirks when
// a newer build fixes them.
type Quirks struct {
	// ChatOnWithoutOK is set when CHAT ON is never acknowledged with OK.
	// VARA HF answers BUSY OFF instead, so the operation resolves as soon as
	// the line is written.
	ChatOnWithoutOK bool

	// DisconnectAcksWithOK makes Disconnect also resolve on OK, for builds
	// that acknowledge DISCONNECT without a DISCONNECTED line when idle.
	DisconnectAcksWithOK bool
}

// DefaultQuirks returns the known quirks of a variant.
func DefaultQuirks(v Variant) Quirks {
	return Quirks{
		ChatOnWithoutOK: v == VariantHF,
	}
}

// Bandwidth is a VARA HF channel bandwidth in Hz.
type Bandwidth int

// Supported bandwidths.
const (
	Bandwidth500  Bandwidth = 500
	Bandwidth2300 Bandwidth = 2300
	Bandwidth2750 Bandwidth = 2750
)

// Valid reports whether bw is one of the bandwidths the modem knows.
func (bw Bandwidth) Valid() bool {
	switch bw {
	case Bandwidth500, Bandwidth2300, Bandwidth2750:
		return true
	}
	return false
}

// String returns the number of Hz, as used in CONNECTED and CQFRAME lines.
func (bw Bandwidth) String() string { return strconv.Itoa(int(bw)) }

// Token returns the BWxxx command verb for bw.
func (bw Bandwidth) Token() string { return "BW" + bw.String() }

// ParseBandwidth parses "500", "2300" or "2750", with or without a BW prefix.
func ParseBandwidth(s string) (Bandwidth, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "BW")
	n, err := strconv.Atoi(s)
	if err != nil || !Bandwidth(n).Valid() {
		return 0, newInvalidValueError("bandwidth", s)
	}
	return Bandwidth(n), nil
}

// Compression is the modem's payload compression mode.
type Compression string

// Compression modes.
const (
	CompressionOff   Compression = "OFF"
	CompressionText  Compression = "TEXT"
	CompressionFiles Compression = "FILES"
)

// Valid reports whether c is a known mode.
func (c Compression) Valid() bool {
	switch c {
	case CompressionOff, CompressionText, CompressionFiles:
		return true
	}
	return false
}

// SessionType selects how VARA HF and SAT frame a session.
type SessionType string

// Session types.
const (
	SessionWinlink SessionType = "WINLINK"
	SessionP2P     SessionType = "P2P"
)

// CleanStatus is the reply to CLEANTXBUFFER.
type CleanStatus string

// CLEANTXBUFFER outcomes.
const (
	CleanBufferEmpty CleanStatus = "BUFFEREMPTY"
	CleanOK          CleanStatus = "OK"
	CleanFailed      CleanStatus = "FAILED"
)

// Valid reports whether s is a known outcome.
func (s CleanStatus) Valid() bool {
	switch s {
	case CleanBufferEmpty, CleanOK, CleanFailed:
		return true
	}
	return false
}

// DataAddress returns the host:port of the data channel for a command port.
func DataAddress(host string, port int) string {
	return JoinHostPort(host, port+DataPortOffset)
}

// CommandAddress returns the host:port of the command channel.
func CommandAddress(host string, port int) string {
	return JoinHostPort(host, port)
}

// JoinHostPort joins a host and a numeric port.
func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
