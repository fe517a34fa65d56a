package varaprotocol

import (
	"math"
	"strconv"
	"strings"
)

// CommandParser parses command text, as typed by a user or as written on the
// wire, into a Command.
type CommandParser struct{}

// NewCommandParser creates a new command parser.
func NewCommandParser() *CommandParser {
	return &CommandParser{}
}

// Parse parses a command line into a Command. Verbs are case-insensitive;
// callsigns are kept as given. A trailing terminator is ignored.
func (p *CommandParser) Parse(line string) (Command, error) {
	commandLine := strings.TrimSpace(line)

	if len(commandLine) > MaxLineLength {
		return Command{}, ErrLineTooLong
	}

	parts := strings.Fields(commandLine)
	if len(parts) == 0 {
		return Command{}, newInvalidCommandError("")
	}

	verb := strings.ToUpper(parts[0])
	args := parts[1:]

	switch verb {
	case "CONNECT":
		return p.parseConnect(args)
	case "DISCONNECT":
		return NewDisconnectCommand(), nil
	case "ABORT":
		return NewAbortCommand(), nil
	case "LISTEN":
		on, err := p.parseOnOff("LISTEN", args)
		if err != nil {
			return Command{}, err
		}
		return NewListenCommand(on), nil
	case "MYCALL":
		if len(args) == 0 {
			return Command{}, newMissingArgumentError("MYCALL requires at least one callsign")
		}
		return NewMyCallCommand(args...), nil
	case "COMPRESSION":
		if len(args) != 1 {
			return Command{}, newMissingArgumentError("COMPRESSION requires OFF, TEXT or FILES")
		}
		mode := Compression(strings.ToUpper(args[0]))
		if !mode.Valid() {
			return Command{}, newInvalidValueError("compression", args[0])
		}
		return NewCompressionCommand(mode), nil
	case "BW500", "BW2300", "BW2750":
		bw, err := ParseBandwidth(verb)
		if err != nil {
			return Command{}, err
		}
		return NewBandwidthCommand(bw), nil
	case "CHAT":
		on, err := p.parseOnOff("CHAT", args)
		if err != nil {
			return Command{}, err
		}
		return NewChatCommand(on), nil
	case "WINLINK", "P2P":
		if len(args) != 1 || strings.ToUpper(args[0]) != "SESSION" {
			return Command{}, newInvalidCommandError(commandLine)
		}
		if verb == "WINLINK" {
			return NewWinlinkSessionCommand(), nil
		}
		return NewP2PSessionCommand(), nil
	case "CQFRAME":
		return p.parseCQFrame(args)
	case "TUNE":
		return p.parseTune(args)
	case "CLEANTXBUFFER":
		return NewCleanTxBufferCommand(), nil
	case "VERSION":
		return NewVersionCommand(), nil
	default:
		return Command{}, newInvalidCommandError(parts[0])
	}
}

func (p *CommandParser) parseOnOff(verb string, args []string) (bool, error) {
	if len(args) != 1 {
		return false, newMissingArgumentError(verb + " requires ON or OFF")
	}
	switch strings.ToUpper(args[0]) {
	case "ON":
		return true, nil
	case "OFF":
		return false, nil
	default:
		return false, newInvalidValueError(strings.ToLower(verb)+" state", args[0])
	}
}

func (p *CommandParser) parseConnect(args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, newMissingArgumentError("CONNECT requires source and destination callsigns")
	}
	source, destination := args[0], args[1]
	rest := args[2:]
	if len(rest) == 0 {
		return NewConnectCommand(source, destination), nil
	}
	if strings.ToUpper(rest[0]) != "VIA" || len(rest) < 2 {
		return Command{}, newMissingArgumentError("CONNECT expects VIA followed by one or two relays")
	}
	relays := rest[1:]
	if len(relays) > MaxRelays {
		return Command{}, ErrTooManyRelays
	}
	return NewConnectViaCommand(source, destination, relays...), nil
}

func (p *CommandParser) parseCQFrame(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, newMissingArgumentError("CQFRAME requires a source callsign")
	}
	source := args[0]
	switch len(args) {
	case 1:
		return NewCQFrameCommand(source), nil
	case 2:
		if n, err := strconv.Atoi(args[1]); err == nil {
			return NewCQFrameBandwidthCommand(source, Bandwidth(n)), nil
		}
		return NewCQFrameViaCommand(source, args[1]), nil
	case 3:
		return NewCQFrameViaCommand(source, args[1], args[2]), nil
	default:
		return Command{}, ErrTooManyRelays
	}
}

func (p *CommandParser) parseTune(args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, newMissingArgumentError("TUNE requires a level in dB, OFF or ?")
	}
	switch strings.ToUpper(args[0]) {
	case "OFF":
		return NewTuneOffCommand(), nil
	case "?":
		return NewTuneQueryCommand(), nil
	}
	level, err := strconv.Atoi(args[0])
	if err != nil {
		return Command{}, newInvalidValueError("tune level", args[0])
	}
	return NewTuneCommand(level), nil
}

// NotificationParser classifies command channel lines into notifications.
type NotificationParser struct{}

// NewNotificationParser creates a new notification parser.
func NewNotificationParser() *NotificationParser {
	return &NotificationParser{}
}

// Parse classifies one line received on the command channel.
//
// A line that matches no known token is returned as NotificationUnknown
// with a nil error. A line that starts with a known token but breaks its
// grammar is returned as NotificationUnknown together with a *ParseError;
// Raw is populated in both cases.
func (p *NotificationParser) Parse(line string) (Notification, error) {
	line = strings.TrimRight(line, "\r\n ")
	n := Notification{Type: NotificationUnknown, Raw: line}

	if typ, ok := fixedNotifications[line]; ok {
		n.Type = typ
		return n, nil
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return n, nil
	}

	var err error
	switch fields[0] {
	case "CONNECTED":
		err = p.parseConnected(&n, fields)
	case "CQFRAME":
		err = p.parseCQFrame(&n, fields)
	case "BUFFER":
		n.Buffer, err = p.parseSingleInt(line, fields)
		if err == nil {
			n.Type = NotificationBuffer
		}
	case "REGISTERED":
		n.Type = NotificationRegistered
		calls := fields[1:]
		if len(calls) > MaxCallsigns {
			calls = calls[:MaxCallsigns]
		}
		n.Callsigns = append([]string{}, calls...)
	case "SN":
		err = p.parseSN(&n, fields)
	case "BITRATE":
		err = p.parseBitrate(&n, fields)
	case "CLEANTXBUFFER":
		err = p.parseCleanTxBuffer(&n, fields)
	case "VERSION":
		version := strings.TrimSpace(strings.TrimPrefix(line, "VERSION"))
		if version == "" {
			err = newMalformedNotificationError(line, "missing version string")
			break
		}
		n.Type = NotificationVersion
		n.Version = version
	case "TUNE":
		n.Tune, err = p.parseSingleInt(line, fields)
		if err == nil {
			n.Type = NotificationTune
		}
	}

	if err != nil {
		return Notification{Type: NotificationUnknown, Raw: line}, err
	}
	return n, nil
}

// parseConnected handles
//
//	CONNECTED <src> <dst>
//	CONNECTED <src> <dst> <bw>
//	CONNECTED <src> <dst> VIA <r1> <bw>
//	CONNECTED <src> <dst> VIA <r1> <r2> <bw>
func (p *NotificationParser) parseConnected(n *Notification, fields []string) error {
	cd := &ConnectionData{}
	var bwField string

	switch len(fields) {
	case 3:
	case 4:
		bwField = fields[3]
	case 6:
		if fields[3] != "VIA" {
			return newMalformedNotificationError(n.Raw, "expected VIA before relay")
		}
		cd.Relay1 = fields[4]
		bwField = fields[5]
	case 7:
		if fields[3] != "VIA" {
			return newMalformedNotificationError(n.Raw, "expected VIA before relays")
		}
		cd.Relay1 = fields[4]
		cd.Relay2 = fields[5]
		bwField = fields[6]
	default:
		return newMalformedNotificationError(n.Raw, "unexpected number of fields")
	}

	cd.Source = fields[1]
	cd.Destination = fields[2]
	if bwField != "" {
		bw, err := strconv.Atoi(bwField)
		if err != nil {
			return newMalformedNotificationError(n.Raw, "bandwidth is not a number")
		}
		cd.Bandwidth = Bandwidth(bw)
	}

	n.Type = NotificationConnected
	n.Connection = cd
	return nil
}

// parseCQFrame handles CQFRAME <src> [<bw> | <r1> [<r2>]]. The second
// field is a bandwidth when numeric and a relay otherwise.
func (p *NotificationParser) parseCQFrame(n *Notification, fields []string) error {
	if len(fields) < 2 || len(fields) > 4 {
		return newMalformedNotificationError(n.Raw, "unexpected number of fields")
	}

	cd := &ConnectionData{Source: fields[1]}
	if len(fields) >= 3 {
		if bw, err := strconv.Atoi(fields[2]); err == nil {
			cd.Bandwidth = Bandwidth(bw)
		} else {
			cd.Relay1 = fields[2]
			if len(fields) == 4 {
				cd.Relay2 = fields[3]
			}
		}
	}

	n.Type = NotificationCQFrame
	n.Connection = cd
	return nil
}

func (p *NotificationParser) parseSingleInt(line string, fields []string) (int, error) {
	if len(fields) != 2 {
		return 0, newMalformedNotificationError(line, "expected a single numeric field")
	}
	v, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, newMalformedNotificationError(line, "field is not a number")
	}
	return v, nil
}

// parseSN accepts integer and decimal samples; decimals are truncated.
func (p *NotificationParser) parseSN(n *Notification, fields []string) error {
	if len(fields) != 2 {
		return newMalformedNotificationError(n.Raw, "expected a single numeric field")
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return newMalformedNotificationError(n.Raw, "field is not a number")
	}
	n.Type = NotificationSN
	n.SN = int(v)
	return nil
}

// parseBitrate handles BITRATE (<level>) <bps>. The modem emits two spaces
// before the rate; splitting on runs of whitespace absorbs the gap.
func (p *NotificationParser) parseBitrate(n *Notification, fields []string) error {
	if len(fields) != 3 {
		return newMalformedNotificationError(n.Raw, "expected speed level and rate")
	}
	level, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(fields[1], "("), ")"))
	if err != nil {
		return newMalformedNotificationError(n.Raw, "speed level is not a number")
	}
	bps, err := strconv.Atoi(fields[2])
	if err != nil {
		return newMalformedNotificationError(n.Raw, "rate is not a number")
	}
	n.Type = NotificationBitrate
	n.Bitrate = &Bitrate{SpeedLevel: level, BitsPerSecond: bps}
	return nil
}

func (p *NotificationParser) parseCleanTxBuffer(n *Notification, fields []string) error {
	if len(fields) != 2 {
		return newMalformedNotificationError(n.Raw, "expected a status")
	}
	status := CleanStatus(fields[1])
	if !status.Valid() {
		return newMalformedNotificationError(n.Raw, "unknown status")
	}
	n.Type = NotificationCleanTxBuffer
	n.CleanStatus = status
	return nil
}
