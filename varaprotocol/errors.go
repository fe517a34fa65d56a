package varaprotocol

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the VARA protocol client.
var (
	// ErrLineTooLong indicates a command channel line exceeded MaxLineLength.
	ErrLineTooLong = errors.New("line too long")

	// ErrNotConnected indicates an operation was attempted before Open or
	// after the transports went away.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected indicates Open was called twice.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrClosed is returned to operations still pending when Close is called.
	ErrClosed = errors.New("client closed")

	// ErrRejected matches every *RejectedError.
	ErrRejected = errors.New("command rejected by modem")

	// ErrNoCallsigns indicates MYCALL was built without a callsign.
	ErrNoCallsigns = errors.New("at least one callsign is required")

	// ErrTooManyCallsigns indicates more than MaxCallsigns were given to MYCALL.
	ErrTooManyCallsigns = fmt.Errorf("the modem supports at most %d callsigns", MaxCallsigns)

	// ErrTooManyRelays indicates more than MaxRelays digipeaters were given.
	ErrTooManyRelays = fmt.Errorf("at most %d relays are supported", MaxRelays)

	// ErrInvalidCallsign indicates an empty callsign or one containing spaces.
	ErrInvalidCallsign = errors.New("invalid callsign")

	// ErrNotRegistered indicates a TUNE command was issued before any
	// callsign was registered with RegisterCallsigns.
	ErrNotRegistered = errors.New("no callsign registered")

	// ErrTuneOutOfRange indicates a tune level outside [MinTuneLevel, MaxTuneLevel].
	ErrTuneOutOfRange = fmt.Errorf("tune level must be between %d and %d dB", MinTuneLevel, MaxTuneLevel)

	// ErrInvalidBandwidth indicates a bandwidth other than 500, 2300 or 2750.
	ErrInvalidBandwidth = errors.New("invalid bandwidth")

	// ErrUnsupportedVariant indicates the command does not exist on the
	// modem variant the client was created for.
	ErrUnsupportedVariant = errors.New("command not supported by this modem variant")
)

// ParseError represents an error that occurred while parsing a command or a
// notification line.
type ParseError struct {
	Kind    ParseErrorKind
	Value   string // The text that could not be parsed
	Message string // Additional context
}

// ParseErrorKind categorizes parsing errors.
type ParseErrorKind int

const (
	// ErrKindInvalidCommand indicates an unknown command verb.
	ErrKindInvalidCommand ParseErrorKind = iota
	// ErrKindInvalidValue indicates an argument that is not valid for its field.
	ErrKindInvalidValue
	// ErrKindMissingArgument indicates a required argument was not provided.
	ErrKindMissingArgument
	// ErrKindMalformedNotification indicates a notification line that starts
	// with a known token but whose fields do not follow its grammar.
	ErrKindMalformedNotification
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	switch e.Kind {
	case ErrKindInvalidCommand:
		return fmt.Sprintf("invalid command '%s'", e.Value)
	case ErrKindInvalidValue:
		return fmt.Sprintf("invalid %s '%s'", e.Message, e.Value)
	case ErrKindMissingArgument:
		return e.Message
	case ErrKindMalformedNotification:
		return fmt.Sprintf("malformed notification %q: %s", e.Value, e.Message)
	default:
		return fmt.Sprintf("parse error: %s", e.Value)
	}
}

func newInvalidCommandError(cmd string) error {
	return &ParseError{Kind: ErrKindInvalidCommand, Value: cmd}
}

func newInvalidValueError(what, val string) error {
	return &ParseError{Kind: ErrKindInvalidValue, Value: val, Message: what}
}

func newMissingArgumentError(msg string) error {
	return &ParseError{Kind: ErrKindMissingArgument, Message: msg}
}

func newMalformedNotificationError(line, msg string) error {
	return &ParseError{Kind: ErrKindMalformedNotification, Value: line, Message: msg}
}

// RejectedError is returned when the modem answers WRONG to a command.
type RejectedError struct {
	Command Command
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	args := strings.Join(e.Command.Args(), ", ")
	return fmt.Sprintf("modem returned WRONG for %s(%s) [%q]: check the arguments, the order of calls, and that the command is supported by the running modem version",
		e.Command.Type, args, e.Command.Format())
}

// Is reports whether target is ErrRejected.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// OutcomeError is returned when an operation ends with the failure
// notification defined for it, such as DISCONNECTED while connecting or
// CLEANTXBUFFER FAILED.
type OutcomeError struct {
	Command      Command
	Notification Notification
	Message      string
}

// Error implements the error interface.
func (e *OutcomeError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Command.Type, e.Message)
}

// ConnectionError represents a transport-level failure.
type ConnectionError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("connection failed: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, cause error) error {
	return &ConnectionError{Message: message, Cause: cause}
}
