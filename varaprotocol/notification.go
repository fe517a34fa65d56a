package varaprotocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NotificationType represents the kind of line received from the modem.
type NotificationType int

const (
	// NotificationUnknown is a line that matched no known token. It is still
	// published so subscribers can see protocol extensions.
	NotificationUnknown NotificationType = iota

	// Link state
	NotificationConnected
	NotificationDisconnected
	NotificationPending
	NotificationCancelPending
	NotificationLinkRegistered
	NotificationLinkUnregistered
	NotificationEncryptionDisabled
	NotificationEncryptionReady
	NotificationUnencryptedLink
	NotificationEncryptedLink

	// Radio state
	NotificationPTTOff
	NotificationPTTOn
	NotificationBusyOff
	NotificationBusyOn
	NotificationMissingSoundcard
	NotificationIAmAlive

	// Measurements
	NotificationBuffer
	NotificationSN
	NotificationBitrate

	// Replies
	NotificationRegistered
	NotificationCQFrame
	NotificationCleanTxBuffer
	NotificationVersion
	NotificationTune
	NotificationOK
	NotificationWrong

	// NotificationData carries a chunk received on the data channel.
	NotificationData
)

// fixedNotifications maps the parameterless lines to their type.
var fixedNotifications = map[string]NotificationType{
	"DISCONNECTED":        NotificationDisconnected,
	"PTT OFF":             NotificationPTTOff,
	"PTT ON":              NotificationPTTOn,
	"PENDING":             NotificationPending,
	"CANCELPENDING":       NotificationCancelPending,
	"BUSY OFF":            NotificationBusyOff,
	"BUSY ON":             NotificationBusyOn,
	"LINK REGISTERED":     NotificationLinkRegistered,
	"LINK UNREGISTERED":   NotificationLinkUnregistered,
	"IAMALIVE":            NotificationIAmAlive,
	"MISSING SOUNDCARD":   NotificationMissingSoundcard,
	"ENCRYPTION DISABLED": NotificationEncryptionDisabled,
	"ENCRYPTION READY":    NotificationEncryptionReady,
	"UNENCRYPTED LINK":    NotificationUnencryptedLink,
	"ENCRYPTED LINK":      NotificationEncryptedLink,
	"OK":                  NotificationOK,
	"WRONG":               NotificationWrong,
}

var notificationNames = map[NotificationType]string{
	NotificationUnknown:       "UNKNOWN",
	NotificationConnected:     "CONNECTED",
	NotificationBuffer:        "BUFFER",
	NotificationSN:            "SN",
	NotificationBitrate:       "BITRATE",
	NotificationRegistered:    "REGISTERED",
	NotificationCQFrame:       "CQFRAME",
	NotificationCleanTxBuffer: "CLEANTXBUFFER",
	NotificationVersion:       "VERSION",
	NotificationTune:          "TUNE",
	NotificationData:          "DATA",
}

func init() {
	for line, typ := range fixedNotifications {
		notificationNames[typ] = line
	}
}

// String returns the wire token of the notification type.
func (t NotificationType) String() string {
	if name, ok := notificationNames[t]; ok {
		return name
	}
	return fmt.Sprintf("NotificationType(%d)", int(t))
}

// MarshalText renders the type as its wire token.
func (t NotificationType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (t *NotificationType) UnmarshalText(text []byte) error {
	typ, err := ParseNotificationType(string(text))
	if err != nil {
		return err
	}
	*t = typ
	return nil
}

// ParseNotificationType looks up a notification type by its wire token,
// e.g. "PTT OFF" or "CONNECTED". Underscores are accepted in place of spaces.
func ParseNotificationType(name string) (NotificationType, error) {
	name = strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(name, "_", " ")))
	for typ, n := range notificationNames {
		if n == name {
			return typ, nil
		}
	}
	return 0, newInvalidValueError("notification", name)
}

// ConnectionData describes a link announced by CONNECTED or CQFRAME.
type ConnectionData struct {
	Source      string    `json:"source"`
	Destination string    `json:"destination,omitempty"`
	Bandwidth   Bandwidth `json:"bandwidth,omitempty"`
	Relay1      string    `json:"relay1,omitempty"`
	Relay2      string    `json:"relay2,omitempty"`
}

// Relays returns the digipeaters of the link in order.
func (cd ConnectionData) Relays() []string {
	var relays []string
	if cd.Relay1 != "" {
		relays = append(relays, cd.Relay1)
	}
	if cd.Relay2 != "" {
		relays = append(relays, cd.Relay2)
	}
	return relays
}

// Bitrate is a link rate sample from a BITRATE line.
type Bitrate struct {
	SpeedLevel    int `json:"speedLevel"`
	BitsPerSecond int `json:"bitsPerSecond"`
}

// Notification is one typed event from the modem. Raw always holds the line
// as received; the other fields are populated according to Type.
type Notification struct {
	Type NotificationType `json:"type"`
	Raw  string           `json:"raw,omitempty"`

	// CONNECTED, CQFRAME
	Connection *ConnectionData `json:"connection,omitempty"`
	// BITRATE
	Bitrate *Bitrate `json:"bitrate,omitempty"`

	// Bytes still queued for transmission, from BUFFER.
	Buffer      int         `json:"buffer,omitempty"`
	SN          int         `json:"sn,omitempty"`
	Callsigns   []string    `json:"callsigns,omitempty"`
	CleanStatus CleanStatus `json:"cleanStatus,omitempty"`
	Tune        int         `json:"tune,omitempty"`
	Version     string      `json:"version,omitempty"`

	// Data holds a chunk received on the data channel.
	Data []byte `json:"data,omitempty"`

	Received time.Time `json:"received"`
}

// Text returns the data chunk decoded as text.
func (n Notification) Text() string {
	return string(n.Data)
}

// Format renders the notification as the modem would send it, without the
// terminator.
func (n Notification) Format() string {
	switch n.Type {
	case NotificationConnected:
		if n.Connection == nil {
			return "CONNECTED"
		}
		cd := n.Connection
		line := "CONNECTED " + cd.Source + " " + cd.Destination
		if relays := cd.Relays(); len(relays) > 0 {
			line += " VIA " + strings.Join(relays, " ")
		}
		if cd.Bandwidth != 0 {
			line += " " + cd.Bandwidth.String()
		}
		return line

	case NotificationCQFrame:
		if n.Connection == nil {
			return "CQFRAME"
		}
		cd := n.Connection
		line := "CQFRAME " + cd.Source
		if cd.Bandwidth != 0 {
			return line + " " + cd.Bandwidth.String()
		}
		if relays := cd.Relays(); len(relays) > 0 {
			line += " " + strings.Join(relays, " ")
		}
		return line

	case NotificationBuffer:
		return "BUFFER " + strconv.Itoa(n.Buffer)

	case NotificationSN:
		return "SN " + strconv.Itoa(n.SN)

	case NotificationBitrate:
		if n.Bitrate == nil {
			return "BITRATE"
		}
		// The modem really does put two spaces before the rate.
		return fmt.Sprintf("BITRATE (%d)  %d", n.Bitrate.SpeedLevel, n.Bitrate.BitsPerSecond)

	case NotificationRegistered:
		return strings.TrimSpace("REGISTERED " + strings.Join(n.Callsigns, " "))

	case NotificationCleanTxBuffer:
		return "CLEANTXBUFFER " + string(n.CleanStatus)

	case NotificationVersion:
		return "VERSION " + n.Version

	case NotificationTune:
		return "TUNE " + strconv.Itoa(n.Tune)

	case NotificationData:
		return string(n.Data)

	case NotificationUnknown:
		return n.Raw

	default:
		return n.Type.String()
	}
}
