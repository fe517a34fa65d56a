// =============================================================================
// help.go - Help System
// =============================================================================
//
// .help prints an overview; .help <topic> prints the entry for one
// dot-command or modem verb. Topics match case-insensitively and a leading
// dot is optional, so ".help send", ".help .send" and ".help SEND" agree.
//
// =============================================================================

package main

import (
	"fmt"
	"io"
	"strings"
)

const helpOverview = `Dot-commands:
  .state [field]         Show the modem state (or one field, e.g. .state buffer)
  .send <text>           Transmit text on the data channel
  .wait <NOTIF> [secs]   Wait for a notification (e.g. .wait CONNECTED 30)
  .help [topic]          Show help (or help for a command)
  .quit                  Exit

Modem commands (sent as typed):
  CONNECT <src> <dst> [VIA <r1> [<r2>]]   Open a link
  DISCONNECT | ABORT                      Close a link gracefully | at once
  LISTEN ON|OFF                           Answer incoming calls
  MYCALL <call> [<call>...]               Register up to five callsigns
  COMPRESSION OFF|TEXT|FILES              Payload compression
  BW500 | BW2300 | BW2750                 Bandwidth (HF only)
  CHAT ON|OFF                             Chat mode
  WINLINK SESSION | P2P SESSION           Session type (HF, SAT)
  CQFRAME <src> [<bw>|<r1> [<r2>]]        Broadcast a CQ frame
  TUNE <dB> | TUNE OFF | TUNE ?           Transmitter tuning (HF, SAT)
  CLEANTXBUFFER                           Purge the transmit buffer
  VERSION                                 Query the modem version

Lines starting with << are notifications from the modem.
`

// helpTopics maps a lower-case topic to its help text.
var helpTopics = map[string]string{
	"state": `.state [field]
  Print every state field as JSON, or one field by name. Fields that do not
  apply to the modem variant are null.
  Examples: .state   .state connected   .state bw`,

	"send": `.send <text>
  Write text to the data channel. The modem transmits it once a link is up.
  Example: .send Hello from N0CALL`,

	"wait": `.wait <NOTIFICATION> [seconds]
  Block until the modem sends the named notification (default 60 seconds).
  Use an underscore or a space in multi-word names.
  Examples: .wait CONNECTED 120   .wait PTT_OFF   .wait DATA`,

	"help": `.help [topic]
  Show the overview, or help for one command.`,

	"quit": `.quit
  Close the modem connection and exit. Ctrl-D does the same.`,

	"connect": `CONNECT <source> <destination> [VIA <relay1> [<relay2>]]
  Call a station, optionally through one or two digipeaters. Completes on
  CONNECTED; fails if the modem reports DISCONNECTED first.
  Example: CONNECT N0CALL W1AW VIA K1ABC`,

	"disconnect": `DISCONNECT
  End the link gracefully. Completes on DISCONNECTED.`,

	"abort": `ABORT
  Drop the link immediately.`,

	"listen": `LISTEN ON|OFF
  Accept or ignore incoming calls.`,

	"mycall": `MYCALL <call> [<call>...]
  Register one to five callsigns. Completes with the REGISTERED list.
  Tune commands require at least one registered callsign.`,

	"compression": `COMPRESSION OFF|TEXT|FILES
  Select payload compression.`,

	"bw": `BW500 | BW2300 | BW2750
  Select the channel bandwidth. VARA HF only.`,

	"chat": `CHAT ON|OFF
  Toggle chat mode.`,

	"session": `WINLINK SESSION | P2P SESSION
  Select the session type. Not available on VARA FM.`,

	"cqframe": `CQFRAME <source> [<bandwidth> | <relay1> [<relay2>]]
  Broadcast a CQ frame. The bandwidth form is VARA HF only. Completes when
  the transmitter releases (PTT OFF).`,

	"tune": `TUNE <dB> | TUNE OFF | TUNE ?
  Key the transmitter at a level from -30 to 0 dB, stop tuning, or query the
  current level. Not available on VARA FM; requires a registered callsign.`,

	"cleantxbuffer": `CLEANTXBUFFER
  Discard data waiting to be transmitted. Reports OK, BUFFEREMPTY or fails.`,

	"version": `VERSION
  Ask the modem for its version string.`,
}

// helpAliases points alternative spellings at a topic.
var helpAliases = map[string]string{
	"exit":    "quit",
	"bw500":   "bw",
	"bw2300":  "bw",
	"bw2750":  "bw",
	"winlink": "session",
	"p2p":     "session",
}

func printHelp(stdout, stderr io.Writer, topic string) {
	if topic == "" {
		fmt.Fprint(stdout, helpOverview)
		return
	}

	key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(topic)), ".")
	if alias, ok := helpAliases[key]; ok {
		key = alias
	}

	if text, ok := helpTopics[key]; ok {
		fmt.Fprintln(stdout, text)
		return
	}

	fmt.Fprintf(stderr, "Error: No help for '%s'. Type .help to see available commands.\n", topic)
}
