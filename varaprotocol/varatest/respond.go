package varatest

import (
	"github.com/taylorsreid/govara/varaprotocol"
)

// Version is the string Respond reports for VERSION.
const Version = "VARA HF 4.8.7"

// TuneLevel is the level Respond reports for TUNE ?.
const TuneLevel = -10

var parser = varaprotocol.NewCommandParser()

// Respond answers like a healthy modem: every command succeeds. CHAT ON
// gets no OK, as on VARA HF.
func Respond(cmd string) []string {
	c, err := parser.Parse(cmd)
	if err != nil {
		return []string{"WRONG"}
	}

	switch c.Type {
	case varaprotocol.CmdConnect:
		return []string{
			"PTT ON",
			notify(varaprotocol.Notification{
				Type: varaprotocol.NotificationConnected,
				Connection: &varaprotocol.ConnectionData{
					Source:      c.Source,
					Destination: c.Destination,
					Bandwidth:   varaprotocol.Bandwidth2300,
					Relay1:      relay(c.Relays, 0),
					Relay2:      relay(c.Relays, 1),
				},
			}),
			"PTT OFF",
		}

	case varaprotocol.CmdDisconnect:
		return []string{"DISCONNECTED"}

	case varaprotocol.CmdMyCall:
		return []string{notify(varaprotocol.Notification{
			Type:      varaprotocol.NotificationRegistered,
			Callsigns: c.Callsigns,
		})}

	case varaprotocol.CmdChat:
		if c.On {
			return []string{"BUSY OFF"}
		}
		return []string{"OK"}

	case varaprotocol.CmdCQFrame:
		return []string{"PTT ON", "PTT OFF"}

	case varaprotocol.CmdTuneQuery:
		return []string{notify(varaprotocol.Notification{
			Type: varaprotocol.NotificationTune,
			Tune: TuneLevel,
		})}

	case varaprotocol.CmdCleanTxBuffer:
		return []string{notify(varaprotocol.Notification{
			Type:        varaprotocol.NotificationCleanTxBuffer,
			CleanStatus: varaprotocol.CleanBufferEmpty,
		})}

	case varaprotocol.CmdVersion:
		return []string{"VERSION " + Version}

	default:
		return []string{"OK"}
	}
}

func notify(n varaprotocol.Notification) string {
	return n.Format()
}

func relay(relays []string, i int) string {
	if i < len(relays) {
		return relays[i]
	}
	return ""
}
