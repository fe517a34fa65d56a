// Package varaprotocol is a client for the TCP control protocol of the VARA
// HF, FM and SAT modems.
//
// # Protocol Overview
//
// The modem listens on two TCP ports. The command port (8300 by default)
// carries ASCII lines terminated by a carriage return: commands from the
// client, and acknowledgements and unsolicited notifications from the
// modem, interleaved. The next port up carries payload bytes with no
// framing.
//
//	Command:      MYCALL N0CALL\r
//	Notification: REGISTERED N0CALL\r
//	Notification: BITRATE (5)  600\r
//
// # Basic Usage
//
//	client := varaprotocol.NewClient(varaprotocol.VariantHF)
//	if err := client.Open(ctx, varaprotocol.DefaultHost, varaprotocol.DefaultPort); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if _, err := client.RegisterCallsigns(ctx, "N0CALL"); err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.ListenOn(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	link, err := client.Connect(ctx, "N0CALL", "W1AW")
//
// Each operation blocks until the notification that ends it arrives. Use a
// context with a deadline to bound the wait; the client has no timeout of
// its own.
//
// # Errors
//
// Arguments are checked before anything is written: too many callsigns, a
// tune level out of range, tune commands before a callsign is registered,
// and commands the variant does not support all fail locally. A WRONG from
// the modem fails the most recently written operation still waiting with a
// *RejectedError. Failure notifications that belong to an operation, such as
// DISCONNECTED while connecting, give an *OutcomeError. Losing either
// transport fails every pending operation with a *ConnectionError.
//
// # Notifications and State
//
// Subscribe delivers every command channel line as a Notification, in
// arrival order; SubscribeData does the same for the data channel. Next
// waits for one notification of a given type. State returns a view of the
// session as derived from the notifications so far.
package varaprotocol
