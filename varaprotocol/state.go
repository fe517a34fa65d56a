package varaprotocol

import (
	"encoding/json"
	"sync"
	"time"
)

// state holds the authoritative session fields. Notification fields are
// written only by the reader goroutines; the configuration echoes are
// written when the matching command is sent.
type state struct {
	mu      sync.RWMutex
	variant Variant

	// client -> modem, recorded when the command is written
	listen      bool
	compression Compression
	bandwidth   Bandwidth
	chat        *bool // the modem documents no default
	session     SessionType
	tune        *int
	tuneOn      bool
	version     string

	// modem -> client
	lastLine         string
	lastData         []byte
	connected        *ConnectionData
	ptt              bool
	buffer           int
	pending          bool
	busy             bool
	registered       []string
	linkRegistered   bool
	iAmAlive         time.Time
	missingSoundcard bool
	cqFrame          *ConnectionData
	sn               *int
	bitrate          *Bitrate
	cleanTxBuffer    CleanStatus
	encryption       bool
	encryptedLink    bool
	ok               bool
	wrong            bool
}

func newState(variant Variant) *state {
	return &state{
		variant:     variant,
		compression: CompressionText,
		bandwidth:   Bandwidth2300,
		session:     SessionWinlink,
		ok:          true,
	}
}

// apply updates the fields owned by a command channel notification.
func (s *state) apply(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastLine = n.Raw

	switch n.Type {
	case NotificationConnected:
		cd := *n.Connection
		s.connected = &cd
	case NotificationDisconnected:
		s.connected = nil
	case NotificationPTTOff:
		s.ptt = false
	case NotificationPTTOn:
		s.ptt = true
	case NotificationPending:
		s.pending = true
	case NotificationCancelPending:
		s.pending = false
	case NotificationBusyOff:
		s.busy = false
	case NotificationBusyOn:
		s.busy = true
	case NotificationLinkRegistered:
		s.linkRegistered = true
	case NotificationLinkUnregistered:
		s.linkRegistered = false
	case NotificationIAmAlive:
		s.iAmAlive = n.Received
	case NotificationMissingSoundcard:
		s.missingSoundcard = true
	case NotificationEncryptionDisabled:
		s.encryption = false
	case NotificationEncryptionReady:
		s.encryption = true
	case NotificationUnencryptedLink:
		s.encryptedLink = false
	case NotificationEncryptedLink:
		s.encryptedLink = true
	case NotificationOK:
		s.ok, s.wrong = true, false
	case NotificationWrong:
		s.ok, s.wrong = false, true
	case NotificationBuffer:
		s.buffer = n.Buffer
	case NotificationRegistered:
		calls := n.Callsigns
		if len(calls) > MaxCallsigns {
			calls = calls[:MaxCallsigns]
		}
		s.registered = append([]string{}, calls...)
	case NotificationCQFrame:
		cd := *n.Connection
		s.cqFrame = &cd
	case NotificationSN:
		sn := n.SN
		s.sn = &sn
	case NotificationBitrate:
		br := *n.Bitrate
		s.bitrate = &br
	case NotificationCleanTxBuffer:
		s.cleanTxBuffer = n.CleanStatus
	case NotificationVersion:
		s.version = n.Version
	case NotificationTune:
		tune := n.Tune
		s.tune = &tune
	}
}

func (s *state) applyData(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastData = data
}

// echo records the configuration implied by a command that was written.
func (s *state) echo(cmd Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Type {
	case CmdListen:
		s.listen = cmd.On
	case CmdCompression:
		s.compression = cmd.Compression
	case CmdBandwidth:
		s.bandwidth = cmd.Bandwidth
	case CmdChat:
		on := cmd.On
		s.chat = &on
	case CmdWinlinkSession:
		s.session = SessionWinlink
	case CmdP2PSession:
		s.session = SessionP2P
	case CmdTune:
		level := cmd.TuneLevel
		s.tune = &level
		s.tuneOn = true
	case CmdTuneOff:
		s.tuneOn = false
	}
}

func (s *state) hasRegistered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registered) > 0
}

// StateView is a read-only view of the session state. Every method reads
// the current value; derived flags are computed on each call.
type StateView struct {
	s *state
}

// Variant returns the modem variant the client was created for.
func (v StateView) Variant() Variant { return v.s.variant }

// ListenOn reports whether LISTEN ON was the last listen command sent.
func (v StateView) ListenOn() bool {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.listen
}

// ListenOff is the negation of ListenOn.
func (v StateView) ListenOff() bool { return !v.ListenOn() }

// Registered returns the callsigns from the last REGISTERED line.
func (v StateView) Registered() []string {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return append([]string{}, v.s.registered...)
}

// Compression returns the compression mode last sent.
func (v StateView) Compression() Compression {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.compression
}

// Bandwidth returns the bandwidth last selected. ok is false for variants
// without bandwidth selection.
func (v StateView) Bandwidth() (bw Bandwidth, ok bool) {
	if !v.s.variant.HasBandwidth() {
		return 0, false
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.bandwidth, true
}

// Chat returns the chat mode last sent. ok is false until CHAT ON or
// CHAT OFF has been sent.
func (v StateView) Chat() (on bool, ok bool) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	if v.s.chat == nil {
		return false, false
	}
	return *v.s.chat, true
}

// Session returns the session type last sent. ok is false on VARA FM.
func (v StateView) Session() (SessionType, bool) {
	if !v.s.variant.HasSession() {
		return "", false
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.session, true
}

// Tune returns the last tune level set or reported. ok is false on VARA FM
// and before any level is known.
func (v StateView) Tune() (level int, ok bool) {
	if !v.s.variant.HasTune() {
		return 0, false
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	if v.s.tune == nil {
		return 0, false
	}
	return *v.s.tune, true
}

// TuneOn reports whether the tune carrier was enabled. ok is false on VARA FM.
func (v StateView) TuneOn() (on bool, ok bool) {
	if !v.s.variant.HasTune() {
		return false, false
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.tuneOn, true
}

// Version returns the modem version string, once known.
func (v StateView) Version() string {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.version
}

// LastLine returns the most recent line received on the command channel.
func (v StateView) LastLine() string {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.lastLine
}

// LastData returns the most recent chunk received on the data channel.
func (v StateView) LastData() []byte {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return append([]byte(nil), v.s.lastData...)
}

// Connected returns the current link, or nil when disconnected.
func (v StateView) Connected() *ConnectionData {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	if v.s.connected == nil {
		return nil
	}
	cd := *v.s.connected
	return &cd
}

// Disconnected reports whether there is no current link.
func (v StateView) Disconnected() bool { return v.Connected() == nil }

// PTTOn reports whether the transmitter is keyed.
func (v StateView) PTTOn() bool {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.ptt
}

// PTTOff is the negation of PTTOn.
func (v StateView) PTTOff() bool { return !v.PTTOn() }

// Buffer returns the number of bytes still queued for transmission.
func (v StateView) Buffer() int {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.buffer
}

// Pending reports whether an incoming connection is pending.
func (v StateView) Pending() bool {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.pending
}

// BusyOn reports whether the channel is busy.
func (v StateView) BusyOn() bool {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.busy
}

// BusyOff is the negation of BusyOn.
func (v StateView) BusyOff() bool { return !v.BusyOn() }

// LinkRegistered reports whether the remote station is registered.
func (v StateView) LinkRegistered() bool {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.linkRegistered
}

// LinkUnregistered is the negation of LinkRegistered.
func (v StateView) LinkUnregistered() bool { return !v.LinkRegistered() }

// IAmAlive returns when the last IAMALIVE arrived, or the zero time.
func (v StateView) IAmAlive() time.Time {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.iAmAlive
}

// MissingSoundcard reports whether the modem ever reported a missing soundcard.
func (v StateView) MissingSoundcard() bool {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.missingSoundcard
}

// CQFrame returns the last CQ frame heard, or nil.
func (v StateView) CQFrame() *ConnectionData {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	if v.s.cqFrame == nil {
		return nil
	}
	cd := *v.s.cqFrame
	return &cd
}

// SN returns the last signal-to-noise sample, if any.
func (v StateView) SN() (sn int, ok bool) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	if v.s.sn == nil {
		return 0, false
	}
	return *v.s.sn, true
}

// Bitrate returns the last link rate sample, or nil.
func (v StateView) Bitrate() *Bitrate {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	if v.s.bitrate == nil {
		return nil
	}
	br := *v.s.bitrate
	return &br
}

// CleanTxBuffer returns the last CLEANTXBUFFER outcome, or "".
func (v StateView) CleanTxBuffer() CleanStatus {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.cleanTxBuffer
}

// EncryptionReady reports whether encryption is available.
func (v StateView) EncryptionReady() bool {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.encryption
}

// EncryptedLink reports whether the current link is encrypted.
func (v StateView) EncryptedLink() bool {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.encryptedLink
}

// OK reports whether the last acknowledgement was OK.
func (v StateView) OK() bool {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.ok
}

// Wrong reports whether the last acknowledgement was WRONG.
func (v StateView) Wrong() bool {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.wrong
}

// Snapshot is every state field materialised at one instant. Pointer fields
// are nil (null in JSON) when the field does not apply to the modem variant
// or is not yet known.
type Snapshot struct {
	Variant          string          `json:"variant"`
	ListenOn         bool            `json:"listenOn"`
	ListenOff        bool            `json:"listenOff"`
	MyCall           []string        `json:"myCall"`
	Compression      Compression     `json:"compression"`
	CompressionOff   bool            `json:"compressionOff"`
	CompressionText  bool            `json:"compressionText"`
	CompressionFiles bool            `json:"compressionFiles"`
	Bandwidth        *Bandwidth      `json:"bw"`
	BW500            *bool           `json:"bw500"`
	BW2300           *bool           `json:"bw2300"`
	BW2750           *bool           `json:"bw2750"`
	ChatOn           *bool           `json:"chatOn"`
	ChatOff          *bool           `json:"chatOff"`
	WinlinkSession   *bool           `json:"winlinkSession"`
	P2PSession       *bool           `json:"p2pSession"`
	Tune             *int            `json:"tune"`
	TuneOn           *bool           `json:"tuneOn"`
	TuneOff          *bool           `json:"tuneOff"`
	Version          string          `json:"version,omitempty"`
	Data             string          `json:"data,omitempty"`
	Command          string          `json:"command"`
	Connected        *ConnectionData `json:"connected"`
	Disconnected     bool            `json:"disconnected"`
	PTTOff           bool            `json:"pttOff"`
	PTTOn            bool            `json:"pttOn"`
	Buffer           int             `json:"buffer"`
	Pending          bool            `json:"pending"`
	BusyOff          bool            `json:"busyOff"`
	BusyOn           bool            `json:"busyOn"`
	Registered       []string        `json:"registered"`
	LinkRegistered   bool            `json:"linkRegistered"`
	LinkUnregistered bool            `json:"linkUnregistered"`
	IAmAlive         *time.Time      `json:"iAmAlive"`
	MissingSoundcard bool            `json:"missingSoundcard"`
	CQFrame          *ConnectionData `json:"cqFrame"`
	SN               *int            `json:"sn"`
	Bitrate          *Bitrate        `json:"bitrate"`
	CleanTxBuffer    CleanStatus     `json:"cleanTxBuffer,omitempty"`
	EncryptionReady  bool            `json:"encryptionReady"`
	EncryptionOff    bool            `json:"encryptionDisabled"`
	EncryptedLink    bool            `json:"encryptedLink"`
	UnencryptedLink  bool            `json:"unencryptedLink"`
	OK               bool            `json:"ok"`
	Wrong            bool            `json:"wrong"`
}

func boolPtr(b bool) *bool { return &b }

// Snapshot materialises every field of the view, under a single read lock.
func (v StateView) Snapshot() Snapshot {
	s := v.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Variant:          s.variant.String(),
		ListenOn:         s.listen,
		ListenOff:        !s.listen,
		MyCall:           append([]string{}, s.registered...),
		Compression:      s.compression,
		CompressionOff:   s.compression == CompressionOff,
		CompressionText:  s.compression == CompressionText,
		CompressionFiles: s.compression == CompressionFiles,
		Version:          s.version,
		Data:             string(s.lastData),
		Command:          s.lastLine,
		Disconnected:     s.connected == nil,
		PTTOff:           !s.ptt,
		PTTOn:            s.ptt,
		Buffer:           s.buffer,
		Pending:          s.pending,
		BusyOff:          !s.busy,
		BusyOn:           s.busy,
		Registered:       append([]string{}, s.registered...),
		LinkRegistered:   s.linkRegistered,
		LinkUnregistered: !s.linkRegistered,
		MissingSoundcard: s.missingSoundcard,
		CleanTxBuffer:    s.cleanTxBuffer,
		EncryptionReady:  s.encryption,
		EncryptionOff:    !s.encryption,
		EncryptedLink:    s.encryptedLink,
		UnencryptedLink:  !s.encryptedLink,
		OK:               s.ok,
		Wrong:            s.wrong,
	}

	if s.variant.HasBandwidth() {
		bw := s.bandwidth
		snap.Bandwidth = &bw
		snap.BW500 = boolPtr(bw == Bandwidth500)
		snap.BW2300 = boolPtr(bw == Bandwidth2300)
		snap.BW2750 = boolPtr(bw == Bandwidth2750)
	}
	if s.chat != nil {
		snap.ChatOn = boolPtr(*s.chat)
		snap.ChatOff = boolPtr(!*s.chat)
	}
	if s.variant.HasSession() {
		snap.WinlinkSession = boolPtr(s.session == SessionWinlink)
		snap.P2PSession = boolPtr(s.session == SessionP2P)
	}
	if s.variant.HasTune() {
		if s.tune != nil {
			tune := *s.tune
			snap.Tune = &tune
		}
		snap.TuneOn = boolPtr(s.tuneOn)
		snap.TuneOff = boolPtr(!s.tuneOn)
	}
	if s.connected != nil {
		cd := *s.connected
		snap.Connected = &cd
	}
	if !s.iAmAlive.IsZero() {
		t := s.iAmAlive
		snap.IAmAlive = &t
	}
	if s.cqFrame != nil {
		cd := *s.cqFrame
		snap.CQFrame = &cd
	}
	if s.sn != nil {
		sn := *s.sn
		snap.SN = &sn
	}
	if s.bitrate != nil {
		br := *s.bitrate
		snap.Bitrate = &br
	}
	return snap
}

// MarshalJSON renders the view as its Snapshot.
func (v StateView) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Snapshot())
}
