package varaprotocol_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taylorsreid/govara/varaprotocol"
	"github.com/taylorsreid/govara/varaprotocol/varatest"
)

// openClient starts a fake modem and returns a client connected to it.
func openClient(t *testing.T, variant varaprotocol.Variant, handler varatest.Handler, opts ...varaprotocol.Option) (*varaprotocol.Client, *varatest.Modem) {
	t.Helper()

	modem := varatest.Start(t, handler)
	opts = append([]varaprotocol.Option{varaprotocol.WithSettleInterval(0)}, opts...)
	client := varaprotocol.NewClient(variant, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), varatest.WaitTimeout)
	defer cancel()
	require.NoError(t, client.Open(ctx, modem.Host, modem.Port))
	t.Cleanup(func() { client.Close() })
	return client, modem
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), varatest.WaitTimeout)
	t.Cleanup(cancel)
	return ctx
}

// register issues MYCALL against the default responder so tune commands
// are allowed.
func register(t *testing.T, client *varaprotocol.Client, modem *varatest.Modem) {
	t.Helper()
	calls, err := client.RegisterCallsigns(testContext(t), "N0CALL")
	require.NoError(t, err)
	require.Equal(t, []string{"N0CALL"}, calls)
	modem.ExpectCommand("MYCALL N0CALL")
}

func TestOpenAndClose(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, nil)
	assert.True(t, client.IsConnected())

	err := client.Open(testContext(t), "127.0.0.1", 1)
	assert.ErrorIs(t, err, varaprotocol.ErrAlreadyConnected)

	require.NoError(t, client.Close())
	assert.False(t, client.IsConnected())

	// Both transports end and nothing is written on the way out.
	modem.WaitCommandClosed()
	modem.WaitDataClosed()
	modem.ExpectNoCommand(50 * time.Millisecond)

	select {
	case <-client.Done():
	case <-time.After(varatest.WaitTimeout):
		t.Fatal("readers still running after Close")
	}

	assert.NoError(t, client.Close(), "Close is idempotent")

	err = client.ListenOn(testContext(t))
	assert.ErrorIs(t, err, varaprotocol.ErrNotConnected)
}

func TestCloseFromSubscriber(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, nil)

	closed := make(chan error, 1)
	client.Subscribe(func(n varaprotocol.Notification) {
		if n.Type == varaprotocol.NotificationDisconnected {
			closed <- client.Close()
		}
	})

	modem.Send("DISCONNECTED")

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(varatest.WaitTimeout):
		t.Fatal("Close called from a subscriber did not return")
	}

	select {
	case <-client.Done():
	case <-time.After(varatest.WaitTimeout):
		t.Fatal("readers still running after Close")
	}
	modem.WaitCommandClosed()
	modem.WaitDataClosed()
	assert.False(t, client.IsConnected())
}

func TestCloseDropsLaterLines(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, nil)

	var mu sync.Mutex
	var seen []string
	client.Subscribe(func(n varaprotocol.Notification) {
		mu.Lock()
		seen = append(seen, n.Raw)
		mu.Unlock()
		if n.Type == varaprotocol.NotificationPTTOn {
			client.Close()
		}
	})

	modem.Send("PTT ON", "PTT OFF", "BUSY ON")
	select {
	case <-client.Done():
	case <-time.After(varatest.WaitTimeout):
		t.Fatal("readers still running after Close")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"PTT ON"}, seen)
}

func TestOpenWaitsForSettleInterval(t *testing.T) {
	modem := varatest.Start(t, nil)
	client := varaprotocol.NewClient(varaprotocol.VariantHF, varaprotocol.WithSettleInterval(50*time.Millisecond))
	t.Cleanup(func() { client.Close() })

	start := time.Now()
	require.NoError(t, client.Open(testContext(t), modem.Host, modem.Port))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestOpenFailsWithoutModem(t *testing.T) {
	modem := varatest.Start(t, nil)
	host, port := modem.Host, modem.Port
	modem.Close()

	client := varaprotocol.NewClient(varaprotocol.VariantHF)
	err := client.Open(testContext(t), host, port)

	var connErr *varaprotocol.ConnectionError
	assert.True(t, errors.As(err, &connErr), "got %v", err)
}

func TestOperationsWriteTheirCommand(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, nil)
	ctx := testContext(t)
	register(t, client, modem)

	tests := []struct {
		name string
		run  func() error
		want string
	}{
		{"ListenOn", func() error { return client.ListenOn(ctx) }, "LISTEN ON"},
		{"ListenOff", func() error { return client.ListenOff(ctx) }, "LISTEN OFF"},
		{"Abort", func() error { return client.Abort(ctx) }, "ABORT"},
		{"CompressionOff", func() error { return client.CompressionOff(ctx) }, "COMPRESSION OFF"},
		{"CompressionText", func() error { return client.CompressionText(ctx) }, "COMPRESSION TEXT"},
		{"CompressionFiles", func() error { return client.CompressionFiles(ctx) }, "COMPRESSION FILES"},
		{"BW500", func() error { return client.BW500(ctx) }, "BW500"},
		{"BW2300", func() error { return client.BW2300(ctx) }, "BW2300"},
		{"BW2750", func() error { return client.BW2750(ctx) }, "BW2750"},
		{"ChatOff", func() error { return client.ChatOff(ctx) }, "CHAT OFF"},
		{"WinlinkSession", func() error { return client.WinlinkSession(ctx) }, "WINLINK SESSION"},
		{"P2PSession", func() error { return client.P2PSession(ctx) }, "P2P SESSION"},
		{"SetTune", func() error { return client.SetTune(ctx, -30) }, "TUNE -30"},
		{"TuneOff", func() error { return client.TuneOff(ctx) }, "TUNE OFF"},
		{"Disconnect", func() error { return client.Disconnect(ctx) }, "DISCONNECT"},
		{"SendCQFrame", func() error {
			return client.SendCQFrame(ctx, varaprotocol.NewCQFrameBandwidthCommand("N0CALL", varaprotocol.Bandwidth500))
		}, "CQFRAME N0CALL 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.run())
			modem.ExpectCommand(tt.want)
		})
	}
}

func TestQueries(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, nil)
	ctx := testContext(t)
	register(t, client, modem)

	level, err := client.GetTune(ctx)
	require.NoError(t, err)
	assert.Equal(t, varatest.TuneLevel, level)
	modem.ExpectCommand("TUNE ?")

	version, err := client.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, varatest.Version, version)
	assert.Equal(t, varatest.Version, client.State().Version())
	modem.ExpectCommand("VERSION")

	status, err := client.PurgeBuffer(ctx)
	require.NoError(t, err)
	assert.Equal(t, varaprotocol.CleanBufferEmpty, status)
	modem.ExpectCommand("CLEANTXBUFFER")
}

func TestConnect(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, nil)
	ctx := testContext(t)

	link, err := client.Connect(ctx, "N0CALL", "W1AW", "K1ABC", "K2XYZ")
	require.NoError(t, err)
	modem.ExpectCommand("CONNECT N0CALL W1AW VIA K1ABC K2XYZ")

	want := &varaprotocol.ConnectionData{
		Source:      "N0CALL",
		Destination: "W1AW",
		Bandwidth:   varaprotocol.Bandwidth2300,
		Relay1:      "K1ABC",
		Relay2:      "K2XYZ",
	}
	assert.Equal(t, want, link)
	assert.Equal(t, want, client.State().Connected())
}

func TestConnectFailsOnDisconnected(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, func(cmd string) []string {
		return []string{"PTT ON", "PTT OFF", "DISCONNECTED"}
	})

	_, err := client.Connect(testContext(t), "N0CALL", "W1AW")
	modem.ExpectCommand("CONNECT N0CALL W1AW")

	var outcome *varaprotocol.OutcomeError
	require.True(t, errors.As(err, &outcome), "got %v", err)
	assert.Equal(t, varaprotocol.NotificationDisconnected, outcome.Notification.Type)
	assert.True(t, client.State().Disconnected())
}

func TestDisconnectClearsConnection(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, nil)
	ctx := testContext(t)

	_, err := client.Connect(ctx, "N0CALL", "W1AW")
	require.NoError(t, err)
	require.False(t, client.State().Disconnected())

	require.NoError(t, client.Disconnect(ctx))
	modem.ExpectCommand("CONNECT N0CALL W1AW")
	modem.ExpectCommand("DISCONNECT")
	assert.True(t, client.State().Disconnected())
	assert.Nil(t, client.State().Connected())
}

func TestDisconnectAcksWithOKQuirk(t *testing.T) {
	client, _ := openClient(t, varaprotocol.VariantHF, func(string) []string {
		return []string{"OK"}
	}, varaprotocol.WithQuirks(varaprotocol.Quirks{DisconnectAcksWithOK: true}))

	assert.NoError(t, client.Disconnect(testContext(t)))
}

func TestLocalValidationWritesNothing(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, nil)
	ctx := testContext(t)

	_, err := client.RegisterCallsigns(ctx, "A1", "A2", "A3", "A4", "A5", "A6")
	assert.ErrorIs(t, err, varaprotocol.ErrTooManyCallsigns)

	// Tune needs a registered callsign, whatever the level.
	for _, level := range []int{-30, -10, 0, 5} {
		assert.ErrorIs(t, client.SetTune(ctx, level), varaprotocol.ErrNotRegistered)
	}
	_, err = client.GetTune(ctx)
	assert.ErrorIs(t, err, varaprotocol.ErrNotRegistered)
	assert.ErrorIs(t, client.TuneOff(ctx), varaprotocol.ErrNotRegistered)

	assert.ErrorIs(t, client.SetBandwidth(ctx, 1000), varaprotocol.ErrInvalidBandwidth)

	modem.ExpectNoCommand(100 * time.Millisecond)
}

func TestSetTuneRange(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, nil)
	ctx := testContext(t)
	register(t, client, modem)

	assert.ErrorIs(t, client.SetTune(ctx, -31), varaprotocol.ErrTuneOutOfRange)
	assert.ErrorIs(t, client.SetTune(ctx, 1), varaprotocol.ErrTuneOutOfRange)
	modem.ExpectNoCommand(50 * time.Millisecond)

	require.NoError(t, client.SetTune(ctx, -30))
	modem.ExpectCommand("TUNE -30")
	require.NoError(t, client.SetTune(ctx, 0))
	modem.ExpectCommand("TUNE 0")

	level, ok := client.State().Tune()
	assert.True(t, ok)
	assert.Equal(t, 0, level)
	on, _ := client.State().TuneOn()
	assert.True(t, on)
}

func TestVariantGating(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantFM, nil)
	ctx := testContext(t)
	register(t, client, modem)

	assert.ErrorIs(t, client.BW500(ctx), varaprotocol.ErrUnsupportedVariant)
	assert.ErrorIs(t, client.WinlinkSession(ctx), varaprotocol.ErrUnsupportedVariant)
	assert.ErrorIs(t, client.P2PSession(ctx), varaprotocol.ErrUnsupportedVariant)
	assert.ErrorIs(t, client.SetTune(ctx, -10), varaprotocol.ErrUnsupportedVariant)
	assert.ErrorIs(t, client.TuneOff(ctx), varaprotocol.ErrUnsupportedVariant)
	_, err := client.GetTune(ctx)
	assert.ErrorIs(t, err, varaprotocol.ErrUnsupportedVariant)
	err = client.SendCQFrame(ctx, varaprotocol.NewCQFrameBandwidthCommand("N0CALL", varaprotocol.Bandwidth2300))
	assert.ErrorIs(t, err, varaprotocol.ErrUnsupportedVariant)
	modem.ExpectNoCommand(50 * time.Millisecond)

	require.NoError(t, client.SendCQFrame(ctx, varaprotocol.NewCQFrameViaCommand("N0CALL", "K1ABC")))
	modem.ExpectCommand("CQFRAME N0CALL K1ABC")
}

func TestWrongRejectsPendingOperation(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, varatest.Silent)
	ctx := testContext(t)

	errc := make(chan error, 1)
	go func() { errc <- client.CompressionFiles(ctx) }()

	modem.ExpectCommand("COMPRESSION FILES")
	modem.Send("WRONG", "OK")

	err := <-errc
	var rejected *varaprotocol.RejectedError
	require.True(t, errors.As(err, &rejected), "got %v", err)
	assert.Equal(t, varaprotocol.CmdCompression, rejected.Command.Type)
	assert.ErrorIs(t, err, varaprotocol.ErrRejected)
	assert.Contains(t, err.Error(), "COMPRESSION FILES")
}

func TestWrongTargetsMostRecentCommand(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, varatest.Silent)
	ctx := testContext(t)

	listenErr := make(chan error, 1)
	go func() { listenErr <- client.ListenOn(ctx) }()
	modem.ExpectCommand("LISTEN ON")

	versionErr := make(chan error, 1)
	go func() {
		_, err := client.Version(ctx)
		versionErr <- err
	}()
	modem.ExpectCommand("VERSION")

	modem.Send("WRONG")
	assert.ErrorIs(t, <-versionErr, varaprotocol.ErrRejected)

	modem.Send("OK")
	assert.NoError(t, <-listenErr)
}

func TestOKResolvesOldestFirst(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, varatest.Silent)
	ctx := testContext(t)

	first := make(chan error, 1)
	go func() { first <- client.ListenOn(ctx) }()
	modem.ExpectCommand("LISTEN ON")

	second := make(chan error, 1)
	go func() { second <- client.CompressionOff(ctx) }()
	modem.ExpectCommand("COMPRESSION OFF")

	modem.Send("OK")
	require.NoError(t, <-first)
	select {
	case err := <-second:
		t.Fatalf("second operation resolved early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	modem.Send("OK")
	require.NoError(t, <-second)
}

func TestInterleavedReplies(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, varatest.Silent)
	ctx := testContext(t)

	var wg sync.WaitGroup
	var calls []string
	var version string
	var regErr, verErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		calls, regErr = client.RegisterCallsigns(ctx, "N0CALL", "N0CALL-1")
	}()
	modem.ExpectCommand("MYCALL N0CALL N0CALL-1")
	go func() {
		defer wg.Done()
		version, verErr = client.Version(ctx)
	}()
	modem.ExpectCommand("VERSION")

	// Replies arrive in the opposite order, with noise in between.
	modem.Send("VERSION VARA HF 4.8.7", "BUFFER 0", "IAMALIVE", "REGISTERED N0CALL N0CALL-1")
	wg.Wait()

	require.NoError(t, regErr)
	require.NoError(t, verErr)
	assert.Equal(t, []string{"N0CALL", "N0CALL-1"}, calls)
	assert.Equal(t, "VARA HF 4.8.7", version)
	assert.Equal(t, []string{"N0CALL", "N0CALL-1"}, client.State().Registered())
}

func TestVersionWaitsForVARAReply(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantFM, varatest.Silent)

	type result struct {
		version string
		err     error
	}
	done := make(chan result, 1)
	go func() {
		v, err := client.Version(testContext(t))
		done <- result{v, err}
	}()
	modem.ExpectCommand("VERSION")

	modem.Send("VERSION 1.0")
	select {
	case r := <-done:
		t.Fatalf("Version resolved on a non-VARA line: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}

	modem.Send("VERSION VARA FM 4.3.0")
	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "VARA FM 4.3.0", r.version)
	case <-time.After(varatest.WaitTimeout):
		t.Fatal("Version did not resolve")
	}
}

func TestChatOnQuirk(t *testing.T) {
	t.Run("HF resolves without OK", func(t *testing.T) {
		client, modem := openClient(t, varaprotocol.VariantHF, varatest.Silent)
		require.NoError(t, client.ChatOn(testContext(t)))
		modem.ExpectCommand("CHAT ON")
		chat, ok := client.State().Chat()
		assert.True(t, ok)
		assert.True(t, chat)
	})

	t.Run("FM waits for OK", func(t *testing.T) {
		client, modem := openClient(t, varaprotocol.VariantFM, varatest.Silent)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		err := client.ChatOn(ctx)
		modem.ExpectCommand("CHAT ON")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("quirk disabled on HF", func(t *testing.T) {
		client, _ := openClient(t, varaprotocol.VariantHF, func(string) []string {
			return []string{"OK"}
		}, varaprotocol.WithQuirks(varaprotocol.Quirks{}))
		assert.NoError(t, client.ChatOn(testContext(t)))
	})
}

func TestPurgeBufferFailed(t *testing.T) {
	client, _ := openClient(t, varaprotocol.VariantHF, func(string) []string {
		return []string{"CLEANTXBUFFER FAILED"}
	})

	status, err := client.PurgeBuffer(testContext(t))
	var outcome *varaprotocol.OutcomeError
	require.True(t, errors.As(err, &outcome), "got %v", err)
	assert.Equal(t, varaprotocol.CleanFailed, status)
}

func TestContextCancelsWait(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, varatest.Silent)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- client.ListenOn(ctx) }()
	modem.ExpectCommand("LISTEN ON")
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	// The abandoned operation no longer waits for OK, so the next OK
	// belongs to the next operation.
	next := make(chan error, 1)
	go func() { next <- client.ListenOff(testContext(t)) }()
	modem.ExpectCommand("LISTEN OFF")
	modem.Send("OK")
	assert.NoError(t, <-next)
}

func TestCloseFailsPending(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, varatest.Silent)

	errc := make(chan error, 1)
	go func() { errc <- client.ListenOn(context.Background()) }()
	modem.ExpectCommand("LISTEN ON")

	require.NoError(t, client.Close())
	assert.ErrorIs(t, <-errc, varaprotocol.ErrClosed)
}

func TestTransportLossFailsPending(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, varatest.Silent)

	disconnected := make(chan error, 1)
	client.SetDisconnectHandler(func(err error) {
		client.Close()
		disconnected <- err
	})

	errc := make(chan error, 1)
	go func() { errc <- client.ListenOn(context.Background()) }()
	modem.ExpectCommand("LISTEN ON")

	modem.Drop()

	err := <-errc
	var connErr *varaprotocol.ConnectionError
	assert.True(t, errors.As(err, &connErr), "got %v", err)

	select {
	case <-disconnected:
	case <-time.After(varatest.WaitTimeout):
		t.Fatal("disconnect handler not called")
	}
	assert.False(t, client.IsConnected())

	select {
	case <-client.Done():
	case <-time.After(varatest.WaitTimeout):
		t.Fatal("readers still running after transport loss")
	}
}

func TestSubscribeAndNext(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, varatest.Silent)

	lines := make(chan varaprotocol.Notification, 8)
	unsubscribe := client.Subscribe(func(n varaprotocol.Notification) { lines <- n })
	defer unsubscribe()

	ctx := testContext(t)
	next := make(chan varaprotocol.Notification, 1)
	go func() {
		n, err := client.Next(ctx, varaprotocol.NotificationBitrate)
		if err == nil {
			next <- n
		}
	}()
	// Give Next a moment to install its listener.
	time.Sleep(20 * time.Millisecond)

	modem.Send("SN 12", "FREQUENCY 7101000", "BITRATE (5)  600")

	got := []varaprotocol.NotificationType{(<-lines).Type, (<-lines).Type, (<-lines).Type}
	assert.Equal(t, []varaprotocol.NotificationType{
		varaprotocol.NotificationSN,
		varaprotocol.NotificationUnknown,
		varaprotocol.NotificationBitrate,
	}, got)

	n := <-next
	assert.Equal(t, &varaprotocol.Bitrate{SpeedLevel: 5, BitsPerSecond: 600}, n.Bitrate)
	assert.Equal(t, "BITRATE (5)  600", client.State().LastLine())
}

func TestDataChannel(t *testing.T) {
	client, modem := openClient(t, varaprotocol.VariantHF, varatest.Silent)
	ctx := testContext(t)

	require.NoError(t, client.Send(ctx, []byte("hello modem")))
	assert.Equal(t, []byte("hello modem"), modem.NextData())

	received := make(chan varaprotocol.Notification, 1)
	unsubscribe := client.SubscribeData(func(n varaprotocol.Notification) { received <- n })
	defer unsubscribe()

	modem.SendData([]byte("hello client"))
	n := <-received
	assert.Equal(t, varaprotocol.NotificationData, n.Type)
	assert.Equal(t, "hello client", n.Text())
	assert.Equal(t, []byte("hello client"), client.State().LastData())
}

func TestMetricsRecordTraffic(t *testing.T) {
	metrics := varaprotocol.NewMetrics()
	client, modem := openClient(t, varaprotocol.VariantHF, nil, varaprotocol.WithMetrics(metrics))
	ctx := testContext(t)

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	require.NoError(t, client.ListenOn(ctx))
	modem.ExpectCommand("LISTEN ON")
	require.NoError(t, client.Send(ctx, []byte("abc")))
	modem.NextData()

	count, err := testutil.GatherAndCount(reg, "vara_client_commands_sent_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = testutil.GatherAndCount(reg, "vara_client_lines_received_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "only OK was received")
}
