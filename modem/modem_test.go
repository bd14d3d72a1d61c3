package modem_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"i4.energy/across/currentmon/indicator"
	"i4.energy/across/currentmon/modem"
)

const testPoll = 10 * time.Millisecond

func newMockModem(t *testing.T, ctrl *gomock.Controller, transport modem.Transport) *modem.Modem {
	t.Helper()

	mockDialer := modem.NewMockDialer(ctrl)
	mockDialer.EXPECT().Dial(gomock.Any()).Return(transport, nil)

	config, err := modem.NewConfigBuilder().
		WithDialer(mockDialer).
		WithPollInterval(testPoll).
		WithSettleDelay(0).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	m, err := modem.New(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create modem: %v", err)
	}
	return m
}

func newSimModem(t *testing.T, sim *modem.SimTransport) *modem.Modem {
	t.Helper()

	config, err := modem.NewConfigBuilder().
		WithDialer(modem.SimDialer{Transport: sim}).
		WithPollInterval(testPoll).
		WithSettleDelay(0).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	m, err := modem.New(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create modem: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestModemNew(t *testing.T) {
	t.Run("Dials the transport", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		m := newMockModem(t, ctrl, mockTransport)
		if m == nil {
			t.Fatal("New() should return valid modem on success")
		}

		mockTransport.EXPECT().Close().Return(nil)
		if err := m.Close(); err != nil {
			t.Errorf("unexpected error from Close(): %v", err)
		}
	})

	t.Run("Dialer error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDialer := modem.NewMockDialer(ctrl)
		mockDialer.EXPECT().Dial(gomock.Any()).Return(nil, errors.New("connection failed"))

		config, err := modem.NewConfigBuilder().
			WithDialer(mockDialer).
			Build()
		if err != nil {
			t.Errorf("unexpected error from Build(): %v", err)
		}

		m, err := modem.New(context.Background(), config)
		if err == nil {
			t.Error("expected error from dialer failure")
		}
		if m != nil {
			t.Error("New() should return nil modem when dialer fails")
		}
	})

	t.Run("ErrNoDialer when no dialer provided", func(t *testing.T) {
		m, err := modem.New(context.Background(), modem.Config{})
		if !errors.Is(err, modem.ErrNoDialer) {
			t.Errorf("expected ErrNoDialer from New(), got: %v", err)
		}
		if m != nil {
			t.Error("New() should return nil modem when no dialer provided")
		}
	})

	t.Run("ErrNotInitialized on nil transport", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDialer := modem.NewMockDialer(ctrl)
		mockDialer.EXPECT().Dial(gomock.Any()).Return(nil, nil)

		config, err := modem.NewConfigBuilder().
			WithDialer(mockDialer).
			Build()
		if err != nil {
			t.Errorf("unexpected error from Build(): %v", err)
		}

		_, err = modem.New(context.Background(), config)
		if !errors.Is(err, modem.ErrNotInitialized) {
			t.Errorf("expected ErrNotInitialized from New(), got: %v", err)
		}
	})
}

func TestModemClose(t *testing.T) {
	t.Run("Returns transport error on close failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		m := newMockModem(t, ctrl, mockTransport)

		closeError := errors.New("transport close failed")
		mockTransport.EXPECT().Close().Return(closeError)

		if err := m.Close(); err != closeError {
			t.Errorf("expected transport error, got: %v", err)
		}
	})

	t.Run("ErrAlreadyClosed on double close and later use", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		m := newMockModem(t, ctrl, mockTransport)
		mockTransport.EXPECT().Close().Return(nil)

		if err := m.Close(); err != nil {
			t.Errorf("first close should succeed, got error: %v", err)
		}
		if err := m.Close(); err != modem.ErrAlreadyClosed {
			t.Errorf("expected ErrAlreadyClosed on second close, got: %v", err)
		}
		if _, err := m.Execute(context.Background(), modem.ExpectOK("AT", time.Second)); !errors.Is(err, modem.ErrAlreadyClosed) {
			t.Errorf("expected ErrAlreadyClosed from Execute, got: %v", err)
		}
		if _, err := m.Poll(); !errors.Is(err, modem.ErrAlreadyClosed) {
			t.Errorf("expected ErrAlreadyClosed from Poll, got: %v", err)
		}
	})
}

func TestModemExecute(t *testing.T) {
	t.Run("Writes CRLF-terminated command and returns on marker", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		m := newMockModem(t, ctrl, mockTransport)

		gomock.InOrder(NewMockSequence(mockTransport).AT().Build()...)

		resp, err := m.Execute(context.Background(), modem.ExpectOK("AT", time.Second))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(resp, "OK") {
			t.Errorf("expected response to contain OK, got %q", resp)
		}
	})

	t.Run("Accumulates chunks until the marker completes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		m := newMockModem(t, ctrl, mockTransport)

		gomock.InOrder(slices.Concat(
			NewMockSequence(mockTransport).Drain().Write("AT+JOIN").Build(),
			[]any{
				mockTransport.EXPECT().HasData().Return(false),
			},
			NewMockSequence(mockTransport).Reply("O").Reply("K\r\n").Build(),
		)...)

		resp, err := m.Execute(context.Background(), modem.ExpectOK("AT+JOIN", time.Second))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp != "OK\r\n" {
			t.Errorf("expected accumulated response, got %q", resp)
		}
	})

	t.Run("Matching is case-sensitive", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		m := newMockModem(t, ctrl, mockTransport)

		gomock.InOrder(NewMockSequence(mockTransport).Command("AT", "ok\r\n").Build()...)
		mockTransport.EXPECT().HasData().Return(false).AnyTimes()

		_, err := m.Execute(context.Background(), modem.ExpectOK("AT", 50*time.Millisecond))
		if !errors.Is(err, modem.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got: %v", err)
		}
	})

	t.Run("Signals the transmit indicator around the exchange", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		mockDialer := modem.NewMockDialer(ctrl)
		mockIndicator := indicator.NewMockIndicator(ctrl)

		mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil)
		gomock.InOrder(
			mockTransport.EXPECT().HasData().Return(false),
			mockIndicator.EXPECT().Set(indicator.Transmit, true),
			mockTransport.EXPECT().Write([]byte("AT\r\n")).Return(4, nil),
			mockTransport.EXPECT().HasData().Return(true),
			mockTransport.EXPECT().ReadAvailable().Return([]byte("OK\r\n"), nil),
			mockIndicator.EXPECT().Set(indicator.Transmit, false),
		)

		config, err := modem.NewConfigBuilder().
			WithDialer(mockDialer).
			WithIndicator(mockIndicator).
			WithSettleDelay(0).
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}
		m, err := modem.New(context.Background(), config)
		if err != nil {
			t.Fatalf("failed to create modem: %v", err)
		}

		if _, err := m.Execute(context.Background(), modem.ExpectOK("AT", time.Second)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Drains residual bytes before writing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		m := newMockModem(t, ctrl, mockTransport)

		gomock.InOrder(slices.Concat(
			[]any{
				mockTransport.EXPECT().HasData().Return(true),
				mockTransport.EXPECT().ReadAvailable().Return([]byte("OK\r\n"), nil),
			},
			NewMockSequence(mockTransport).AT().Build(),
		)...)

		if _, err := m.Execute(context.Background(), modem.ExpectOK("AT", time.Second)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Empty drain read ends the drain", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		m := newMockModem(t, ctrl, mockTransport)

		// A second HasData before the write would fail the ordering.
		gomock.InOrder(slices.Concat(
			[]any{
				mockTransport.EXPECT().HasData().Return(true),
				mockTransport.EXPECT().ReadAvailable().Return([]byte{}, nil),
			},
			NewMockSequence(mockTransport).Write("AT").Reply("OK\r\n").Build(),
		)...)

		if _, err := m.Execute(context.Background(), modem.ExpectOK("AT", time.Second)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Write error aborts the command", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		m := newMockModem(t, ctrl, mockTransport)

		writeErr := errors.New("port gone")
		gomock.InOrder(
			mockTransport.EXPECT().HasData().Return(false),
			mockTransport.EXPECT().Write(gomock.Any()).Return(0, writeErr),
		)

		_, err := m.Execute(context.Background(), modem.ExpectOK("AT", time.Second))
		if !errors.Is(err, writeErr) {
			t.Errorf("expected write error, got: %v", err)
		}
		if errors.Is(err, modem.ErrTimeout) {
			t.Error("write error must not be reported as a timeout")
		}
	})

	t.Run("Read error aborts the command", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		m := newMockModem(t, ctrl, mockTransport)

		readErr := errors.New("device reports readiness to read but returned no data")
		gomock.InOrder(slices.Concat(
			NewMockSequence(mockTransport).Drain().Write("AT").Build(),
			[]any{
				mockTransport.EXPECT().HasData().Return(true),
				mockTransport.EXPECT().ReadAvailable().Return(nil, readErr),
			},
		)...)

		_, err := m.Execute(context.Background(), modem.ExpectOK("AT", time.Second))
		if !errors.Is(err, readErr) {
			t.Errorf("expected read error, got: %v", err)
		}
	})

	t.Run("Context cancellation ends the wait", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		m := newMockModem(t, ctrl, mockTransport)

		ctx, cancel := context.WithCancel(context.Background())
		gomock.InOrder(
			mockTransport.EXPECT().HasData().Return(false),
			mockTransport.EXPECT().Write(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
				cancel()
				return len(p), nil
			}),
		)
		mockTransport.EXPECT().HasData().Return(false).AnyTimes()

		_, err := m.Execute(ctx, modem.ExpectOK("AT", time.Minute))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
	})
}

func TestModemExecuteTiming(t *testing.T) {
	tests := []struct {
		name    string
		delay   time.Duration
		timeout time.Duration
		success bool
	}{
		{name: "Marker well before deadline", delay: 20 * time.Millisecond, timeout: 300 * time.Millisecond, success: true},
		{name: "Immediate marker", delay: 0, timeout: 100 * time.Millisecond, success: true},
		{name: "Marker after deadline", delay: 400 * time.Millisecond, timeout: 100 * time.Millisecond, success: false},
		{name: "Modem never answers", delay: time.Hour, timeout: 80 * time.Millisecond, success: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := modem.NewSimTransport()
			sim.ResponseDelay = tt.delay
			m := newSimModem(t, sim)

			start := time.Now()
			_, err := m.Execute(context.Background(), modem.ExpectOK("AT", tt.timeout))
			elapsed := time.Since(start)

			if tt.success {
				if err != nil {
					t.Fatalf("expected success, got: %v", err)
				}
				if elapsed >= tt.timeout {
					t.Errorf("success should return before the deadline, took %s", elapsed)
				}
				return
			}

			if !modem.IsTimeout(err) {
				t.Fatalf("expected ErrTimeout, got: %v", err)
			}
			// Allow scheduler slack on top of the one poll interval bound.
			if limit := tt.timeout + testPoll + 50*time.Millisecond; elapsed > limit {
				t.Errorf("blocked for %s, limit %s", elapsed, limit)
			}
			if elapsed < tt.timeout {
				t.Errorf("returned before the deadline after %s", elapsed)
			}
		})
	}
}

func TestModemExecuteWithSimulator(t *testing.T) {
	t.Run("Timeout names the modem error code", func(t *testing.T) {
		sim := modem.NewSimTransport()
		m := newSimModem(t, sim)

		resp, err := m.Execute(context.Background(), modem.ExpectOK("AT+BAND=999", 100*time.Millisecond))
		if !modem.IsTimeout(err) {
			t.Fatalf("expected ErrTimeout, got: %v", err)
		}
		if !strings.Contains(err.Error(), "AT_PARAM_ERROR") {
			t.Errorf("expected error to name AT_PARAM_ERROR, got: %v", err)
		}
		if !strings.Contains(resp, "AT_PARAM_ERROR") {
			t.Errorf("expected partial response to be returned, got %q", resp)
		}
	})

	t.Run("Undecodable bytes are skipped", func(t *testing.T) {
		sim := modem.NewSimTransport()
		sim.Respond = func(cmd string) ([]string, bool) {
			return []string{"\xff\xfe", "OK"}, true
		}
		m := newSimModem(t, sim)

		if _, err := m.Execute(context.Background(), modem.ExpectOK("AT", time.Second)); err != nil {
			t.Errorf("expected success despite invalid bytes, got: %v", err)
		}
	})

	t.Run("Boot noise is drained before the command", func(t *testing.T) {
		sim := modem.NewSimTransport()
		sim.Inject([]byte("RAK3172 boot OK\r\n"), 0)
		sim.Respond = func(cmd string) ([]string, bool) {
			return nil, true
		}
		m := newSimModem(t, sim)

		_, err := m.Execute(context.Background(), modem.ExpectOK("AT", 60*time.Millisecond))
		if !modem.IsTimeout(err) {
			t.Errorf("stale OK must not satisfy the command, got: %v", err)
		}
	})

	t.Run("Only one command in flight", func(t *testing.T) {
		sim := modem.NewSimTransport()
		sim.Respond = func(cmd string) ([]string, bool) {
			return nil, true
		}
		m := newSimModem(t, sim)

		started := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			close(started)
			_, err := m.Execute(context.Background(), modem.ExpectOK("AT", 300*time.Millisecond))
			done <- err
		}()
		<-started
		time.Sleep(50 * time.Millisecond)

		if _, err := m.Execute(context.Background(), modem.ExpectOK("AT", time.Second)); !errors.Is(err, modem.ErrCommandInFlight) {
			t.Errorf("expected ErrCommandInFlight from Execute, got: %v", err)
		}
		if _, err := m.Poll(); !errors.Is(err, modem.ErrCommandInFlight) {
			t.Errorf("expected ErrCommandInFlight from Poll, got: %v", err)
		}
		if err := <-done; !modem.IsTimeout(err) {
			t.Errorf("expected first command to time out, got: %v", err)
		}
		if got := sim.Commands(); len(got) != 1 {
			t.Errorf("expected exactly one command on the wire, got %q", got)
		}
	})
}

func TestModemPoll(t *testing.T) {
	t.Run("Returns complete lines and keeps partial ones", func(t *testing.T) {
		sim := modem.NewSimTransport()
		m := newSimModem(t, sim)

		sim.Inject([]byte("+EVT:TX_DONE\r\n+EVT:RX_C:-4"), 0)
		lines, err := m.Poll()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(lines, []string{"+EVT:TX_DONE"}) {
			t.Errorf("expected TX_DONE line, got %q", lines)
		}

		sim.Inject([]byte("2:9:UNICAST:2:01\r\n"), 0)
		lines, err = m.Poll()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(lines, []string{"+EVT:RX_C:-42:9:UNICAST:2:01"}) {
			t.Errorf("expected joined downlink line, got %q", lines)
		}
	})

	t.Run("Nothing available", func(t *testing.T) {
		sim := modem.NewSimTransport()
		m := newSimModem(t, sim)

		lines, err := m.Poll()
		if err != nil || len(lines) != 0 {
			t.Errorf("expected no lines, got %q, %v", lines, err)
		}
	})

	t.Run("Events sharing a chunk with the reply survive", func(t *testing.T) {
		sim := modem.NewSimTransport()
		sim.Respond = func(cmd string) ([]string, bool) {
			return []string{"OK", "+EVT:TX_DONE"}, true
		}
		m := newSimModem(t, sim)

		if _, err := m.Execute(context.Background(), modem.ExpectOK("AT+SEND=2:04D2", time.Second)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines, err := m.Poll()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(lines, []string{"+EVT:TX_DONE"}) {
			t.Errorf("expected TX_DONE carried over, got %q", lines)
		}
	})
}
