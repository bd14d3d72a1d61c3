package modem

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"i4.energy/across/currentmon/at"
	"i4.energy/across/currentmon/payload"
)

// SimTransport emulates a RAK3172 in ABP mode behind a Transport. It parses
// each CRLF-terminated command written to it and schedules the modem's reply
// to become readable after ResponseDelay. Accepted uplinks are followed by
// +EVT:TX_DONE and, when queued, a class C downlink. Uplinks are decoded the
// way the network application would.
//
// It backs the tests and the agent's -simulate mode.
type SimTransport struct {
	// ResponseDelay is how long after a command its reply becomes readable.
	ResponseDelay time.Duration
	// EventDelay is how long after an accepted send the events follow.
	EventDelay time.Duration
	// Respond overrides the built-in replies for a command when it returns
	// true. A nil reply with true makes the modem stay silent.
	Respond func(cmd string) (reply []string, ok bool)

	mu        sync.Mutex
	inbox     []simChunk
	line      []byte
	commands  []string
	downlinks []string
	uplinks   []payload.Reading
	joined    bool
	closed    bool
}

type simChunk struct {
	due  time.Time
	data []byte
}

// NewSimTransport creates an emulator with short realistic delays.
func NewSimTransport() *SimTransport {
	return &SimTransport{
		ResponseDelay: 20 * time.Millisecond,
		EventDelay:    200 * time.Millisecond,
	}
}

// SimDialer hands out a prepared SimTransport.
type SimDialer struct {
	Transport *SimTransport
}

func (d SimDialer) Dial(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Transport == nil {
		return NewSimTransport(), nil
	}
	return d.Transport, nil
}

func (t *SimTransport) HasData() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inbox) > 0 && !t.inbox[0].due.After(time.Now())
}

func (t *SimTransport) ReadAvailable() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrAlreadyClosed
	}

	now := time.Now()
	var out []byte
	for len(t.inbox) > 0 && !t.inbox[0].due.After(now) {
		out = append(out, t.inbox[0].data...)
		t.inbox = t.inbox[1:]
	}
	return out, nil
}

func (t *SimTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrAlreadyClosed
	}

	t.line = append(t.line, p...)
	for {
		i := strings.Index(string(t.line), at.CRLF)
		if i < 0 {
			break
		}
		cmd := string(t.line[:i])
		t.line = t.line[i+len(at.CRLF):]
		t.commands = append(t.commands, cmd)
		t.handle(cmd)
	}
	return len(p), nil
}

func (t *SimTransport) Flush() error { return nil }

func (t *SimTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Inject schedules raw bytes to become readable after delay, as if the
// modem had sent them unprompted.
func (t *SimTransport) Inject(data []byte, delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.schedule(delay, data)
}

// QueueDownlink makes the next accepted uplink be answered by a downlink
// carrying the hex data.
func (t *SimTransport) QueueDownlink(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.downlinks = append(t.downlinks, data)
}

// QueueCommand queues the downlink for a named command such as "on" or
// "blink". Unknown names return payload.ErrUnknownCommand.
func (t *SimTransport) QueueCommand(name string) error {
	b, err := payload.EncodeDownlink(name)
	if err != nil {
		return fmt.Errorf("queue %q: %w", name, err)
	}
	t.QueueDownlink(strings.ToUpper(hex.EncodeToString(b)))
	return nil
}

// Uplinks returns the readings decoded from every accepted uplink.
func (t *SimTransport) Uplinks() []payload.Reading {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]payload.Reading(nil), t.uplinks...)
}

// Commands returns every command line received so far.
func (t *SimTransport) Commands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.commands...)
}

// Joined reports whether AT+JOIN has been accepted.
func (t *SimTransport) Joined() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.joined
}

func (t *SimTransport) handle(cmd string) {
	if t.Respond != nil {
		if reply, ok := t.Respond(cmd); ok {
			if len(reply) > 0 {
				t.schedule(t.ResponseDelay, []byte(strings.Join(reply, at.CRLF)+at.CRLF))
			}
			return
		}
	}

	reply := t.reply(cmd)
	t.schedule(t.ResponseDelay, []byte(reply+at.CRLF))

	if reply == at.OK && strings.HasPrefix(cmd, at.CmdSend) {
		t.schedule(t.ResponseDelay+t.EventDelay, []byte(at.EvtTxDone+at.CRLF))
		if len(t.downlinks) > 0 {
			data := t.downlinks[0]
			t.downlinks = t.downlinks[1:]
			event := fmt.Sprintf("%sC:-42:9:UNICAST:%d:%s", at.EvtRx, at.DefaultUplinkFPort, data)
			t.schedule(t.ResponseDelay+2*t.EventDelay, []byte(event+at.CRLF))
		}
	}
}

func (t *SimTransport) reply(cmd string) string {
	param := func(prefix string) (string, bool) {
		if !strings.HasPrefix(cmd, prefix) {
			return "", false
		}
		return strings.TrimPrefix(cmd, prefix), true
	}

	switch {
	case cmd == at.CmdAt, cmd == at.CmdJoinABP, cmd == at.CmdJoinOTA:
		return at.OK
	case cmd == at.CmdJoin:
		t.joined = true
		return at.OK
	}

	if v, ok := param(at.CmdClass); ok {
		return okIf(v == "A" || v == "B" || v == "C")
	}
	if v, ok := param(at.CmdBand); ok {
		return okIf(len(v) > 0 && len(v) <= 2 && strings.Trim(v, "0123456789") == "")
	}
	if v, ok := param(at.CmdDevAddr); ok {
		return okIf(isHex(v, 4))
	}
	if v, ok := param(at.CmdAppSKey); ok {
		return okIf(isHex(v, 16))
	}
	if v, ok := param(at.CmdNwkSKey); ok {
		return okIf(isHex(v, 16))
	}
	if v, ok := param(at.CmdSend); ok {
		if !t.joined {
			return at.NoNetworkJoined
		}
		port, data, found := strings.Cut(v, at.SendPortSeparator)
		if !found || port == "" || len(data)%2 != 0 || !isHex(data, len(data)/2) {
			return at.ParamError
		}
		if r, err := payload.DecodeHex(data); err == nil {
			t.uplinks = append(t.uplinks, r)
		}
		return at.OK
	}
	return at.Error
}

func (t *SimTransport) schedule(delay time.Duration, data []byte) {
	due := time.Now().Add(delay)
	// Keep the inbox ordered by due time; replies never overtake each other.
	if n := len(t.inbox); n > 0 && t.inbox[n-1].due.After(due) {
		due = t.inbox[n-1].due
	}
	t.inbox = append(t.inbox, simChunk{due: due, data: data})
}

func okIf(valid bool) string {
	if valid {
		return at.OK
	}
	return at.ParamError
}

func isHex(s string, size int) bool {
	b, err := hex.DecodeString(s)
	return err == nil && len(b) == size
}
