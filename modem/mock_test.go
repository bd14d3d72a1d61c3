package modem_test

import "i4.energy/across/currentmon/modem"

// MockSequenceBuilder records the transport calls one Execute makes with a
// zero settle delay: an empty drain poll, the command write, then the reply.
type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

func (b *MockSequenceBuilder) Drain() *MockSequenceBuilder {
	b.calls = append(b.calls, b.transport.EXPECT().HasData().Return(false))
	return b
}

func (b *MockSequenceBuilder) Write(cmd string) *MockSequenceBuilder {
	wire := cmd + "\r\n"
	b.calls = append(b.calls, b.transport.EXPECT().Write([]byte(wire)).Return(len(wire), nil))
	return b
}

func (b *MockSequenceBuilder) Reply(data string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().HasData().Return(true),
		b.transport.EXPECT().ReadAvailable().Return([]byte(data), nil),
	)
	return b
}

func (b *MockSequenceBuilder) AT() *MockSequenceBuilder {
	return b.Drain().Write("AT").Reply("OK\r\n")
}

func (b *MockSequenceBuilder) Command(cmd, reply string) *MockSequenceBuilder {
	return b.Drain().Write(cmd).Reply(reply)
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
