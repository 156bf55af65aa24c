package modem_test

import (
	"io"

	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/atbridge/modem"
)

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

// Command expects cmd to be written and answers it with the given chunks,
// one Read per chunk.
func (b *MockSequenceBuilder) Command(cmd string, chunks ...string) *MockSequenceBuilder {
	wire := []byte(cmd + "\r")
	b.calls = append(b.calls, b.transport.EXPECT().Write(wire).Return(len(wire), nil))
	for _, chunk := range chunks {
		b.calls = append(b.calls, b.readChunk(chunk))
	}
	return b
}

func (b *MockSequenceBuilder) Signal() *MockSequenceBuilder {
	return b.Command("AT^HCSQ?", "\r\n^HCSQ:\"NR\",60,120,20\r\n", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) Deregister() *MockSequenceBuilder {
	return b.Command("AT+COPS=2", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) LockRejected() *MockSequenceBuilder {
	return b.Command(`AT^NRFREQLOCK=2,0,1,"78","627264","1","579"`, "\r\n+CME ERROR: 50\r\n")
}

// EOF makes the next Read report that the peer closed the stream.
func (b *MockSequenceBuilder) EOF() *MockSequenceBuilder {
	b.calls = append(b.calls, b.transport.EXPECT().Read(gomock.Any()).Return(0, io.EOF))
	return b
}

func (b *MockSequenceBuilder) readChunk(chunk string) any {
	return b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
		return copy(p, chunk), nil
	})
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
