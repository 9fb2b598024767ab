package stallone

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeTransports() (*MsgpackTransport, *MsgpackTransport) {
	aR, aW := io.Pipe()
	bR, bW := io.Pipe()
	return NewMsgpackTransport(aR, bW), NewMsgpackTransport(bR, aW)
}

func TestMsgpackTransportFraming(t *testing.T) {
	left, right := pipeTransports()
	defer left.Close()
	defer right.Close()

	small := []byte("ping")
	large := bytes.Repeat([]byte{0xab}, 20000)

	go func() {
		_ = left.Send(small)
		_ = left.Send(large)
		_ = left.Send(nil)
	}()

	got, err := right.Receive()
	require.NoError(t, err)
	assert.Equal(t, small, got)

	got, err = right.Receive()
	require.NoError(t, err)
	assert.Equal(t, large, got)

	got, err = right.Receive()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMsgpackTransportEOF(t *testing.T) {
	left, right := pipeTransports()
	require.NoError(t, left.Close())

	_, err := right.Receive()
	assert.ErrorIs(t, err, io.EOF)
	right.Close()
}

func TestMsgpackTransportBadFrames(t *testing.T) {
	r, w := io.Pipe()
	mt := NewMsgpackTransport(r, nopWriteCloser{io.Discard})

	go func() {
		// header announcing more than the limit
		w.Write([]byte{0xff, 0xff, 0xff, 0xff})
		w.Close()
	}()
	_, err := mt.Receive()
	assert.Error(t, err)

	r, w = io.Pipe()
	mt = NewMsgpackTransport(r, nopWriteCloser{io.Discard})
	go func() {
		// ten bytes promised, three delivered
		w.Write([]byte{0, 0, 0, 10, 1, 2, 3})
		w.Close()
	}()
	_, err = mt.Receive()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	assert.NoError(t, mt.Close())
	assert.NoError(t, mt.Close())
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func TestBridgeMessagesRoundTrip(t *testing.T) {
	ser := MsgpackSerializer{}

	req := request{
		Command:   cmdInvoke,
		RequestID: "req-1",
		Target:    Ref{ID: 3, Class: "stallone.doubles.PrimitiveDoubleArray"},
		Method:    "set",
		Args:      []Value{IntValue(1), IntValue(0), DoubleValue(2.5)},
	}
	data, err := ser.Marshal(req)
	require.NoError(t, err)

	var decoded request
	require.NoError(t, ser.Unmarshal(data, &decoded))
	assert.Equal(t, req, decoded)

	resp := response{
		RequestID: "req-1",
		Error:     &ForeignException{Exception: "java.lang.ArrayIndexOutOfBoundsException", Message: "index 9"},
	}
	data, err = ser.Marshal(resp)
	require.NoError(t, err)

	var back response
	require.NoError(t, ser.Unmarshal(data, &back))
	require.NotNil(t, back.Error)
	assert.Equal(t, "java.lang.ArrayIndexOutOfBoundsException", back.Error.Exception)

	view := BufferView{Name: "w", Path: "/dev/shm/stallone.w", Offset: 16, Length: 4, ByteOrder: "little", Data: []float64{1}}
	data, err = ser.Marshal(view)
	require.NoError(t, err)
	var v BufferView
	require.NoError(t, ser.Unmarshal(data, &v))
	assert.Nil(t, v.Data, "memory never travels over the wire")
	assert.Equal(t, 16, v.Offset)
	assert.Equal(t, "/dev/shm/stallone.w", v.Path)
}
