package stallone

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Serializer encodes bridge messages. The agent speaks MessagePack, so
// MsgpackSerializer is the only implementation in use; the interface exists
// so tests can observe the encoded form.
type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// Transport moves whole messages between the host and the agent.
type Transport interface {
	// Send writes one message.
	Send(data []byte) error

	// Receive reads the next complete message. It returns io.EOF once the
	// peer has closed its end.
	Receive() ([]byte, error)

	// Close closes both directions.
	Close() error

	// Flush pushes buffered output to the peer.
	Flush() error
}

type MsgpackSerializer struct{}

func (ms MsgpackSerializer) Marshal(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (ms MsgpackSerializer) Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

const (
	frameHeaderSize = 4

	// pooledFrameSize matches the agent's stream buffers
	pooledFrameSize = 8192
	pooledFrames    = 10

	// MaxFrameSize bounds a single bridge message. A larger length prefix
	// means the stream is out of sync.
	MaxFrameSize = 256 << 20
)

// MsgpackTransport frames messages with a 4-byte big-endian length prefix,
// the framing the agent reads from stdin and writes to stdout.
//
// Send and Receive may run concurrently with each other; concurrent Sends
// must be serialized by the caller.
type MsgpackTransport struct {
	reader io.ReadCloser
	writer io.WriteCloser
	frames *FramePool

	closeOnce sync.Once
	closeErr  error
}

func NewMsgpackTransport(reader io.ReadCloser, writer io.WriteCloser) *MsgpackTransport {
	return &MsgpackTransport{
		reader: reader,
		writer: writer,
		frames: NewFramePool(pooledFrameSize, pooledFrames),
	}
}

// Send writes the header and payload. Frames up to the pooled frame size go
// out in a single write so a reader never sees a header without its payload;
// larger ones are written in two parts rather than copied.
func (mt *MsgpackTransport) Send(data []byte) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds the %d byte limit", len(data), MaxFrameSize)
	}

	n := frameHeaderSize + len(data)
	if n > mt.frames.FrameSize() {
		var header [frameHeaderSize]byte
		binary.BigEndian.PutUint32(header[:], uint32(len(data)))
		if _, err := mt.writer.Write(header[:]); err != nil {
			return err
		}
		if _, err := mt.writer.Write(data); err != nil {
			return err
		}
		return mt.Flush()
	}

	frame := mt.frames.Get(n)
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[frameHeaderSize:], data)
	_, err := mt.writer.Write(frame)
	mt.frames.Put(frame)
	if err != nil {
		return err
	}
	return mt.Flush()
}

func (mt *MsgpackTransport) Receive() ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(mt.reader, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("frame header announces %d bytes, limit is %d", length, MaxFrameSize)
	}

	buf := mt.frames.Get(int(length))
	if _, err := io.ReadFull(mt.reader, buf); err != nil {
		mt.frames.Put(buf)
		return nil, unexpectedEOF(err)
	}
	if int(length) > mt.frames.FrameSize() {
		return buf, nil
	}

	// pooled buffers are reused, the caller gets its own copy
	msg := make([]byte, length)
	copy(msg, buf)
	mt.frames.Put(buf)
	return msg, nil
}

// unexpectedEOF reports a stream cut inside a frame as io.ErrUnexpectedEOF.
func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Close closes the reader and the writer. Later calls return the first
// result.
func (mt *MsgpackTransport) Close() error {
	mt.closeOnce.Do(func() {
		rerr := mt.reader.Close()
		werr := mt.writer.Close()
		if rerr != nil {
			mt.closeErr = rerr
		} else {
			mt.closeErr = werr
		}
	})
	return mt.closeErr
}

func (mt *MsgpackTransport) Flush() error {
	if flusher, ok := mt.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}
