package stallone

// FramePool recycles the buffers MsgpackTransport assembles and reads frames
// in. Frames up to FrameSize bytes share pooled buffers; larger frames are
// allocated on demand and never pooled. Buffers are allocated lazily, at most
// count of them are kept, and the pool is safe for concurrent use.
type FramePool struct {
	free      chan []byte
	frameSize int
}

func NewFramePool(frameSize, count int) *FramePool {
	return &FramePool{
		free:      make(chan []byte, count),
		frameSize: frameSize,
	}
}

// FrameSize is the largest frame served from the pool.
func (p *FramePool) FrameSize() int {
	return p.frameSize
}

// Idle returns the number of buffers waiting in the pool.
func (p *FramePool) Idle() int {
	return len(p.free)
}

// Get returns a buffer of length n.
func (p *FramePool) Get(n int) []byte {
	if n > p.frameSize {
		return make([]byte, n)
	}
	select {
	case buf := <-p.free:
		return buf[:n]
	default:
		return make([]byte, n, p.frameSize)
	}
}

// Put hands back a buffer obtained from Get. Oversized frames and buffers
// arriving when the pool is full are dropped.
func (p *FramePool) Put(buf []byte) {
	if cap(buf) != p.frameSize {
		return
	}
	select {
	case p.free <- buf[:0]:
	default:
	}
}
