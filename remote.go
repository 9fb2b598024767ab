package stallone

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Bridge commands understood by the agent.
const (
	cmdResolve    = "resolve"
	cmdClassOf    = "class_of"
	cmdInstanceOf = "instance_of"
	cmdInvoke     = "invoke"
	cmdNewArray   = "new_array"
	cmdNewList    = "new_list"
	cmdWrapBuffer = "wrap_buffer"
	cmdRelease    = "release"
	cmdShutdown   = "shutdown"
)

// request is one bridge call. Only the fields the command needs are set.
type request struct {
	Command   string      `msgpack:"command"`
	RequestID string      `msgpack:"request_id"`
	Name      string      `msgpack:"name,omitempty"`
	Target    Ref         `msgpack:"target"`
	Method    string      `msgpack:"method,omitempty"`
	Args      []Value     `msgpack:"args,omitempty"`
	Elem      ElementKind `msgpack:"elem,omitempty"`
	Data      *Value      `msgpack:"data,omitempty"`
	Capacity  int         `msgpack:"capacity,omitempty"`
	Buffer    *BufferView `msgpack:"buffer,omitempty"`
}

// response answers the request with the same RequestID.
type response struct {
	RequestID string            `msgpack:"request_id"`
	Result    Value             `msgpack:"result"`
	Error     *ForeignException `msgpack:"error,omitempty"`
}

// RemoteSpace is an ObjectSpace reached over a Transport, normally the
// stdin/stdout of a JVM running the bridge agent.
//
// RemoteSpace is safe for concurrent use by multiple goroutines. Requests are
// written one at a time and responses are correlated with requests by ID, so
// calls from different goroutines may be in flight together.
type RemoteSpace struct {
	// proc is the JVM behind the transport, nil when the transport was
	// supplied by the caller
	proc *JavaProcess

	serializer Serializer
	transport  Transport

	// timeout bounds calls whose context has no deadline; zero waits forever
	timeout time.Duration

	// writeMu serializes frames on the transport
	writeMu sync.Mutex

	// mutex protects responseMap, closed and loopErr
	mutex       sync.Mutex
	responseMap map[string]chan response
	closed      bool
	loopErr     error

	nextID atomic.Int64
	done   chan struct{}
}

// NewRemoteSpace starts reading responses from transport and returns a space
// issuing requests over it. timeout bounds each call whose context has no
// deadline; zero means no bound.
func NewRemoteSpace(transport Transport, timeout time.Duration) *RemoteSpace {
	rs := &RemoteSpace{
		serializer:  MsgpackSerializer{},
		transport:   transport,
		timeout:     timeout,
		responseMap: make(map[string]chan response),
		done:        make(chan struct{}),
	}
	go rs.messageLoop()
	return rs
}

// Process returns the JVM behind the space, or nil.
func (rs *RemoteSpace) Process() *JavaProcess {
	return rs.proc
}

// messageLoop reads responses and routes them to the waiting callers. When
// the transport fails every pending call is failed with the same error.
func (rs *RemoteSpace) messageLoop() {
	defer close(rs.done)
	for {
		data, err := rs.transport.Receive()
		if err != nil {
			rs.mutex.Lock()
			closed := rs.closed
			rs.mutex.Unlock()
			if !closed && !errors.Is(err, io.EOF) {
				Logger().Error("bridge transport failed", zap.Error(err))
			}
			rs.failPending(err)
			return
		}

		var resp response
		if err := rs.serializer.Unmarshal(data, &resp); err != nil {
			Logger().Warn("undecodable bridge message", zap.Error(err), zap.Int("bytes", len(data)))
			continue
		}

		rs.mutex.Lock()
		ch, ok := rs.responseMap[resp.RequestID]
		delete(rs.responseMap, resp.RequestID)
		rs.mutex.Unlock()

		if !ok {
			Logger().Debug("response without a waiting request", zap.String("request_id", resp.RequestID))
			continue
		}
		ch <- resp
	}
}

func (rs *RemoteSpace) failPending(err error) {
	if err == nil || errors.Is(err, io.ErrClosedPipe) {
		err = io.EOF
	}
	rs.mutex.Lock()
	defer rs.mutex.Unlock()
	rs.loopErr = err
	for id, ch := range rs.responseMap {
		close(ch)
		delete(rs.responseMap, id)
	}
}

func (rs *RemoteSpace) send(req request) error {
	payload, err := rs.serializer.Marshal(req)
	if err != nil {
		return wrapError(PhaseBridge, KindTransport, err, "encode %s", req.Command)
	}
	rs.writeMu.Lock()
	defer rs.writeMu.Unlock()
	if err := rs.transport.Send(payload); err != nil {
		return wrapError(PhaseBridge, KindTransport, err, "send %s", req.Command)
	}
	return nil
}

// roundTrip sends req and waits for its response.
func (rs *RemoteSpace) roundTrip(ctx context.Context, req request) (Value, error) {
	if rs.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, rs.timeout)
			defer cancel()
		}
	}

	req.RequestID = fmt.Sprintf("req-%d", rs.nextID.Add(1))
	ch := make(chan response, 1)

	rs.mutex.Lock()
	if rs.closed {
		rs.mutex.Unlock()
		return Value{}, newError(PhaseBridge, KindTransport, "object space is closed")
	}
	if rs.loopErr != nil {
		err := rs.loopErr
		rs.mutex.Unlock()
		return Value{}, wrapError(PhaseBridge, KindTransport, err, "object space connection lost")
	}
	rs.responseMap[req.RequestID] = ch
	rs.mutex.Unlock()

	if err := rs.send(req); err != nil {
		rs.forget(req.RequestID)
		return Value{}, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			rs.mutex.Lock()
			err := rs.loopErr
			rs.mutex.Unlock()
			return Value{}, wrapError(PhaseBridge, KindTransport, err, "connection lost waiting for %s", req.Command)
		}
		if resp.Error != nil {
			return Value{}, wrapError(PhaseBridge, KindForeign, resp.Error, "%s", describe(req))
		}
		return resp.Result, nil
	case <-ctx.Done():
		rs.forget(req.RequestID)
		return Value{}, wrapError(PhaseBridge, KindTransport, ctx.Err(), "waiting for response to %s", describe(req))
	}
}

func (rs *RemoteSpace) forget(id string) {
	rs.mutex.Lock()
	delete(rs.responseMap, id)
	rs.mutex.Unlock()
}

func describe(req request) string {
	switch req.Command {
	case cmdInvoke:
		return fmt.Sprintf("%s.%s", req.Target, req.Method)
	case cmdResolve:
		return fmt.Sprintf("resolve %s", req.Name)
	}
	return req.Command
}

func (rs *RemoteSpace) Resolve(ctx context.Context, name string) (Ref, error) {
	v, err := rs.roundTrip(ctx, request{Command: cmdResolve, Name: name})
	if err != nil {
		return Ref{}, err
	}
	return v.AsRef()
}

func (rs *RemoteSpace) ClassOf(ctx context.Context, ref Ref) (string, error) {
	v, err := rs.roundTrip(ctx, request{Command: cmdClassOf, Target: ref})
	if err != nil {
		return "", err
	}
	if v.Kind != ValueString {
		return "", newError(PhaseBridge, KindTypeMismatch, "class_of returned %s", v.Kind)
	}
	return v.Str, nil
}

func (rs *RemoteSpace) InstanceOf(ctx context.Context, ref Ref, class string) (bool, error) {
	v, err := rs.roundTrip(ctx, request{Command: cmdInstanceOf, Target: ref, Name: class})
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

func (rs *RemoteSpace) Invoke(ctx context.Context, target Ref, method string, args ...Value) (Value, error) {
	return rs.roundTrip(ctx, request{Command: cmdInvoke, Target: target, Method: method, Args: args})
}

func (rs *RemoteSpace) NewArray(ctx context.Context, elem ElementKind, data Value) (Ref, error) {
	v, err := rs.roundTrip(ctx, request{Command: cmdNewArray, Elem: elem, Data: &data})
	if err != nil {
		return Ref{}, err
	}
	return v.AsRef()
}

func (rs *RemoteSpace) NewList(ctx context.Context, capacity int) (Ref, error) {
	v, err := rs.roundTrip(ctx, request{Command: cmdNewList, Capacity: capacity})
	if err != nil {
		return Ref{}, err
	}
	return v.AsRef()
}

// WrapBuffer asks the agent to map the shared memory region named in view.
// Heap memory cannot be reached from another process and fails with
// KindNotShared.
func (rs *RemoteSpace) WrapBuffer(ctx context.Context, view BufferView) (Ref, error) {
	if view.Name == "" {
		return Ref{}, newError(PhaseBridge, KindNotShared, "zero-copy across processes needs an array from NewSharedArray")
	}
	v, err := rs.roundTrip(ctx, request{Command: cmdWrapBuffer, Buffer: &view})
	if err != nil {
		return Ref{}, err
	}
	return v.AsRef()
}

func (rs *RemoteSpace) Release(ctx context.Context, ref Ref) error {
	if ref.IsNull() {
		return nil
	}
	_, err := rs.roundTrip(ctx, request{Command: cmdRelease, Target: ref})
	return err
}

// Close asks the agent to shut down, closes the transport and terminates the
// JVM if the space started one. Close is idempotent.
func (rs *RemoteSpace) Close() error {
	rs.mutex.Lock()
	if rs.closed {
		rs.mutex.Unlock()
		return nil
	}
	rs.closed = true
	rs.mutex.Unlock()

	// best effort, the agent may already be gone
	if err := rs.send(request{Command: cmdShutdown, RequestID: "shutdown"}); err != nil {
		Logger().Debug("shutdown request not delivered", zap.Error(err))
	}

	err := rs.transport.Close()
	if rs.proc != nil {
		if terr := rs.proc.Terminate(); terr != nil && err == nil {
			err = terr
		}
	}
	<-rs.done
	return err
}
