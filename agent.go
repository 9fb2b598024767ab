package stallone

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"
)

// ServeObjectSpace is the agent side of the bridge protocol: it reads
// requests from t, answers them from space and writes the responses back,
// until the transport reaches EOF, a shutdown request arrives, or ctx is
// done. ctx is checked between requests only.
//
// The JVM side of the protocol is agent/StalloneAgent.java, embedded in this
// package and run by JVMLauncher. ServeObjectSpace lets a Go process expose
// any ObjectSpace the same way, for instance to put a RemoteSpace in front of
// an in-process space.
func ServeObjectSpace(ctx context.Context, t Transport, space ObjectSpace) error {
	ser := MsgpackSerializer{}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := t.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}

		var req request
		if err := ser.Unmarshal(data, &req); err != nil {
			Logger().Warn("undecodable bridge request", zap.Error(err))
			continue
		}

		resp := response{RequestID: req.RequestID}
		if req.Command == cmdShutdown {
			payload, _ := ser.Marshal(resp)
			_ = t.Send(payload)
			return nil
		}

		resp.Result, err = dispatch(ctx, space, req)
		if err != nil {
			resp.Error = exceptionFromError(err)
		}

		payload, err := ser.Marshal(resp)
		if err != nil {
			return err
		}
		if err := t.Send(payload); err != nil {
			return err
		}
	}
}

func dispatch(ctx context.Context, space ObjectSpace, req request) (Value, error) {
	switch req.Command {
	case cmdResolve:
		ref, err := space.Resolve(ctx, req.Name)
		return RefValue(ref), err
	case cmdClassOf:
		class, err := space.ClassOf(ctx, req.Target)
		return StringValue(class), err
	case cmdInstanceOf:
		ok, err := space.InstanceOf(ctx, req.Target, req.Name)
		return BoolValue(ok), err
	case cmdInvoke:
		return space.Invoke(ctx, req.Target, req.Method, req.Args...)
	case cmdNewArray:
		if req.Data == nil {
			return Value{}, newError(PhaseBridge, KindInvalidInput, "new_array without data")
		}
		ref, err := space.NewArray(ctx, req.Elem, *req.Data)
		return RefValue(ref), err
	case cmdNewList:
		ref, err := space.NewList(ctx, req.Capacity)
		return RefValue(ref), err
	case cmdWrapBuffer:
		if req.Buffer == nil {
			return Value{}, newError(PhaseBridge, KindInvalidInput, "wrap_buffer without buffer")
		}
		view, closeView, err := mapBufferView(*req.Buffer)
		if err != nil {
			return Value{}, err
		}
		ref, err := space.WrapBuffer(ctx, view)
		if err != nil {
			closeView()
		}
		return RefValue(ref), err
	case cmdRelease:
		return Null, space.Release(ctx, req.Target)
	}
	return Value{}, newError(PhaseBridge, KindInvalidInput, "unknown command %q", req.Command)
}

// mapBufferView attaches the shared memory a request names so in-process
// spaces see the same memory as the caller. The mapping stays open for the
// lifetime of the view.
func mapBufferView(view BufferView) (BufferView, func(), error) {
	shm, err := OpenSharedMemory(view.Name, view.Offset+view.Length*Float64.Size())
	if err != nil {
		return BufferView{}, nil, wrapError(PhaseBridge, KindNotShared, err, "open shared memory %q", view.Name)
	}
	view.Data = shm.GetFloat64Slice(view.Offset)[:view.Length]
	return view, func() { shm.Close() }, nil
}

func exceptionFromError(err error) *ForeignException {
	var fe *ForeignException
	if errors.As(err, &fe) {
		return fe
	}
	ex := &ForeignException{Exception: "error", Message: err.Error()}
	var se *Error
	if errors.As(err, &se) {
		ex.Exception = string(se.Kind)
	}
	return ex
}
