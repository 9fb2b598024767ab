package stallone

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain builds an exception whose causes follow in order.
func chain(classes ...string) *ForeignException {
	var head *ForeignException
	for i := len(classes) - 1; i >= 0; i-- {
		head = &ForeignException{
			Exception:  classes[i],
			Message:    fmt.Sprintf("m%d", i),
			StackTrace: fmt.Sprintf("\tat F%d.f(F%d.java:%d)", i, i, i+1),
			Cause:      head,
		}
	}
	return head
}

func TestForeignExceptionToString(t *testing.T) {
	tests := []struct {
		name string
		ex   *ForeignException
		want string
	}{
		{
			name: "no cause",
			ex:   chain("java.lang.IllegalStateException"),
			want: "java.lang.IllegalStateException: m0\n\tat F0.f(F0.java:1)",
		},
		{
			name: "one cause",
			ex:   chain("stallone.api.StalloneException", "java.lang.ArithmeticException"),
			want: "stallone.api.StalloneException: m0\n\tat F0.f(F0.java:1)" +
				"\nCaused by: java.lang.ArithmeticException: m1\n\tat F1.f(F1.java:2)",
		},
		{
			name: "nested causes keep their order",
			ex:   chain("A", "B", "C"),
			want: "A: m0\n\tat F0.f(F0.java:1)" +
				"\nCaused by: B: m1\n\tat F1.f(F1.java:2)" +
				"\nCaused by: C: m2\n\tat F2.f(F2.java:3)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ex.ToString())
			// Error stays on one line whatever the depth
			assert.Equal(t, tt.ex.Exception+": m0", tt.ex.Error())
		})
	}
}

func TestForeignExceptionCauseChain(t *testing.T) {
	ex := chain("java.lang.RuntimeException", "java.io.UncheckedIOException", "java.io.FileNotFoundException")
	inner := ex.Cause.Cause

	assert.Same(t, inner, ex.Root())
	assert.Same(t, inner, inner.Root())
	assert.Equal(t, ex.Cause, errors.Unwrap(ex))
	assert.Nil(t, errors.Unwrap(inner))

	// the chain stays reachable through bridge wrapping
	err := fmt.Errorf("estimate: %w", wrapError(PhaseBridge, KindForeign, ex, "invoke"))
	assert.ErrorIs(t, err, ErrForeign)
	assert.ErrorIs(t, err, inner)

	var fe *ForeignException
	require.ErrorAs(t, err, &fe)
	assert.Same(t, ex, fe, "errors.As stops at the outermost exception")

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindForeign, se.Kind)
}

func TestForeignExceptionWireForms(t *testing.T) {
	t.Run("stderr json", func(t *testing.T) {
		line := []byte(`{"exception":"java.lang.OutOfMemoryError","message":"Java heap space","stacktrace":"java.lang.OutOfMemoryError: Java heap space\n\tat A.a(A.java:1)\n"}`)
		ex, err := NewForeignExceptionFromJSON(line)
		require.NoError(t, err)
		assert.Equal(t, "java.lang.OutOfMemoryError", ex.Exception)
		assert.Equal(t, "Java heap space", ex.Message)
		assert.Nil(t, ex.Cause)
		assert.Same(t, ex, ex.Root())

		_, err = NewForeignExceptionFromJSON([]byte(`{"exception": `))
		assert.Error(t, err)
	})

	t.Run("msgpack response", func(t *testing.T) {
		// the shape the agent writes for a failed call
		ser := MsgpackSerializer{}
		data, err := ser.Marshal(map[string]any{
			"request_id": "req-7",
			"result":     map[string]any{"kind": "null"},
			"error": map[string]any{
				"exception":  "java.lang.reflect.UndeclaredThrowableException",
				"message":    "",
				"stacktrace": "ST0",
				"cause": map[string]any{
					"exception":  "java.lang.NegativeArraySizeException",
					"message":    "-1",
					"stacktrace": "ST1",
				},
			},
		})
		require.NoError(t, err)

		var resp response
		require.NoError(t, ser.Unmarshal(data, &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "req-7", resp.RequestID)
		assert.Equal(t, ValueNull, resp.Result.Kind)
		assert.Equal(t, "java.lang.NegativeArraySizeException", resp.Error.Root().Exception)
		assert.Equal(t, "-1", resp.Error.Root().Message)
	})
}

func TestExceptionFromError(t *testing.T) {
	ex := chain("java.lang.ClassCastException")

	tests := []struct {
		name      string
		err       error
		wantClass string
		same      bool
	}{
		{"foreign passes through", fmt.Errorf("call: %w", ex), "java.lang.ClassCastException", true},
		{"package error keeps its kind", newError(PhaseBridge, KindInvalidInput, "bad"), string(KindInvalidInput), false},
		{"other errors", errors.New("boom"), "error", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exceptionFromError(tt.err)
			assert.Equal(t, tt.wantClass, got.Exception)
			if tt.same {
				assert.Same(t, ex, got)
			} else {
				assert.Equal(t, tt.err.Error(), got.Message)
			}
		})
	}
}
