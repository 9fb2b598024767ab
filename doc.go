// Package stallone lets Go programs use the Stallone Java library for Markov
// model estimation and analysis.
//
// Stallone runs inside a JVM. This package starts that JVM with the Stallone
// archive on its class path, reaches into it through an object-space bridge,
// and converts arrays between Go and Stallone's own array types.
//
// # Architecture Overview
//
// All access to the library is dynamic. An ObjectSpace resolves classes,
// invokes methods and creates Java arrays on behalf of the host:
//
//   - RemoteSpace speaks a length-prefixed MessagePack protocol to a JVM child
//     running the bridge agent on stdin/stdout. JVMLauncher starts it; the
//     agent source is embedded in this package and needs Java 11 or newer.
//   - ServeObjectSpace is the agent side of the same protocol, for exposing a
//     space from Go.
//   - stallonetest.Space is an in-process stand-in for tests.
//
// # Starting the Runtime
//
// Initialize finds the archive, adds it to the JVM class path, starts the
// runtime and checks that the library's API root is what it should be:
//
//	sess, err := stallone.Initialize(ctx, stallone.Options{
//		Args: []string{"-Xmx2g"},
//	})
//	if err != nil {
//		return err
//	}
//	defer sess.Close()
//
// A JVM can be started once per process. LoadConfig reads the same options
// from a TOML file and STALLONE_* environment variables.
//
// # Arrays
//
// Array is a small strided N-dimensional array. Session.ToForeign turns one-
// and two-dimensional int32, int64, float32 and float64 arrays into Stallone
// IDoubleArray or IIntArray objects; Session.ToNative converts back:
//
//	a, _ := stallone.FromRows([][]float64{{1, 2}, {3, 4}})
//	fa, _ := sess.ToForeign(ctx, a, true)
//	back, _ := sess.ToNative(ctx, fa)
//
// With copyData false, contiguous float64 arrays are wrapped instead of copied.
// The foreign array then holds a Lease on the native memory until it is
// released. Across a process boundary this needs an array allocated with
// NewSharedArray.
//
// # Lists
//
// ListToForeignArray and friends coerce Go slices into Java arrays of int,
// double, String or Object, and ListToForeignCollection builds a
// java.util.ArrayList.
//
// # Errors
//
// Every error is an *Error carrying a Phase and a Kind. Use errors.Is with the
// package sentinels:
//
//	if errors.Is(err, stallone.ErrMissingArchive) { ... }
package stallone
