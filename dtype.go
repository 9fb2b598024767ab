package stallone

// Element is the constraint for Go element types an Array can hold.
type Element interface {
	int8 | int16 | int32 | int64 | uint8 | float32 | float64 | bool
}

// DType represents the runtime element type of an Array.
type DType int

// Element types. Only Int32, Int64, Float32 and Float64 can cross to the
// foreign side; the rest exist so callers get a typed rejection.
const (
	Int8 DType = iota
	Int16
	Int32
	Int64
	Uint8
	Float32
	Float64
	Bool
)

// Size returns the byte size of the element type.
func (dt DType) Size() int {
	switch dt {
	case Int8, Uint8, Bool:
		return 1
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		panic("unknown element type")
	}
}

// String returns a human-readable name for the element type.
func (dt DType) String() string {
	switch dt {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Supported reports whether values of this type can be marshaled to the
// foreign side.
func (dt DType) Supported() bool {
	switch dt {
	case Int32, Int64, Float32, Float64:
		return true
	}
	return false
}

// IsFloat reports whether the type is a floating point type.
func (dt DType) IsFloat() bool {
	return dt == Float32 || dt == Float64
}

// dtypeOf infers the DType of T.
func dtypeOf[T Element]() DType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case float32:
		return Float32
	case float64:
		return Float64
	case bool:
		return Bool
	}
	panic("unsupported element type")
}
