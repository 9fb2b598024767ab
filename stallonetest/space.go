// Package stallonetest provides an in-process stallone.ObjectSpace that
// behaves like the parts of the Stallone library the stallone package uses,
// for tests that should not start a JVM.
package stallonetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cmb-fu/gostallone"
)

// Class names reported for the objects the space creates.
const (
	PackageClass       = "stallone"
	DoubleFactoryClass = "stallone.api.doubles.DoubleFactory"
	IntFactoryClass    = "stallone.api.ints.IntFactory"
	DoubleArrayClass   = "stallone.doubles.PrimitiveDoubleArray"
	DoubleTableClass   = "stallone.doubles.PrimitiveDoubleTable"
	SparseArrayClass   = "stallone.doubles.SparseRealVector"
	IntArrayClass      = "stallone.ints.PrimitiveIntArray"
	IntTableClass      = "stallone.ints.PrimitiveIntTable"
	BufferClass        = "java.nio.DirectDoubleBufferU"
)

// Layout discriminants returned by order().
const (
	OrderLinear = 1
	OrderTable  = 2
	OrderSparse = 3
)

type object struct {
	class      string
	interfaces []string
	value      any
}

// doubleArray and intArray store their elements row-major.
type doubleArray struct {
	data       []float64
	rows, cols int
	order      int
}

type intArray struct {
	data       []int32
	rows, cols int
}

type javaList struct {
	items []stallone.Value
}

type factory struct{}

// Space is an in-memory object space. It is safe for concurrent use.
type Space struct {
	mu          sync.Mutex
	nextID      int64
	objects     map[int64]*object
	namespace   stallone.Ref
	api         stallone.Ref
	apiIdentity string
	calls       map[string]int
	closed      bool

	launches   int
	javaPath   string
	launchArgs []string
}

// Option configures a Space.
type Option func(*Space)

// WithAPIIdentity makes ClassOf report identity for the API root, to
// simulate a broken archive.
func WithAPIIdentity(identity string) Option {
	return func(s *Space) {
		s.apiIdentity = identity
	}
}

// New returns a space holding the stallone namespace and the API root.
func New(opts ...Option) *Space {
	s := &Space{
		objects:     make(map[int64]*object),
		calls:       make(map[string]int),
		apiIdentity: stallone.APIIdentity,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.namespace = s.add(PackageClass, nil, nil)
	s.api = s.add(stallone.APIClass, nil, nil)
	return s
}

// add stores value and returns its handle. Callers hold s.mu or own s.
func (s *Space) add(class string, interfaces []string, value any) stallone.Ref {
	s.nextID++
	s.objects[s.nextID] = &object{class: class, interfaces: interfaces, value: value}
	return stallone.Ref{ID: s.nextID, Class: class}
}

func (s *Space) get(ref stallone.Ref) (*object, error) {
	if s.closed {
		return nil, fmt.Errorf("object space is closed")
	}
	obj, ok := s.objects[ref.ID]
	if !ok {
		return nil, exception("java.lang.NullPointerException", "no object for %s", ref)
	}
	return obj, nil
}

func exception(class, format string, args ...any) *stallone.ForeignException {
	return &stallone.ForeignException{Exception: class, Message: fmt.Sprintf(format, args...)}
}

func noSuchMethod(obj *object, method string, args []stallone.Value) *stallone.ForeignException {
	kinds := make([]stallone.ValueKind, len(args))
	for i, a := range args {
		kinds[i] = a.Kind
	}
	return exception("java.lang.NoSuchMethodException", "%s.%s%v", obj.class, method, kinds)
}

func (s *Space) Resolve(ctx context.Context, name string) (stallone.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stallone.Ref{}, fmt.Errorf("object space is closed")
	}
	switch name {
	case stallone.NamespaceRoot:
		return s.namespace, nil
	case stallone.APIClass:
		return s.api, nil
	}
	return stallone.Ref{}, exception("java.lang.ClassNotFoundException", "%s", name)
}

func (s *Space) ClassOf(ctx context.Context, ref stallone.Ref) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, err := s.get(ref)
	if err != nil {
		return "", err
	}
	if ref.ID == s.api.ID {
		return s.apiIdentity, nil
	}
	return obj.class, nil
}

func (s *Space) InstanceOf(ctx context.Context, ref stallone.Ref, class string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, err := s.get(ref)
	if err != nil {
		return false, err
	}
	if obj.class == class {
		return true, nil
	}
	for _, iface := range obj.interfaces {
		if iface == class {
			return true, nil
		}
	}
	return false, nil
}

func (s *Space) Invoke(ctx context.Context, target stallone.Ref, method string, args ...stallone.Value) (stallone.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, err := s.get(target)
	if err != nil {
		return stallone.Value{}, err
	}
	s.calls[method]++

	if target.ID == s.api.ID {
		return s.invokeAPI(obj, method, args)
	}
	switch v := obj.value.(type) {
	case *factory:
		if obj.class == DoubleFactoryClass {
			return s.invokeDoubleFactory(obj, method, args)
		}
		return s.invokeIntFactory(obj, method, args)
	case *doubleArray:
		return invokeDoubleArray(obj, v, method, args)
	case *intArray:
		return invokeIntArray(obj, v, method, args)
	case *javaList:
		return invokeList(obj, v, method, args)
	}
	return stallone.Value{}, noSuchMethod(obj, method, args)
}

func (s *Space) invokeAPI(obj *object, method string, args []stallone.Value) (stallone.Value, error) {
	if len(args) != 0 {
		return stallone.Value{}, noSuchMethod(obj, method, args)
	}
	switch method {
	case "doublesNew":
		return stallone.RefValue(s.add(DoubleFactoryClass, nil, &factory{})), nil
	case "intsNew":
		return stallone.RefValue(s.add(IntFactoryClass, nil, &factory{})), nil
	}
	return stallone.Value{}, noSuchMethod(obj, method, args)
}

func (s *Space) newDoubles(data []float64, rows, cols, order int) stallone.Value {
	class := DoubleArrayClass
	switch order {
	case OrderTable:
		class = DoubleTableClass
	case OrderSparse:
		class = SparseArrayClass
	}
	arr := &doubleArray{data: data, rows: rows, cols: cols, order: order}
	return stallone.RefValue(s.add(class, []string{stallone.DoubleArrayInterface}, arr))
}

func (s *Space) newInts(data []int32, rows, cols int) stallone.Value {
	class := IntArrayClass
	if cols > 1 {
		class = IntTableClass
	}
	arr := &intArray{data: data, rows: rows, cols: cols}
	return stallone.RefValue(s.add(class, []string{stallone.IntArrayInterface}, arr))
}

// javaArrayArg returns the payload of a Java array argument.
func (s *Space) javaArrayArg(v stallone.Value) (stallone.Value, bool) {
	if v.Kind != stallone.ValueRef {
		return stallone.Value{}, false
	}
	obj, ok := s.objects[v.Ref.ID]
	if !ok {
		return stallone.Value{}, false
	}
	payload, ok := obj.value.(stallone.Value)
	return payload, ok
}

func (s *Space) invokeDoubleFactory(obj *object, method string, args []stallone.Value) (stallone.Value, error) {
	switch {
	case method == "array" && len(args) == 1 && args[0].Kind == stallone.ValueInt:
		n := int(args[0].Int)
		if n < 0 {
			return stallone.Value{}, exception("java.lang.NegativeArraySizeException", "%d", n)
		}
		return s.newDoubles(make([]float64, n), n, 1, OrderLinear), nil

	case method == "array" && len(args) == 2 && args[0].Kind == stallone.ValueInt && args[1].Kind == stallone.ValueInt:
		r, c := int(args[0].Int), int(args[1].Int)
		return s.newDoubles(make([]float64, r*c), r, c, OrderTable), nil

	case method == "array" && len(args) == 1:
		payload, ok := s.javaArrayArg(args[0])
		if !ok {
			break
		}
		if payload.Kind == stallone.ValueDoubles {
			data := append([]float64(nil), payload.Doubles...)
			return s.newDoubles(data, len(data), 1, OrderLinear), nil
		}
		if payload.Kind == stallone.ValueItems {
			data, rows, cols, err := flattenDoubles(payload.Items)
			if err != nil {
				return stallone.Value{}, err
			}
			return s.newDoubles(data, rows, cols, OrderTable), nil
		}

	case method == "arrayFrom" && len(args) == 3 && args[0].Kind == stallone.ValueRef:
		buf, ok := s.objects[args[0].Ref.ID]
		if !ok || buf.class != BufferClass {
			break
		}
		data := buf.value.([]float64)
		rows, cols := int(args[1].Int), int(args[2].Int)
		if rows*cols != len(data) {
			return stallone.Value{}, exception("java.lang.IllegalArgumentException",
				"buffer holds %d doubles, %dx%d requested", len(data), rows, cols)
		}
		order := OrderTable
		if cols == 1 {
			order = OrderLinear
		}
		return s.newDoubles(data, rows, cols, order), nil
	}
	return stallone.Value{}, noSuchMethod(obj, method, args)
}

func (s *Space) invokeIntFactory(obj *object, method string, args []stallone.Value) (stallone.Value, error) {
	switch {
	case method == "array" && len(args) == 1 && args[0].Kind == stallone.ValueInt:
		n := int(args[0].Int)
		if n < 0 {
			return stallone.Value{}, exception("java.lang.NegativeArraySizeException", "%d", n)
		}
		return s.newInts(make([]int32, n), n, 1), nil

	case method == "arrayFrom" && len(args) == 1:
		payload, ok := s.javaArrayArg(args[0])
		if !ok || payload.Kind != stallone.ValueInts {
			break
		}
		data := append([]int32(nil), payload.Ints...)
		return s.newInts(data, len(data), 1), nil

	case method == "table" && len(args) == 1:
		payload, ok := s.javaArrayArg(args[0])
		if !ok || payload.Kind != stallone.ValueItems {
			break
		}
		data, rows, cols, err := flattenInts(payload.Items)
		if err != nil {
			return stallone.Value{}, err
		}
		return s.newInts(data, rows, cols), nil
	}
	return stallone.Value{}, noSuchMethod(obj, method, args)
}

func flattenDoubles(items []stallone.Value) ([]float64, int, int, error) {
	if len(items) == 0 {
		return nil, 0, 0, nil
	}
	cols := len(items[0].Doubles)
	data := make([]float64, 0, len(items)*cols)
	for i, row := range items {
		if row.Kind != stallone.ValueDoubles || len(row.Doubles) != cols {
			return nil, 0, 0, exception("java.lang.IllegalArgumentException", "row %d is not a double[%d]", i, cols)
		}
		data = append(data, row.Doubles...)
	}
	return data, len(items), cols, nil
}

func flattenInts(items []stallone.Value) ([]int32, int, int, error) {
	if len(items) == 0 {
		return nil, 0, 0, nil
	}
	cols := len(items[0].Ints)
	data := make([]int32, 0, len(items)*cols)
	for i, row := range items {
		if row.Kind != stallone.ValueInts || len(row.Ints) != cols {
			return nil, 0, 0, exception("java.lang.IllegalArgumentException", "row %d is not an int[%d]", i, cols)
		}
		data = append(data, row.Ints...)
	}
	return data, len(items), cols, nil
}

// index resolves get/set coordinates to a linear index.
func index(rows, cols int, args []stallone.Value) (int, error) {
	var i int
	switch len(args) {
	case 1:
		i = int(args[0].Int)
		if i < 0 || i >= rows*cols {
			return 0, exception("java.lang.ArrayIndexOutOfBoundsException", "index %d", i)
		}
	case 2:
		r, c := int(args[0].Int), int(args[1].Int)
		if r < 0 || r >= rows || c < 0 || c >= cols {
			return 0, exception("java.lang.ArrayIndexOutOfBoundsException", "index (%d, %d)", r, c)
		}
		i = r*cols + c
	default:
		return 0, exception("java.lang.IllegalArgumentException", "%d indices", len(args))
	}
	return i, nil
}

func invokeDoubleArray(obj *object, a *doubleArray, method string, args []stallone.Value) (stallone.Value, error) {
	switch method {
	case "rows":
		return stallone.IntValue(int64(a.rows)), nil
	case "columns":
		return stallone.IntValue(int64(a.cols)), nil
	case "order":
		return stallone.IntValue(int64(a.order)), nil
	case "size":
		return stallone.IntValue(int64(len(a.data))), nil
	case "isSparse":
		return stallone.BoolValue(a.order == OrderSparse), nil
	case "getArray":
		return stallone.DoublesValue(append([]float64(nil), a.data...)), nil
	case "get":
		i, err := index(a.rows, a.cols, args)
		if err != nil {
			return stallone.Value{}, err
		}
		return stallone.DoubleValue(a.data[i]), nil
	case "set":
		if len(args) < 2 {
			break
		}
		i, err := index(a.rows, a.cols, args[:len(args)-1])
		if err != nil {
			return stallone.Value{}, err
		}
		x, err := args[len(args)-1].AsDouble()
		if err != nil {
			return stallone.Value{}, exception("java.lang.IllegalArgumentException", "%v", err)
		}
		a.data[i] = x
		return stallone.Null, nil
	}
	return stallone.Value{}, noSuchMethod(obj, method, args)
}

func invokeIntArray(obj *object, a *intArray, method string, args []stallone.Value) (stallone.Value, error) {
	switch method {
	case "rows":
		return stallone.IntValue(int64(a.rows)), nil
	case "columns":
		return stallone.IntValue(int64(a.cols)), nil
	case "order":
		if a.cols > 1 {
			return stallone.IntValue(OrderTable), nil
		}
		return stallone.IntValue(OrderLinear), nil
	case "size":
		return stallone.IntValue(int64(len(a.data))), nil
	case "getArray":
		return stallone.IntsValue(append([]int32(nil), a.data...)), nil
	case "get":
		i, err := index(a.rows, a.cols, args)
		if err != nil {
			return stallone.Value{}, err
		}
		return stallone.IntValue(int64(a.data[i])), nil
	case "set":
		if len(args) < 2 {
			break
		}
		i, err := index(a.rows, a.cols, args[:len(args)-1])
		if err != nil {
			return stallone.Value{}, err
		}
		x, err := args[len(args)-1].AsInt()
		if err != nil {
			return stallone.Value{}, exception("java.lang.IllegalArgumentException", "%v", err)
		}
		a.data[i] = int32(x)
		return stallone.Null, nil
	}
	return stallone.Value{}, noSuchMethod(obj, method, args)
}

func invokeList(obj *object, l *javaList, method string, args []stallone.Value) (stallone.Value, error) {
	switch {
	case method == "add" && len(args) == 1:
		l.items = append(l.items, args[0])
		return stallone.BoolValue(true), nil
	case method == "size" && len(args) == 0:
		return stallone.IntValue(int64(len(l.items))), nil
	case method == "get" && len(args) == 1:
		i := int(args[0].Int)
		if i < 0 || i >= len(l.items) {
			return stallone.Value{}, exception("java.lang.IndexOutOfBoundsException", "Index %d out of bounds for length %d", i, len(l.items))
		}
		return l.items[i], nil
	}
	return stallone.Value{}, noSuchMethod(obj, method, args)
}

// arrayClass names the Java array type for a payload.
func arrayClass(elem stallone.ElementKind, data stallone.Value) (string, error) {
	base := map[stallone.ElementKind]string{
		stallone.ElementInt:    "int",
		stallone.ElementDouble: "double",
		stallone.ElementString: "java.lang.String",
		stallone.ElementObject: "java.lang.Object",
	}[elem]
	if base == "" {
		return "", exception("java.lang.IllegalArgumentException", "unknown element kind %q", elem)
	}

	want := map[stallone.ElementKind]stallone.ValueKind{
		stallone.ElementInt:    stallone.ValueInts,
		stallone.ElementDouble: stallone.ValueDoubles,
		stallone.ElementString: stallone.ValueStrings,
		stallone.ElementObject: stallone.ValueItems,
	}[elem]

	if data.Kind == want && !(elem == stallone.ElementObject && isTable(data)) {
		return base + "[]", nil
	}
	if data.Kind == stallone.ValueItems {
		for i, row := range data.Items {
			if row.Kind != want {
				return "", exception("java.lang.ArrayStoreException", "row %d of %s[][] is %s", i, base, row.Kind)
			}
		}
		return base + "[][]", nil
	}
	return "", exception("java.lang.ArrayStoreException", "%s cannot hold %s", base+"[]", data.Kind)
}

// isTable reports whether an Object payload is a list of rows.
func isTable(data stallone.Value) bool {
	if len(data.Items) == 0 {
		return false
	}
	for _, it := range data.Items {
		if it.Kind != stallone.ValueItems {
			return false
		}
	}
	return true
}

func (s *Space) NewArray(ctx context.Context, elem stallone.ElementKind, data stallone.Value) (stallone.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stallone.Ref{}, fmt.Errorf("object space is closed")
	}
	class, err := arrayClass(elem, data)
	if err != nil {
		return stallone.Ref{}, err
	}
	s.calls["newArray"]++
	return s.add(class, nil, data), nil
}

func (s *Space) NewList(ctx context.Context, capacity int) (stallone.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stallone.Ref{}, fmt.Errorf("object space is closed")
	}
	return s.add(stallone.ArrayListClass, []string{"java.util.List", "java.util.Collection"},
		&javaList{items: make([]stallone.Value, 0, capacity)}), nil
}

// WrapBuffer wraps view.Data without copying, so writes through arrays built
// on the buffer reach the caller's memory.
func (s *Space) WrapBuffer(ctx context.Context, view stallone.BufferView) (stallone.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stallone.Ref{}, fmt.Errorf("object space is closed")
	}
	if view.Data == nil || len(view.Data) != view.Length {
		return stallone.Ref{}, exception("java.lang.IllegalArgumentException",
			"buffer view of %d doubles carries %d", view.Length, len(view.Data))
	}
	return s.add(BufferClass, []string{"java.nio.DoubleBuffer"}, view.Data), nil
}

func (s *Space) Release(ctx context.Context, ref stallone.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(ref); err != nil {
		return err
	}
	if ref.ID == s.api.ID || ref.ID == s.namespace.ID {
		return nil
	}
	delete(s.objects, ref.ID)
	return nil
}

func (s *Space) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Space) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Calls returns how many times method has been invoked. Java array creation
// is counted as "newArray".
func (s *Space) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Live returns the number of objects holding a handle, the namespace and API
// roots included.
func (s *Space) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// JavaArray returns the payload of a Java array created with NewArray and its
// class, e.g. "int[]" or "double[][]".
func (s *Space) JavaArray(ref stallone.Ref) (stallone.Value, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[ref.ID]
	if !ok {
		return stallone.Value{}, "", false
	}
	v, ok := obj.value.(stallone.Value)
	return v, obj.class, ok
}

// ListItems returns the elements of a java.util.ArrayList.
func (s *Space) ListItems(ref stallone.Ref) ([]stallone.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[ref.ID]
	if !ok {
		return nil, false
	}
	l, ok := obj.value.(*javaList)
	if !ok {
		return nil, false
	}
	return append([]stallone.Value(nil), l.items...), true
}

// AddDoubleArray registers a Stallone double array with an explicit layout.
// Use OrderSparse to get an array ToNative must refuse.
func (s *Space) AddDoubleArray(data []float64, rows, cols, order int) stallone.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newDoubles(data, rows, cols, order).Ref
}

// AddIntArray registers a Stallone integer array.
func (s *Space) AddIntArray(data []int32, rows, cols int) stallone.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newInts(data, rows, cols).Ref
}

// AddObject registers an opaque object of the given class.
func (s *Space) AddObject(class string, interfaces ...string) stallone.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(class, interfaces, nil)
}

// Launcher returns a stallone.Launcher that records its arguments and hands
// out this space.
func (s *Space) Launcher() stallone.Launcher {
	return func(ctx context.Context, javaPath string, args []string) (stallone.ObjectSpace, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.launches++
		s.javaPath = javaPath
		s.launchArgs = append([]string(nil), args...)
		return s, nil
	}
}

// Launches returns how many times the launcher ran, and the java path and
// arguments of the last run.
func (s *Space) Launches() (int, string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launches, s.javaPath, append([]string(nil), s.launchArgs...)
}
