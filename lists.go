package stallone

import (
	"context"
	"math"

	"go.uber.org/zap"
)

// ListToForeignArray converts a flat list into a Java int[], double[],
// String[] or Object[]. The element kind is inferred from every element;
// a list mixing kinds fails with KindTypeMismatch, and so does an empty list
// since nothing can be inferred from it (use ListToForeignArrayOf).
func (s *Session) ListToForeignArray(ctx context.Context, list []any) (*ForeignObject, error) {
	kind, err := inferKind(list)
	if err != nil {
		return nil, err
	}
	return s.ListToForeignArrayOf(ctx, kind, list)
}

// ListToForeignArrayOf converts a flat list into a Java array of an explicit
// element kind. Integers are accepted for double arrays.
func (s *Session) ListToForeignArrayOf(ctx context.Context, kind ElementKind, list []any) (*ForeignObject, error) {
	payload, err := listPayload(kind, list)
	if err != nil {
		return nil, err
	}
	ref, err := s.space.NewArray(ctx, kind, payload)
	if err != nil {
		return nil, err
	}
	return s.Object(ref), nil
}

// List2DToForeignArray converts a list of lists into a two-dimensional Java
// array. Every outer element must itself be a []any, otherwise the call fails
// with KindNotAList; an empty outer list fails the same way.
func (s *Session) List2DToForeignArray(ctx context.Context, list []any) (*ForeignObject, error) {
	rows, err := asRows(list)
	if err != nil {
		return nil, err
	}

	var all []any
	for _, row := range rows {
		all = append(all, row...)
	}
	kind, err := inferKind(all)
	if err != nil {
		return nil, err
	}

	items := make([]Value, len(rows))
	for i, row := range rows {
		if items[i], err = listPayload(kind, row); err != nil {
			return nil, err
		}
	}
	ref, err := s.space.NewArray(ctx, kind, ItemsValue(items))
	if err != nil {
		return nil, err
	}
	return s.Object(ref), nil
}

// ListToForeignCollection copies a flat list into a new java.util.ArrayList,
// for callers that need a mutable collection on the foreign side.
func (s *Session) ListToForeignCollection(ctx context.Context, list []any) (*ForeignObject, error) {
	if list == nil {
		return nil, newError(PhaseList, KindNotAList, "not a list: nil")
	}
	vals := make([]Value, len(list))
	for i, el := range list {
		v, err := ToValue(el)
		if err != nil {
			return nil, wrapError(PhaseList, KindTypeMismatch, err, "element %d", i)
		}
		vals[i] = v
	}

	ref, err := s.space.NewList(ctx, len(list))
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if _, err := s.space.Invoke(ctx, ref, "add", v); err != nil {
			s.release(ctx, ref)
			Logger().Debug("populating foreign list failed", zap.Int("index", i), zap.Error(err))
			return nil, err
		}
	}
	return s.Object(ref), nil
}

// ForeignArrayOf converts an array-like value into a Java array: a []any
// holding scalars or lists, or a one- or two-dimensional *Array.
func (s *Session) ForeignArrayOf(ctx context.Context, v any) (*ForeignObject, error) {
	switch x := v.(type) {
	case []any:
		if len(x) > 0 {
			if _, ok := x[0].([]any); ok {
				return s.List2DToForeignArray(ctx, x)
			}
		}
		return s.ListToForeignArray(ctx, x)
	case *Array:
		list, err := arrayToList(x)
		if err != nil {
			return nil, err
		}
		if x.Ndim() == 2 {
			return s.List2DToForeignArray(ctx, list)
		}
		return s.ListToForeignArray(ctx, list)
	}
	return nil, newError(PhaseList, KindTypeMismatch, "type %T is not supported for conversion to a java array", v)
}

func asRows(list []any) ([][]any, error) {
	if len(list) == 0 {
		return nil, newError(PhaseList, KindNotAList, "not a list of lists: empty")
	}
	rows := make([][]any, len(list))
	for i, el := range list {
		row, ok := el.([]any)
		if !ok {
			return nil, newError(PhaseList, KindNotAList, "not a list: element %d is %T", i, el)
		}
		rows[i] = row
	}
	return rows, nil
}

// arrayToList converts an array to a nested []any of float64 or int64.
func arrayToList(a *Array) ([]any, error) {
	if nd := a.Ndim(); nd != 1 && nd != 2 {
		return nil, newError(PhaseList, KindUnsupportedShape, "unsupported shape %v", a.shape)
	}
	var flat []any
	if a.dtype.IsFloat() {
		for _, v := range a.Float64s() {
			flat = append(flat, v)
		}
	} else if a.dtype == Bool {
		for _, v := range a.Int64s() {
			flat = append(flat, v != 0)
		}
	} else {
		for _, v := range a.Int64s() {
			flat = append(flat, v)
		}
	}
	if a.Ndim() == 1 {
		return flat, nil
	}
	r, c := a.shape[0], a.shape[1]
	out := make([]any, r)
	for i := 0; i < r; i++ {
		out[i] = flat[i*c : (i+1)*c : (i+1)*c]
	}
	return out, nil
}

func elementKindOf(x any) ElementKind {
	switch x.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return ElementInt
	case float32, float64:
		return ElementDouble
	case string:
		return ElementString
	}
	return ElementObject
}

func inferKind(list []any) (ElementKind, error) {
	if len(list) == 0 {
		return "", newError(PhaseList, KindTypeMismatch, "cannot infer the element kind of an empty list")
	}
	kind := elementKindOf(list[0])
	for i, el := range list[1:] {
		if k := elementKindOf(el); k != kind {
			return "", newError(PhaseList, KindTypeMismatch, "element %d is %s, element 0 is %s", i+1, k, kind)
		}
	}
	return kind, nil
}

func listPayload(kind ElementKind, list []any) (Value, error) {
	switch kind {
	case ElementInt:
		out := make([]int32, len(list))
		for i, el := range list {
			v, err := ToValue(el)
			if err != nil || v.Kind != ValueInt {
				return Value{}, newError(PhaseList, KindTypeMismatch, "element %d is %T, want an integer", i, el)
			}
			if v.Int > math.MaxInt32 || v.Int < math.MinInt32 {
				return Value{}, newError(PhaseList, KindTypeMismatch, "element %d (%d) overflows a java int", i, v.Int)
			}
			out[i] = int32(v.Int)
		}
		return IntsValue(out), nil
	case ElementDouble:
		out := make([]float64, len(list))
		for i, el := range list {
			v, err := ToValue(el)
			if err != nil {
				return Value{}, wrapError(PhaseList, KindTypeMismatch, err, "element %d", i)
			}
			if out[i], err = v.AsDouble(); err != nil {
				return Value{}, wrapError(PhaseList, KindTypeMismatch, err, "element %d", i)
			}
		}
		return DoublesValue(out), nil
	case ElementString:
		out := make([]string, len(list))
		for i, el := range list {
			str, ok := el.(string)
			if !ok {
				return Value{}, newError(PhaseList, KindTypeMismatch, "element %d is %T, want a string", i, el)
			}
			out[i] = str
		}
		return StringsValue(out), nil
	case ElementObject:
		out := make([]Value, len(list))
		for i, el := range list {
			v, err := ToValue(el)
			if err != nil {
				return Value{}, wrapError(PhaseList, KindTypeMismatch, err, "element %d", i)
			}
			out[i] = v
		}
		return ItemsValue(out), nil
	}
	return Value{}, newError(PhaseList, KindInvalidInput, "unknown element kind %q", kind)
}
