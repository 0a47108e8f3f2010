// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package codec

import (
	"errors"
	"fmt"
	"log"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/opentofu/lazytree/internal/store"
	"github.com/opentofu/lazytree/value"
)

// Mapping is a string-keyed value whose entries are produced on demand,
// such as a lazily loaded container.
type Mapping interface {
	Keys() []string
	Get(key string) (any, error)
}

// FrameCodec stores [value.Frame] values. The codec itself has no opinion
// about how a frame is laid out.
type FrameCodec interface {
	// EncodeFrame writes f under the given key of g.
	EncodeFrame(e *Encoder, g *store.Group, key string, f *value.Frame) (store.Node, error)

	// IsFrame returns true if n was written by EncodeFrame.
	IsFrame(n store.Node) bool

	// DecodeFrame reads back a group that IsFrame accepted.
	DecodeFrame(d *Decoder, g *store.Group) (*value.Frame, error)
}

// Encoder writes values into a tree file.
type Encoder struct {
	// Compression applies to numeric arrays and string lists. Scalars,
	// datetimes and structured text are never compressed.
	Compression store.Compression

	// Text is the structured-text fallback. If nil, [YAMLText] is used.
	Text TextCodec

	// Frames stores frame values. If nil, encoding a frame fails.
	Frames FrameCodec
}

func (e *Encoder) text() TextCodec {
	if e.Text == nil {
		return YAMLText{}
	}
	return e.Text
}

// Encode writes v as the child named key of g and returns the new node.
//
// Empty arrays, lists and tuples are not written at all, in which case both
// results are nil. Errors creating the node, such as [*store.ConflictError],
// are returned as-is. A value without any representation, or holding one at
// any depth, produces an [*EncodingError] and leaves no node behind.
func (e *Encoder) Encode(g *store.Group, key string, v any) (store.Node, error) {
	return e.encode(g, key, v, false)
}

// EncodeMapping writes each entry of the mapping m as a child of g, in the
// mapping's iteration order. It stops at the first error, leaving the
// entries written so far in place.
func (e *Encoder) EncodeMapping(g *store.Group, m any) error {
	entries, err := Entries(m)
	if err != nil {
		return &EncodingError{Path: g.Path(), Type: fmt.Sprintf("%T", m), Err: err}
	}
	return e.EncodeEntries(g, entries)
}

// EncodeEntries writes each of the given entries as a child of g, stopping
// at the first error.
func (e *Encoder) EncodeEntries(g *store.Group, entries []Entry) error {
	for _, entry := range entries {
		if _, err := e.Encode(g, entry.Key, entry.Value); err != nil {
			return err
		}
	}
	return nil
}

// EncodeColumn writes a one-dimensional column of numbers, strings or
// datetimes. Unlike [Encoder.Encode] it writes empty columns too.
func (e *Encoder) EncodeColumn(g *store.Group, key string, data any) (store.Node, error) {
	if !store.ValidName(key) {
		return nil, encodingError(g, key, data, fmt.Errorf("%q is not a valid node name", key))
	}
	switch data := data.(type) {
	case []string:
		return e.writeStrings(g, key, data, []int{len(data)})
	case []time.Time:
		return e.writeTimes(g, key, data, []int{len(data)})
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() == reflect.Slice && value.IsNumericKind(rv.Type().Elem().Kind()) {
		return e.writeNumeric(g, key, data, nil, e.Compression)
	}
	return nil, encodingError(g, key, data, errors.New("columns must be slices of numbers, strings or datetimes"))
}

func (e *Encoder) encode(g *store.Group, key string, v any, inComposite bool) (store.Node, error) {
	if !store.ValidName(key) {
		return nil, encodingError(g, key, v, fmt.Errorf("%q is not a valid node name", key))
	}

	switch v := v.(type) {
	case nil:
		return e.writeText(g, key, nil)
	case *value.Frame:
		if v == nil {
			return e.writeText(g, key, nil)
		}
		if e.Frames == nil {
			return nil, encodingError(g, key, v, errors.New("no frame codec is configured"))
		}
		return e.Frames.EncodeFrame(e, g, key, v)
	case *value.Array:
		if v.Len() == 0 {
			return nil, nil
		}
		if v.IsStrings() {
			return e.writeStrings(g, key, v.Data.([]string), v.Shape)
		}
		return e.writeNumeric(g, key, v.Data, v.Shape, e.Compression)
	case value.Tuple:
		return e.encodeSequence(g, key, v, TagTuple, inComposite)
	case value.List:
		return e.encodeSequence(g, key, v, TagList, inComposite)
	case []any:
		return e.encodeSequence(g, key, v, TagList, inComposite)
	case time.Time:
		return e.writeTimes(g, key, []time.Time{v}, nil)
	case []time.Time:
		if len(v) == 0 {
			return nil, nil
		}
		return e.writeTimes(g, key, v, []int{len(v)})
	case string:
		return createLeaf(g, key, store.NewString(v), store.NoCompression)
	case []byte:
		return createLeaf(g, key, store.NewBytes(v), store.NoCompression)
	case []string:
		if len(v) == 0 {
			return nil, nil
		}
		return e.writeStrings(g, key, v, nil)
	case Mapping:
		return e.encodeMapping(g, key, v)
	}

	rv := reflect.ValueOf(v)
	switch kind := rv.Kind(); {
	case value.IsNumericKind(kind):
		return e.writeNumeric(g, key, v, nil, store.NoCompression)
	case (kind == reflect.Slice || kind == reflect.Array) && value.IsNumericKind(rv.Type().Elem().Kind()):
		if rv.Len() == 0 {
			return nil, nil
		}
		return e.writeNumeric(g, key, v, nil, e.Compression)
	case kind == reflect.Map:
		return e.encodeMapping(g, key, v)
	case kind == reflect.Slice || kind == reflect.Array:
		elems := make([]any, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
		return e.encodeSequence(g, key, elems, TagList, inComposite)
	}
	return e.writeText(g, key, v)
}

// encodeSequence writes a tuple or a list. Outside of composites, a
// sequence of datetimes becomes a datetime leaf, and a list of numbers or of
// strings becomes an array leaf. Everything else becomes a group with one
// child per element.
func (e *Encoder) encodeSequence(g *store.Group, key string, elems []any, tag Tag, inComposite bool) (store.Node, error) {
	if len(elems) == 0 {
		return nil, nil
	}
	if !inComposite {
		if times, ok := allOf[time.Time](elems); ok {
			return e.writeTimes(g, key, times, []int{len(times)})
		}
		if tag == TagList {
			if data, ok := numericList(elems); ok {
				return e.writeNumeric(g, key, data, nil, e.Compression)
			}
			if strs, ok := allOf[string](elems); ok {
				return e.writeStrings(g, key, strs, nil)
			}
		}
	}

	grp, err := g.CreateGroup(key)
	if err != nil {
		return nil, err
	}
	if err := setTag(grp, tag); err != nil {
		return nil, discard(g, key, err)
	}
	width := len(strconv.Itoa(len(elems)))
	for i, elem := range elems {
		if _, err := e.encode(grp, elementName(width, i), elem, true); err != nil {
			return nil, discard(g, key, err)
		}
	}
	return grp, nil
}

// discard deletes the partly written group at key after err, so that a
// value that failed to encode doesn't load back as a shorter one.
func discard(g *store.Group, key string, err error) error {
	if derr := g.Delete(key); derr != nil {
		return errors.Join(err, fmt.Errorf("discarding %s: %w", store.JoinPath(g.Path(), key), derr))
	}
	return err
}

func elementName(width, i int) string {
	return fmt.Sprintf("i_%0*d", width, i)
}

func (e *Encoder) encodeMapping(g *store.Group, key string, m any) (store.Node, error) {
	entries, err := Entries(m)
	if err != nil {
		return nil, encodingError(g, key, m, err)
	}
	grp, err := g.CreateGroup(key)
	if err != nil {
		return nil, err
	}
	if err := e.EncodeEntries(grp, entries); err != nil {
		return nil, discard(g, key, err)
	}
	return grp, nil
}

func (e *Encoder) writeNumeric(g *store.Group, key string, data any, shape []int, c store.Compression) (store.Node, error) {
	ds, err := store.NewNumeric(data, shape)
	if err != nil {
		return nil, encodingError(g, key, data, err)
	}
	return createLeaf(g, key, ds, c)
}

func (e *Encoder) writeStrings(g *store.Group, key string, strs []string, shape []int) (store.Node, error) {
	elems := make([][]byte, len(strs))
	for i, s := range strs {
		elems[i] = []byte(s)
	}
	ds, err := store.NewByteStrings(elems, shape)
	if err != nil {
		return nil, encodingError(g, key, strs, err)
	}
	leaf, err := createLeaf(g, key, ds, e.Compression)
	if err != nil {
		return nil, err
	}
	return leaf, setTag(leaf, TagStringList)
}

// writeTimes writes datetimes as epoch seconds. A nil shape writes the
// first time as a scalar.
func (e *Encoder) writeTimes(g *store.Group, key string, times []time.Time, shape []int) (store.Node, error) {
	var data any
	if shape == nil {
		data = epochSeconds(times[0])
	} else {
		secs := make([]float64, len(times))
		for i, t := range times {
			secs[i] = epochSeconds(t)
		}
		data = secs
	}
	ds, err := store.NewNumeric(data, shape)
	if err != nil {
		return nil, encodingError(g, key, times, err)
	}
	leaf, err := createLeaf(g, key, ds, store.NoCompression)
	if err != nil {
		return nil, err
	}
	return leaf, setTag(leaf, TagDatetime)
}

func (e *Encoder) writeText(g *store.Group, key string, v any) (store.Node, error) {
	src, err := e.text().Marshal(v)
	if err != nil {
		return nil, encodingError(g, key, v, err)
	}
	log.Printf("[DEBUG] codec: storing %T value for %s as structured text", v, store.JoinPath(g.Path(), key))
	leaf, err := createLeaf(g, key, store.NewString(string(src)), store.NoCompression)
	if err != nil {
		return nil, err
	}
	return leaf, setTag(leaf, TagStructuredText)
}

func createLeaf(g *store.Group, key string, ds *store.Dataset, c store.Compression) (store.Node, error) {
	leaf, err := g.CreateLeaf(key, ds, c)
	if err != nil {
		return nil, err
	}
	return leaf, nil
}

func encodingError(g *store.Group, key string, v any, err error) *EncodingError {
	return &EncodingError{
		Path: store.JoinPath(g.Path(), key),
		Type: fmt.Sprintf("%T", v),
		Err:  err,
	}
}

// Entry is one key/value pair of a mapping.
type Entry struct {
	Key   string
	Value any
}

// IsMapping returns true if v is a Go map or a [Mapping].
func IsMapping(v any) bool {
	if _, ok := v.(Mapping); ok {
		return true
	}
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Map
}

// Entries returns the entries of a mapping in the order they are encoded:
// the mapping's own order for a [Mapping], and sorted by key for a Go map.
// Go map keys are converted to node names with [KeyName].
func Entries(m any) ([]Entry, error) {
	if m, ok := m.(Mapping); ok {
		keys := m.Keys()
		ret := make([]Entry, 0, len(keys))
		for _, key := range keys {
			v, err := m.Get(key)
			if err != nil {
				return nil, fmt.Errorf("reading %q: %w", key, err)
			}
			ret = append(ret, Entry{Key: key, Value: v})
		}
		return ret, nil
	}

	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("%T is not a mapping", m)
	}
	ret := make([]Entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key, err := KeyName(iter.Key())
		if err != nil {
			return nil, err
		}
		ret = append(ret, Entry{Key: key, Value: iter.Value().Interface()})
	}
	slices.SortFunc(ret, func(a, b Entry) int {
		return strings.Compare(a.Key, b.Key)
	})
	return ret, nil
}

// KeyName converts a map key to a node name. Strings are used verbatim,
// arrays and structs have their elements joined with "_", and anything else
// uses its default formatting.
//
// The conversion can't be reversed: a map keyed by [2]string decodes as a
// map keyed by the joined strings.
func KeyName(k reflect.Value) (string, error) {
	for k.Kind() == reflect.Interface {
		k = k.Elem()
	}
	if !k.IsValid() {
		return "", errors.New("nil map keys are not supported")
	}
	var name string
	switch k.Kind() {
	case reflect.String:
		name = k.String()
	case reflect.Array:
		parts := make([]string, k.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(k.Index(i))
		}
		name = strings.Join(parts, "_")
	case reflect.Struct:
		parts := make([]string, k.NumField())
		for i := range parts {
			parts[i] = fmt.Sprint(k.Field(i))
		}
		name = strings.Join(parts, "_")
	default:
		name = fmt.Sprint(k)
	}
	if !store.ValidName(name) {
		return "", fmt.Errorf("map key %q can't be used as a node name", name)
	}
	return name, nil
}

func allOf[T any](elems []any) ([]T, bool) {
	ret := make([]T, len(elems))
	for i, elem := range elems {
		v, ok := elem.(T)
		if !ok {
			return nil, false
		}
		ret[i] = v
	}
	return ret, true
}

// numericList converts a list of booleans, or of numbers, to a typed slice.
// Integers widen to int64, any float makes the whole list []float64, and
// any complex number makes it []complex128. Mixing booleans and numbers
// makes the list heterogeneous.
//
// An unsigned integer too large for int64 makes the list []uint64 if every
// element is unsigned, and []float64 otherwise.
func numericList(elems []any) (any, bool) {
	var bools, signed, unsigned, floats, complexes int
	large := false
	for _, elem := range elems {
		if elem == nil {
			return nil, false
		}
		switch reflect.TypeOf(elem).Kind() {
		case reflect.Bool:
			bools++
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			signed++
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			unsigned++
			if reflect.ValueOf(elem).Uint() > math.MaxInt64 {
				large = true
			}
		case reflect.Float32, reflect.Float64:
			floats++
		case reflect.Complex64, reflect.Complex128:
			complexes++
		default:
			return nil, false
		}
	}

	switch n := len(elems); {
	case bools == n:
		ret := make([]bool, n)
		for i, elem := range elems {
			ret[i] = reflect.ValueOf(elem).Bool()
		}
		return ret, true
	case bools > 0:
		return nil, false
	case complexes > 0:
		ret := make([]complex128, n)
		for i, elem := range elems {
			ret[i] = toComplex(reflect.ValueOf(elem))
		}
		return ret, true
	case floats > 0, large && signed > 0:
		ret := make([]float64, n)
		for i, elem := range elems {
			ret[i] = toFloat(reflect.ValueOf(elem))
		}
		return ret, true
	case large:
		ret := make([]uint64, n)
		for i, elem := range elems {
			ret[i] = reflect.ValueOf(elem).Uint()
		}
		return ret, true
	default:
		ret := make([]int64, n)
		for i, elem := range elems {
			ret[i] = toInt(reflect.ValueOf(elem))
		}
		return ret, true
	}
}

func toInt(rv reflect.Value) int64 {
	if rv.CanUint() {
		return int64(rv.Uint())
	}
	return rv.Int()
}

func toFloat(rv reflect.Value) float64 {
	switch {
	case rv.CanFloat():
		return rv.Float()
	case rv.CanUint():
		return float64(rv.Uint())
	default:
		return float64(rv.Int())
	}
}

func toComplex(rv reflect.Value) complex128 {
	if rv.CanComplex() {
		return rv.Complex()
	}
	return complex(toFloat(rv), 0)
}

func epochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
