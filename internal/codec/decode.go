// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package codec

import (
	"cmp"
	"fmt"
	"log"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/opentofu/lazytree/internal/store"
	"github.com/opentofu/lazytree/value"
)

// Decoder reads values back out of a tree file.
type Decoder struct {
	// Text is the structured-text fallback. If nil, [YAMLText] is used.
	Text TextCodec

	// Frames reads back frame groups. If nil, frame groups decode as
	// plain mappings.
	Frames FrameCodec

	// Fallback decodes string lists that aren't valid UTF-8. If nil,
	// ISO-8859-1 is used.
	Fallback encoding.Encoding
}

func (d *Decoder) text() TextCodec {
	if d.Text == nil {
		return YAMLText{}
	}
	return d.Text
}

func (d *Decoder) fallback() encoding.Encoding {
	if d.Fallback == nil {
		return charmap.ISO8859_1
	}
	return d.Fallback
}

// IsEager returns true for nodes that must be decoded as a whole rather than
// as a lazily-expanded mapping: tuples, lists and frames.
func (d *Decoder) IsEager(n store.Node) bool {
	if IsComposite(n) {
		return true
	}
	return d.Frames != nil && d.Frames.IsFrame(n)
}

// Decode reads the value stored at n, recursing into groups.
func (d *Decoder) Decode(n store.Node) (any, error) {
	tag, err := TagOf(n)
	if err != nil {
		return nil, err
	}
	switch n := n.(type) {
	case *store.Leaf:
		return d.decodeLeaf(n, tag)
	case *store.Group:
		return d.decodeGroup(n, tag)
	default:
		return nil, fmt.Errorf("unsupported node type %T", n)
	}
}

// DecodeMapping decodes every child of an untagged group.
func (d *Decoder) DecodeMapping(g *store.Group) (map[string]any, error) {
	ret := make(map[string]any, g.Len())
	for _, name := range g.Children() {
		child, err := g.Child(name)
		if err != nil {
			return nil, err
		}
		v, err := d.Decode(child)
		if err != nil {
			return nil, err
		}
		ret[name] = v
	}
	return ret, nil
}

func (d *Decoder) decodeGroup(g *store.Group, tag Tag) (any, error) {
	switch tag {
	case TagNone:
		if d.Frames != nil && d.Frames.IsFrame(g) {
			f, err := d.Frames.DecodeFrame(d, g)
			if err != nil {
				return nil, err
			}
			return f, nil
		}
		return d.DecodeMapping(g)
	case TagTuple:
		elems, err := d.decodeElements(g)
		if err != nil {
			return nil, err
		}
		return value.Tuple(elems), nil
	case TagList:
		elems, err := d.decodeElements(g)
		if err != nil {
			return nil, err
		}
		return value.List(elems), nil
	case TagDatetime, TagStructuredText, TagStringList, tagStringArray:
		return nil, &CorruptStoreError{Path: g.Path(), Tag: tag, Reason: fmt.Sprintf("%s tag on a group", tag)}
	default:
		return nil, &CorruptStoreError{Path: g.Path(), Tag: tag}
	}
}

// decodeElements decodes the children of a tuple or list group in the order
// given by their positional names.
func (d *Decoder) decodeElements(g *store.Group) ([]any, error) {
	type element struct {
		index int
		node  store.Node
	}
	names := g.Children()
	elems := make([]element, 0, len(names))
	for _, name := range names {
		digits, ok := strings.CutPrefix(name, "i_")
		index, err := strconv.Atoi(digits)
		if !ok || err != nil || index < 0 {
			return nil, &CorruptStoreError{Path: g.Path(), Reason: fmt.Sprintf("unexpected element name %q", name)}
		}
		child, err := g.Child(name)
		if err != nil {
			return nil, err
		}
		elems = append(elems, element{index, child})
	}
	slices.SortFunc(elems, func(a, b element) int {
		return cmp.Compare(a.index, b.index)
	})

	ret := make([]any, len(elems))
	for i, elem := range elems {
		v, err := d.Decode(elem.node)
		if err != nil {
			return nil, err
		}
		ret[i] = v
	}
	return ret, nil
}

func (d *Decoder) decodeLeaf(l *store.Leaf, tag Tag) (any, error) {
	switch tag {
	case TagNone, TagDatetime, TagStructuredText, TagStringList, tagStringArray:
	case TagTuple, TagList:
		return nil, &CorruptStoreError{Path: l.Path(), Tag: tag, Reason: fmt.Sprintf("%s tag on a leaf", tag)}
	default:
		return nil, &CorruptStoreError{Path: l.Path(), Tag: tag}
	}

	ds, err := l.Dataset()
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagDatetime:
		return decodeTimes(l.Path(), ds)
	case TagStructuredText:
		return d.decodeText(l.Path(), ds)
	case TagStringList:
		return d.decodeStrings(l.Path(), ds)
	case tagStringArray:
		log.Printf("[WARN] codec: %s uses the deprecated %s type tag", l.Path(), tagStringArray)
		v, err := d.decodeText(l.Path(), ds)
		if err != nil {
			return nil, err
		}
		if elems, ok := v.([]any); ok {
			if strs, ok := allOf[string](elems); ok {
				return strs, nil
			}
			if data, ok := numericList(elems); ok {
				return data, nil
			}
		}
		return v, nil
	default:
		return decodeRaw(l.Path(), ds)
	}
}

func (d *Decoder) decodeText(path string, ds *store.Dataset) (any, error) {
	if ds.DType != store.DTypeString && ds.DType != store.DTypeBytes {
		return nil, &CorruptStoreError{Path: path, Tag: TagStructuredText, Reason: fmt.Sprintf("structured text stored as %s", ds.DType)}
	}
	v, err := d.text().Unmarshal(ds.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding structured text in %s: %w", path, err)
	}
	return v, nil
}

// decodeStrings decodes a string list, falling back to the secondary
// charset when any element isn't valid UTF-8. If even that fails the
// problem is logged and the value decodes as nil.
func (d *Decoder) decodeStrings(path string, ds *store.Dataset) (any, error) {
	if ds.DType != store.DTypeByteStrings {
		return nil, &CorruptStoreError{Path: path, Tag: TagStringList, Reason: fmt.Sprintf("string list stored as %s", ds.DType)}
	}
	elems, err := ds.ByteStrings()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	strs := make([]string, len(elems))
	if slices.ContainsFunc(elems, func(b []byte) bool { return !utf8.Valid(b) }) {
		log.Printf("[DEBUG] codec: %s is not valid UTF-8; using fallback charset", path)
		dec := d.fallback().NewDecoder()
		for i, elem := range elems {
			b, err := dec.Bytes(elem)
			if err != nil {
				log.Printf("[ERROR] codec: can't decode strings in %s: %s", path, err)
				return nil, nil
			}
			strs[i] = string(b)
		}
	} else {
		for i, elem := range elems {
			strs[i] = string(elem)
		}
	}

	if len(ds.Shape) > 1 {
		return &value.Array{Shape: slices.Clone(ds.Shape), Data: strs}, nil
	}
	return strs, nil
}

func decodeRaw(path string, ds *store.Dataset) (any, error) {
	switch ds.DType {
	case store.DTypeString:
		if !utf8.Valid(ds.Data) {
			log.Printf("[WARN] codec: %s is not valid UTF-8; returning raw bytes", path)
			return ds.Data, nil
		}
		return string(ds.Data), nil
	case store.DTypeBytes:
		return ds.Data, nil
	case store.DTypeByteStrings:
		elems, err := ds.ByteStrings()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return elems, nil
	default:
		return decodeNumeric(path, ds)
	}
}

func decodeNumeric(path string, ds *store.Dataset) (any, error) {
	data, err := ds.Numeric()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	switch len(ds.Shape) {
	case 0:
		return reflect.ValueOf(data).Index(0).Interface(), nil
	case 1:
		return data, nil
	default:
		return &value.Array{Shape: slices.Clone(ds.Shape), Data: data}, nil
	}
}

func decodeTimes(path string, ds *store.Dataset) (any, error) {
	data, err := ds.Numeric()
	if err != nil {
		return nil, &CorruptStoreError{Path: path, Tag: TagDatetime, Reason: err.Error()}
	}
	rv := reflect.ValueOf(data)
	if rv.Type().Elem().Kind() == reflect.Bool || rv.Type().Elem().Kind() == reflect.Complex64 || rv.Type().Elem().Kind() == reflect.Complex128 {
		return nil, &CorruptStoreError{Path: path, Tag: TagDatetime, Reason: fmt.Sprintf("datetime stored as %s", ds.DType)}
	}
	if len(ds.Shape) == 0 {
		return fromEpochSeconds(toFloat(rv.Index(0))), nil
	}
	ret := make([]time.Time, rv.Len())
	for i := range ret {
		ret[i] = fromEpochSeconds(toFloat(rv.Index(i)))
	}
	return ret, nil
}

// fromEpochSeconds returns the UTC time for the given epoch seconds,
// rounded to the microsecond.
func fromEpochSeconds(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e6))*1e3).UTC()
}
