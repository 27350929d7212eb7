// Package keyenc implements spec §4.1: sort-order-preserving encoding of
// values and the three disjoint keyspaces (document rows, index rows,
// collection metadata rows) the rest of the core reads and writes through.
package keyenc

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/ridgedb/ridgedb/internal/bsonval"
)

// US is the Unit Separator byte used to delimit the encoded value from the
// document id inside an index key. Validated field names cannot contain
// it, and the null, boolean, number and date encodings never do; string
// values are embedded raw and may contain it, which is why
// DecodeIndexKey splits on the last US in the key.
const US = 0x1F

// typeTag orders values across types, per spec §4.1.
const (
	tagNull   = '0'
	tagBool   = '1'
	tagNumber = '2'
	tagString = '3'
	tagDate   = '4'
)

// DocKey builds the document-row key doc:<collection>:<id>.
func DocKey(collection, id string) []byte {
	return []byte(fmt.Sprintf("doc:%s:%s", collection, id))
}

// DocPrefix builds the doc:<collection>: prefix used for collection scans.
func DocPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("doc:%s:", collection))
}

// DocPrefixEnd builds the exclusive upper bound for a doc:<collection>:
// range scan, used when resuming a chunked scan past a known last key.
func DocPrefixEnd(collection string) []byte {
	return append(DocPrefix(collection), 0xFF)
}

// MetaKey builds the collection metadata key meta:collection:<name>.
func MetaKey(collection string) []byte {
	return []byte(fmt.Sprintf("meta:collection:%s", collection))
}

// IndexPrefix builds idx:<collection>:<field>: — the stem every index key
// for that field starts with.
func IndexPrefix(collection, field string) []byte {
	return []byte(fmt.Sprintf("idx:%s:%s:", collection, field))
}

// IndexCollectionPrefix builds idx:<collection>: for dropping every index
// of a collection (all fields) in one scan.
func IndexCollectionPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("idx:%s:", collection))
}

// IndexKey builds the full index row key
// idx:<collection>:<field>:<encodedValue><US><id>.
func IndexKey(collection, field string, v bsonval.Value, id string) ([]byte, error) {
	enc, err := EncodeValue(v)
	if err != nil {
		return nil, err
	}
	prefix := IndexPrefix(collection, field)
	out := make([]byte, 0, len(prefix)+len(enc)+1+len(id))
	out = append(out, prefix...)
	out = append(out, enc...)
	out = append(out, US)
	out = append(out, id...)
	return out, nil
}

// DecodeIndexKey splits an index key into its encoded value and document
// id, per spec §4.2 "Index key decoding": find the third ':' from the
// left, then split the tail on the last 0x1F. Returns ok=false if the key
// does not have the expected shape.
func DecodeIndexKey(key []byte) (encodedValue []byte, id string, ok bool) {
	s := string(key)
	idx := nthColon(s, 3)
	if idx < 0 {
		return nil, "", false
	}
	tail := s[idx+1:]
	sep := strings.LastIndexByte(tail, US)
	if sep < 0 {
		return nil, "", false
	}
	return []byte(tail[:sep]), tail[sep+1:], true
}

func nthColon(s string, n int) int {
	count := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			count++
			if count == n {
				return i
			}
		}
	}
	return -1
}

// MaxIndexStringLen is the cap on string values accepted into an index key
// (spec §4.1).
const MaxIndexStringLen = 1024

// EncodeValue renders v as a sort-preserving byte string per spec §4.1.
func EncodeValue(v bsonval.Value) ([]byte, error) {
	switch v.Kind {
	case bsonval.KindNull:
		return []byte{tagNull, ':'}, nil
	case bsonval.KindBool:
		if v.Bool {
			return []byte{tagBool, ':', '1'}, nil
		}
		return []byte{tagBool, ':', '0'}, nil
	case bsonval.KindInt64:
		return encodeNumber(float64(v.I64)), nil
	case bsonval.KindFloat64:
		return encodeNumber(v.F64), nil
	case bsonval.KindString:
		if len(v.Str) > MaxIndexStringLen {
			return nil, fmt.Errorf("string value exceeds index length cap of %d bytes", MaxIndexStringLen)
		}
		out := make([]byte, 0, 2+len(v.Str))
		out = append(out, tagString, ':')
		out = append(out, v.Str...)
		return out, nil
	case bsonval.KindDate:
		ms := v.Time.UnixMilli()
		if ms < 0 {
			return nil, fmt.Errorf("dates before 1970 are not supported for indexing")
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(ms))
		out := make([]byte, 0, 2+16)
		out = append(out, tagDate, ':')
		out = append(out, []byte(hex.EncodeToString(buf[:]))...)
		return out, nil
	default:
		return nil, fmt.Errorf("value of kind %d is not indexable", v.Kind)
	}
}

// encodeNumber implements the IEEE-754 order-preserving transform from
// spec §4.1. Finite doubles flip the sign bit (non-negative) or all bits
// (negative), then hex-encode big-endian, so the encoded finite range
// always starts with a byte in '0'-'9'/'a'-'f' (0x30-0x39, 0x61-0x66).
// -Inf, +Inf and NaN use single sentinel bytes outside that alphabet so
// -Inf < every finite < +Inf < NaN: 0x00 sorts before every hex digit,
// 0xFE and 0xFF sort after all of them. -0.0 is treated identically to
// +0.0.
func encodeNumber(f float64) []byte {
	if math.IsNaN(f) {
		return []byte{tagNumber, ':', 0xFF}
	}
	if math.IsInf(f, 1) {
		return []byte{tagNumber, ':', 0xFE}
	}
	if math.IsInf(f, -1) {
		return []byte{tagNumber, ':', 0x00}
	}
	if f == 0 {
		f = 0 // normalize -0.0 to +0.0
	}
	bits := math.Float64bits(f)
	if f >= 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bits)
	out := make([]byte, 0, 2+16)
	out = append(out, tagNumber, ':')
	out = append(out, []byte(hex.EncodeToString(buf[:]))...)
	return out
}

// Range is an inclusive-start, exclusive-end key range.
type Range struct {
	Start []byte
	End   []byte
}

// Op identifies a comparison operator used to build an index range.
type Op int

const (
	OpEq Op = iota
	OpGt
	OpGte
	OpLt
	OpLte
)

// IndexRange computes the [start, end) bracket for an index scan over
// collection/field given one operator and its operand, per spec §4.1.
// Open bounds (no lower or no upper operator supplied) default to the
// whole-prefix bound.
func IndexRange(collection, field string, ops map[Op]bsonval.Value) (Range, error) {
	p := IndexPrefix(collection, field)

	start := append([]byte{}, p...)
	end := append(append([]byte{}, p...), 0xFF)

	if v, ok := ops[OpEq]; ok {
		enc, err := EncodeValue(v)
		if err != nil {
			return Range{}, err
		}
		s := concat(p, enc, []byte{US})
		e := concat(p, enc, []byte{US, 0xFF})
		return Range{Start: s, End: e}, nil
	}

	if v, ok := ops[OpGt]; ok {
		enc, err := EncodeValue(v)
		if err != nil {
			return Range{}, err
		}
		start = concat(p, enc, []byte{US, 0xFF})
	} else if v, ok := ops[OpGte]; ok {
		enc, err := EncodeValue(v)
		if err != nil {
			return Range{}, err
		}
		start = concat(p, enc, []byte{US})
	}

	if v, ok := ops[OpLt]; ok {
		enc, err := EncodeValue(v)
		if err != nil {
			return Range{}, err
		}
		end = concat(p, enc, []byte{US})
	} else if v, ok := ops[OpLte]; ok {
		enc, err := EncodeValue(v)
		if err != nil {
			return Range{}, err
		}
		end = concat(p, enc, []byte{US, 0xFF})
	}

	return Range{Start: start, End: end}, nil
}

func concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
