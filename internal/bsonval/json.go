package bsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// wireValue mirrors the tagged union on the wire: a Kind discriminant plus
// one populated payload field. This is the "structured record" the spec
// says front ends hand the core instead of a raw binary document encoding.
type wireValue struct {
	K string          `json:"k"`
	B bool            `json:"b,omitempty"`
	I int64           `json:"i,omitempty"`
	F float64         `json:"f,omitempty"`
	S string          `json:"s,omitempty"`
	T time.Time       `json:"t,omitempty"`
	A []wireValue     `json:"a,omitempty"`
	D json.RawMessage `json:"d,omitempty"`
}

// MarshalDocument encodes a Document to the on-disk document-row bytes.
func MarshalDocument(d Document) ([]byte, error) {
	m := make(map[string]wireValue, d.Len())
	for _, f := range d.Fields() {
		v, _ := d.Get(f)
		wv, err := toWire(v)
		if err != nil {
			return nil, err
		}
		m[f] = wv
	}
	// Preserve field order using a parallel order slice, since encoding/json
	// map marshaling does not guarantee it.
	return json.Marshal(struct {
		Order  []string             `json:"$order"`
		Fields map[string]wireValue `json:"$fields"`
	}{Order: d.Fields(), Fields: m})
}

// UnmarshalDocument decodes document-row bytes back to a Document.
func UnmarshalDocument(b []byte) (Document, error) {
	var env struct {
		Order  []string             `json:"$order"`
		Fields map[string]wireValue `json:"$fields"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return Document{}, fmt.Errorf("unmarshal document: %w", err)
	}
	out := NewDocument()
	for _, f := range env.Order {
		wv, ok := env.Fields[f]
		if !ok {
			continue
		}
		v, err := fromWire(wv)
		if err != nil {
			return Document{}, err
		}
		out.Set(f, v)
	}
	return out, nil
}

func toWire(v Value) (wireValue, error) {
	switch v.Kind {
	case KindNull:
		return wireValue{K: "null"}, nil
	case KindBool:
		return wireValue{K: "bool", B: v.Bool}, nil
	case KindInt64:
		return wireValue{K: "int64", I: v.I64}, nil
	case KindFloat64:
		return wireValue{K: "float64", F: v.F64}, nil
	case KindString:
		return wireValue{K: "string", S: v.Str}, nil
	case KindDate:
		return wireValue{K: "date", T: v.Time}, nil
	case KindArray:
		arr := make([]wireValue, len(v.Arr))
		for i, e := range v.Arr {
			wv, err := toWire(e)
			if err != nil {
				return wireValue{}, err
			}
			arr[i] = wv
		}
		return wireValue{K: "array", A: arr}, nil
	case KindDocument:
		raw, err := MarshalDocument(v.Doc)
		if err != nil {
			return wireValue{}, err
		}
		return wireValue{K: "document", D: raw}, nil
	default:
		return wireValue{}, fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

func fromWire(wv wireValue) (Value, error) {
	switch wv.K {
	case "null":
		return Value{Kind: KindNull}, nil
	case "bool":
		return Value{Kind: KindBool, Bool: wv.B}, nil
	case "int64":
		return Value{Kind: KindInt64, I64: wv.I}, nil
	case "float64":
		return Value{Kind: KindFloat64, F64: wv.F}, nil
	case "string":
		return Value{Kind: KindString, Str: wv.S}, nil
	case "date":
		return Value{Kind: KindDate, Time: wv.T}, nil
	case "array":
		arr := make([]Value, len(wv.A))
		for i, e := range wv.A {
			v, err := fromWire(e)
			if err != nil {
				return Value{}, err
			}
			arr[i] = v
		}
		return Value{Kind: KindArray, Arr: arr}, nil
	case "document":
		if bytes.Equal(wv.D, nil) {
			return Value{Kind: KindDocument, Doc: NewDocument()}, nil
		}
		d, err := UnmarshalDocument(wv.D)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindDocument, Doc: d}, nil
	default:
		return Value{}, fmt.Errorf("unknown wire value kind %q", wv.K)
	}
}

// EncodedSize returns the size, in bytes, of the document's on-disk
// encoding — used by the store to enforce DocumentTooLarge (spec §4.4).
func EncodedSize(d Document) (int, error) {
	b, err := MarshalDocument(d)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}
