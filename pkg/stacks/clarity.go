package stacks

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Clarity wire type tags.
const (
	clarityTagInt               byte = 0x00
	clarityTagUInt              byte = 0x01
	clarityTagBuffer            byte = 0x02
	clarityTagBoolTrue          byte = 0x03
	clarityTagBoolFalse         byte = 0x04
	clarityTagStandardPrincipal byte = 0x05
	clarityTagContractPrincipal byte = 0x06
	clarityTagResponseOk        byte = 0x07
	clarityTagResponseErr       byte = 0x08
	clarityTagOptionalNone      byte = 0x09
	clarityTagOptionalSome      byte = 0x0a
	clarityTagList              byte = 0x0b
	clarityTagTuple             byte = 0x0c
	clarityTagStringASCII       byte = 0x0d
	clarityTagStringUTF8        byte = 0x0e
)

// ClarityValue is a decoded Clarity value in a JSON-friendly shape. Value
// holds a string for ints, "0x"-hex for buffers, nested values for
// containers, and nil for none.
type ClarityValue struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
	Repr  string `json:"repr"`
}

// DecodeClarityHex decodes a hex-encoded serialized Clarity value. A single
// value must consume the whole input.
func DecodeClarityHex(s string) (*ClarityValue, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return DecodeClarityValue(raw)
}

// DecodeClarityValue decodes one serialized Clarity value from data.
func DecodeClarityValue(data []byte) (*ClarityValue, error) {
	r := newByteReader(data)
	cv, err := decodeCV(r)
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after clarity value", r.remaining())
	}
	return cv, nil
}

func decodeCV(r *byteReader) (*ClarityValue, error) {
	tag, err := r.u8()
	if err != nil {
		return nil, err
	}

	switch tag {
	case clarityTagInt, clarityTagUInt:
		raw, err := r.read(16)
		if err != nil {
			return nil, err
		}
		n := new(big.Int).SetBytes(raw)
		if tag == clarityTagInt {
			// two's complement 128-bit
			if raw[0]&0x80 != 0 {
				n.Sub(n, new(big.Int).Lsh(big.NewInt(1), 128))
			}
			return &ClarityValue{Type: "int", Value: n.String(), Repr: n.String()}, nil
		}
		return &ClarityValue{Type: "uint", Value: n.String(), Repr: "u" + n.String()}, nil

	case clarityTagBuffer:
		length, err := r.u32()
		if err != nil {
			return nil, err
		}
		raw, err := r.read(int(length))
		if err != nil {
			return nil, err
		}
		hexed := "0x" + hex.EncodeToString(raw)
		return &ClarityValue{Type: "buffer", Value: hexed, Repr: hexed}, nil

	case clarityTagBoolTrue:
		return &ClarityValue{Type: "bool", Value: true, Repr: "true"}, nil
	case clarityTagBoolFalse:
		return &ClarityValue{Type: "bool", Value: false, Repr: "false"}, nil

	case clarityTagStandardPrincipal:
		addr, err := decodePrincipal(r)
		if err != nil {
			return nil, err
		}
		return &ClarityValue{Type: "principal", Value: addr, Repr: "'" + addr}, nil

	case clarityTagContractPrincipal:
		addr, err := decodePrincipal(r)
		if err != nil {
			return nil, err
		}
		name, err := r.lpString()
		if err != nil {
			return nil, err
		}
		full := addr + "." + name
		return &ClarityValue{Type: "principal", Value: full, Repr: "'" + full}, nil

	case clarityTagResponseOk, clarityTagResponseErr:
		inner, err := decodeCV(r)
		if err != nil {
			return nil, err
		}
		if tag == clarityTagResponseOk {
			return &ClarityValue{Type: "responseOk", Value: inner, Repr: "(ok " + inner.Repr + ")"}, nil
		}
		return &ClarityValue{Type: "responseErr", Value: inner, Repr: "(err " + inner.Repr + ")"}, nil

	case clarityTagOptionalNone:
		return &ClarityValue{Type: "none", Value: nil, Repr: "none"}, nil

	case clarityTagOptionalSome:
		inner, err := decodeCV(r)
		if err != nil {
			return nil, err
		}
		return &ClarityValue{Type: "some", Value: inner, Repr: "(some " + inner.Repr + ")"}, nil

	case clarityTagList:
		count, err := r.u32()
		if err != nil {
			return nil, err
		}
		if int(count) > r.remaining() {
			return nil, errors.New("clarity list length exceeds input")
		}
		items := make([]*ClarityValue, 0, count)
		reprs := make([]string, 0, count)
		for i := uint32(0); i < count; i++ {
			item, err := decodeCV(r)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			reprs = append(reprs, item.Repr)
		}
		return &ClarityValue{Type: "list", Value: items, Repr: "(list " + strings.Join(reprs, " ") + ")"}, nil

	case clarityTagTuple:
		count, err := r.u32()
		if err != nil {
			return nil, err
		}
		if int(count) > r.remaining() {
			return nil, errors.New("clarity tuple length exceeds input")
		}
		entries := make(map[string]*ClarityValue, count)
		reprs := make([]string, 0, count)
		for i := uint32(0); i < count; i++ {
			name, err := r.lpString()
			if err != nil {
				return nil, err
			}
			val, err := decodeCV(r)
			if err != nil {
				return nil, err
			}
			entries[name] = val
			reprs = append(reprs, "("+name+" "+val.Repr+")")
		}
		return &ClarityValue{Type: "tuple", Value: entries, Repr: "(tuple " + strings.Join(reprs, " ") + ")"}, nil

	case clarityTagStringASCII:
		length, err := r.u32()
		if err != nil {
			return nil, err
		}
		raw, err := r.read(int(length))
		if err != nil {
			return nil, err
		}
		return &ClarityValue{Type: "string-ascii", Value: string(raw), Repr: `"` + string(raw) + `"`}, nil

	case clarityTagStringUTF8:
		length, err := r.u32()
		if err != nil {
			return nil, err
		}
		raw, err := r.read(int(length))
		if err != nil {
			return nil, err
		}
		return &ClarityValue{Type: "string-utf8", Value: string(raw), Repr: `u"` + string(raw) + `"`}, nil
	}

	return nil, fmt.Errorf("unknown clarity type tag 0x%02x", tag)
}

func decodePrincipal(r *byteReader) (string, error) {
	version, err := r.u8()
	if err != nil {
		return "", err
	}
	hash, err := r.read(20)
	if err != nil {
		return "", err
	}
	return EncodeAddress(version, hash)
}

// --- minimal serializers (SIP-018 structured data) ---

func serializeUIntCV(v uint64) []byte {
	out := make([]byte, 17)
	out[0] = clarityTagUInt
	binary.BigEndian.PutUint64(out[9:], v)
	return out
}

func serializeStringASCIICV(s string) []byte {
	out := make([]byte, 0, 5+len(s))
	out = append(out, clarityTagStringASCII)
	out = binary.BigEndian.AppendUint32(out, uint32(len(s)))
	return append(out, s...)
}

// serializeTupleCV writes entries with keys in lexicographic order, matching
// the canonical tuple serialization.
func serializeTupleCV(entries map[string][]byte) []byte {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []byte{clarityTagTuple}
	out = binary.BigEndian.AppendUint32(out, uint32(len(keys)))
	for _, k := range keys {
		out = append(out, byte(len(k)))
		out = append(out, k...)
		out = append(out, entries[k]...)
	}
	return out
}

// --- byte reader ---

type byteReader struct {
	buf []byte
	off int
}

func newByteReader(buf []byte) *byteReader {
	return &byteReader{buf: buf}
}

func (r *byteReader) remaining() int {
	return len(r.buf) - r.off
}

func (r *byteReader) read(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, errors.New("unexpected end of input")
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *byteReader) u8() (byte, error) {
	b, err := r.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) u32() (uint32, error) {
	b, err := r.read(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *byteReader) u64() (uint64, error) {
	b, err := r.read(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// lpString reads a 1-byte length-prefixed ascii name.
func (r *byteReader) lpString() (string, error) {
	n, err := r.u8()
	if err != nil {
		return "", err
	}
	raw, err := r.read(int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
