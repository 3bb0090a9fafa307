// Package dmap encodes and decodes DMAP tagged data, the body format of
// DAAP responses.
//
// Every element is a four character tag, a big-endian uint32 length and the
// payload. Containers nest further elements in their payload.
package dmap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const ContentType = "application/x-dmap-tagged"

var ErrMalformed = errors.New("malformed dmap data")

// Node is one element to encode. The payload type follows the Go type of
// Value: uint8/int8/bool are one byte, uint16/int16 two, uint32/int32/int
// four, uint64/int64 eight, string is raw UTF-8, []Node is a container.
type Node struct {
	Tag   string
	Value any
}

// Version is the DMAP version payload (major.minor.patch).
type Version struct {
	Major uint16
	Minor uint8
	Patch uint8
}

// Container is shorthand for a container node.
func Container(tag string, children ...Node) Node {
	return Node{Tag: tag, Value: children}
}

func Marshal(n Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, n Node) error {
	if len(n.Tag) != 4 {
		return fmt.Errorf("dmap: tag %q must be 4 bytes", n.Tag)
	}

	var payload []byte
	switch v := n.Value.(type) {
	case []Node:
		var inner bytes.Buffer
		for _, child := range v {
			if err := encode(&inner, child); err != nil {
				return err
			}
		}
		payload = inner.Bytes()
	case string:
		payload = []byte(v)
	case bool:
		if v {
			payload = []byte{1}
		} else {
			payload = []byte{0}
		}
	case uint8:
		payload = []byte{v}
	case int8:
		payload = []byte{byte(v)}
	case uint16:
		payload = binary.BigEndian.AppendUint16(nil, v)
	case int16:
		payload = binary.BigEndian.AppendUint16(nil, uint16(v))
	case uint32:
		payload = binary.BigEndian.AppendUint32(nil, v)
	case int32:
		payload = binary.BigEndian.AppendUint32(nil, uint32(v))
	case int:
		payload = binary.BigEndian.AppendUint32(nil, uint32(v))
	case uint64:
		payload = binary.BigEndian.AppendUint64(nil, v)
	case int64:
		payload = binary.BigEndian.AppendUint64(nil, uint64(v))
	case Version:
		payload = binary.BigEndian.AppendUint16(nil, v.Major)
		payload = append(payload, v.Minor, v.Patch)
	case time.Time:
		payload = binary.BigEndian.AppendUint32(nil, uint32(v.Unix()))
	default:
		return fmt.Errorf("dmap: unsupported value %T for tag %s", n.Value, n.Tag)
	}

	buf.WriteString(n.Tag)
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(payload)))
	buf.Write(size[:])
	buf.Write(payload)
	return nil
}

// Element is a decoded element. The decoder does not know tag types, so
// callers interpret Data with the helpers below.
type Element struct {
	Tag  string
	Data []byte
}

// Decode splits b into consecutive elements.
func Decode(b []byte) ([]Element, error) {
	var out []Element
	for len(b) > 0 {
		if len(b) < 8 {
			return nil, fmt.Errorf("%w: short header", ErrMalformed)
		}
		tag := string(b[:4])
		size := binary.BigEndian.Uint32(b[4:8])
		if uint64(len(b)-8) < uint64(size) {
			return nil, fmt.Errorf("%w: %s wants %d bytes, have %d", ErrMalformed, tag, size, len(b)-8)
		}
		out = append(out, Element{Tag: tag, Data: b[8 : 8+size]})
		b = b[8+size:]
	}
	return out, nil
}

// Children decodes a container element's payload.
func (e Element) Children() ([]Element, error) {
	return Decode(e.Data)
}

// Uint reads an integer payload of 1, 2, 4 or 8 bytes.
func (e Element) Uint() (uint64, error) {
	switch len(e.Data) {
	case 1:
		return uint64(e.Data[0]), nil
	case 2:
		return uint64(binary.BigEndian.Uint16(e.Data)), nil
	case 4:
		return uint64(binary.BigEndian.Uint32(e.Data)), nil
	case 8:
		return binary.BigEndian.Uint64(e.Data), nil
	}
	return 0, fmt.Errorf("%w: %s has %d byte integer", ErrMalformed, e.Tag, len(e.Data))
}

func (e Element) String() string {
	return string(e.Data)
}

// Find returns the first element with the given tag.
func Find(elems []Element, tag string) (Element, bool) {
	for _, e := range elems {
		if e.Tag == tag {
			return e, true
		}
	}
	return Element{}, false
}
