package tuya

import (
	"encoding/binary"
	"fmt"
)

// Record sizes.
const (
	recordHeaderSize = 3 // id(1) + type(1) + length(1)
	maxValueLen      = 0xFF
)

// Record is one datapoint as carried in a frame.
type Record struct {
	ID    uint8
	Type  DatapointType
	Value any
}

// Encode serialises records into a frame.
//
// Each record is written as:
//
//	Byte 0:   datapoint id
//	Byte 1:   type code (raw=0, bool=1, value=2, string=3, enum=4, bitmap=5)
//	Byte 2:   value length
//	Byte 3+:  value, big-endian
//
// Enum and bitmap values use the smallest of 1, 2 or 4 bytes that fits.
func Encode(records []Record) ([]byte, error) {
	frame := make([]byte, 0, len(records)*(recordHeaderSize+4)) //nolint:mnd // typical value size
	for _, r := range records {
		code, err := r.Type.wireCode()
		if err != nil {
			return nil, fmt.Errorf("dp %d: %w", r.ID, err)
		}
		v, err := normalizeValue(r.Type, r.Value)
		if err != nil {
			return nil, fmt.Errorf("dp %d: %w", r.ID, err)
		}
		payload := encodeValue(r.Type, v)
		if len(payload) > maxValueLen {
			return nil, fmt.Errorf("%w: dp %d has %d bytes", ErrValueTooLong, r.ID, len(payload))
		}
		frame = append(frame, r.ID, code, byte(len(payload)))
		frame = append(frame, payload...)
	}
	return frame, nil
}

func encodeValue(t DatapointType, v any) []byte {
	switch t {
	case TypeBool:
		if v.(bool) {
			return []byte{1}
		}
		return []byte{0}
	case TypeValue:
		return binary.BigEndian.AppendUint32(nil, uint32(v.(int32))) //nolint:gosec // two's complement on the wire
	case TypeString:
		return []byte(v.(string))
	case TypeEnum, TypeBitmap:
		n := v.(uint32)
		switch {
		case n <= 0xFF:
			return []byte{byte(n)}
		case n <= 0xFFFF:
			return binary.BigEndian.AppendUint16(nil, uint16(n))
		default:
			return binary.BigEndian.AppendUint32(nil, n)
		}
	default:
		return v.([]byte)
	}
}

// Decode parses a frame into records. An empty frame yields no records.
func Decode(frame []byte) ([]Record, error) {
	var records []Record
	for pos := 0; pos < len(frame); {
		if len(frame)-pos < recordHeaderSize {
			return nil, fmt.Errorf("%w: %d header bytes at offset %d", ErrFrameTruncated, len(frame)-pos, pos)
		}
		id, code, n := frame[pos], frame[pos+1], int(frame[pos+2])
		pos += recordHeaderSize

		if len(frame)-pos < n {
			return nil, fmt.Errorf("%w: dp %d wants %d bytes, %d left", ErrFrameTruncated, id, n, len(frame)-pos)
		}
		typ, err := typeFromWire(code)
		if err != nil {
			return nil, fmt.Errorf("dp %d: %w", id, err)
		}
		v, err := decodeValue(typ, frame[pos:pos+n])
		if err != nil {
			return nil, fmt.Errorf("dp %d: %w", id, err)
		}
		pos += n

		records = append(records, Record{ID: id, Type: typ, Value: v})
	}
	return records, nil
}

func decodeValue(t DatapointType, b []byte) (any, error) {
	switch t {
	case TypeBool:
		if len(b) != 1 {
			return nil, fmt.Errorf("%w: bool of %d bytes", ErrInvalidValue, len(b))
		}
		return b[0] != 0, nil
	case TypeValue:
		if len(b) != 4 { //nolint:mnd // int32
			return nil, fmt.Errorf("%w: value of %d bytes", ErrInvalidValue, len(b))
		}
		return int32(binary.BigEndian.Uint32(b)), nil //nolint:gosec // two's complement on the wire
	case TypeString:
		return string(b), nil
	case TypeEnum, TypeBitmap:
		switch len(b) {
		case 1:
			return uint32(b[0]), nil
		case 2: //nolint:mnd // uint16
			return uint32(binary.BigEndian.Uint16(b)), nil
		case 4: //nolint:mnd // uint32
			return binary.BigEndian.Uint32(b), nil
		default:
			return nil, fmt.Errorf("%w: %s of %d bytes", ErrInvalidValue, t, len(b))
		}
	default:
		return append([]byte(nil), b...), nil
	}
}
