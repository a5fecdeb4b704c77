package common

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// reader is a bounds checked cursor over a received datagram.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) readUint16(field string) (uint16, error) {
	if r.remaining() < 2 {
		return 0, fmt.Errorf("%w: %v needs 2 bytes at offset %d, have %d", ErrMalformedPacket, field, r.off, r.remaining())
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

// cstring reads up to and including the next NUL byte. When the buffer ends
// first, everything left is returned and terminated is false.
func (r *reader) cstring() (s string, terminated bool) {
	rest := r.buf[r.off:]
	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		r.off = len(r.buf)
		return string(rest), false
	}
	r.off += i + 1
	return string(rest[:i]), true
}

func (r *reader) rest() []byte {
	data := make([]byte, r.remaining())
	copy(data, r.buf[r.off:])
	r.off = len(r.buf)
	return data
}

// PacketFromBytes decodes one TFTP datagram. The returned packet does not
// alias bytes.
func PacketFromBytes(bytes []byte) (Packet, error) {
	pck, _, err := PacketFromBytesTrailing(bytes)
	return pck, err
}

// PacketFromBytesTrailing is PacketFromBytes that also reports how many bytes
// were left unread, e.g. a short fragment after the last option or extra
// bytes after an ACK block number.
func PacketFromBytesTrailing(bytes []byte) (Packet, int, error) {
	r := &reader{buf: bytes}
	pck, err := decode(r)
	if err != nil {
		return nil, 0, err
	}
	return pck, r.remaining(), nil
}

func decode(r *reader) (Packet, error) {
	raw, err := r.readUint16("opcode")
	if err != nil {
		return nil, err
	}
	op := Opcode(raw)
	if !op.Valid() {
		return nil, fmt.Errorf("%w: invalid opcode %d", ErrMalformedPacket, raw)
	}

	switch op {
	case OpReadRequest, OpWriteRequest:
		filename, _ := r.cstring()
		mode, _ := r.cstring()
		opts, err := readOptions(r)
		if err != nil {
			return nil, err
		}
		if op == OpReadRequest {
			return &ReadRequest{Filename: filename, Mode: mode, Options: opts}, nil
		}
		return &WriteRequest{Filename: filename, Mode: mode, Options: opts}, nil

	case OpData:
		block, err := r.readUint16("block")
		if err != nil {
			return nil, err
		}
		return &Data{Block: block, Payload: r.rest()}, nil

	case OpAck:
		block, err := r.readUint16("block")
		if err != nil {
			return nil, err
		}
		return &Ack{Block: block}, nil

	case OpError:
		code, err := r.readUint16("error code")
		if err != nil {
			return nil, err
		}
		message, _ := r.cstring()
		return &ErrorPacket{Code: ErrorCode(code), Message: message}, nil

	default:
		opts, err := readOptions(r)
		if err != nil {
			return nil, err
		}
		return &OptionAck{Options: opts}, nil
	}
}

// readOptions consumes name/value pairs while at least MinOptionSize bytes
// are left. A shorter tail stays unread. Duplicate names keep the position of
// the first occurrence and the value of the last.
func readOptions(r *reader) (Options, error) {
	var opts Options
	for r.remaining() >= MinOptionSize {
		start := r.off
		name, ok := r.cstring()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated option name at offset %d", ErrMalformedPacket, start)
		}
		value, ok := r.cstring()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated value for option %q", ErrMalformedPacket, name)
		}
		opts.Upsert(name, value)
	}
	return opts, nil
}
