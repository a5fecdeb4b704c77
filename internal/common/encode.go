package common

import (
	"encoding/binary"
	"fmt"
)

// writer fills a buffer that Encode has already sized with HeaderSize.
type writer struct {
	buf []byte
	off int
}

func (w *writer) putUint16(v uint16) {
	binary.BigEndian.PutUint16(w.buf[w.off:], v)
	w.off += 2
}

func (w *writer) putBytes(b []byte) {
	w.off += copy(w.buf[w.off:], b)
}

func (w *writer) putString(s string) {
	w.off += copy(w.buf[w.off:], s)
	w.buf[w.off] = 0
	w.off++
}

func (w *writer) putOptions(opts Options) {
	for _, opt := range opts {
		w.putString(opt.Name)
		w.putString(opt.Value)
	}
}

func (pck *ReadRequest) encode(w *writer) {
	w.putUint16(uint16(OpReadRequest))
	w.putString(pck.Filename)
	w.putString(pck.Mode)
	w.putOptions(pck.Options)
}

func (pck *WriteRequest) encode(w *writer) {
	w.putUint16(uint16(OpWriteRequest))
	w.putString(pck.Filename)
	w.putString(pck.Mode)
	w.putOptions(pck.Options)
}

func (pck *Data) encode(w *writer) {
	w.putUint16(uint16(OpData))
	w.putUint16(pck.Block)
	w.putBytes(pck.Payload)
}

func (pck *Ack) encode(w *writer) {
	w.putUint16(uint16(OpAck))
	w.putUint16(pck.Block)
}

func (pck *ErrorPacket) encode(w *writer) {
	w.putUint16(uint16(OpError))
	w.putUint16(uint16(pck.Code))
	w.putString(pck.Message)
}

func (pck *OptionAck) encode(w *writer) {
	w.putUint16(uint16(OpOptionAck))
	w.putOptions(pck.Options)
}

// HeaderSize returns the exact encoded length of pck, 0 if pck is nil.
func HeaderSize(pck Packet) int {
	if pck == nil {
		return 0
	}
	return pck.HeaderSize()
}

// Encode writes pck into buf, which must be exactly HeaderSize(pck) long.
func Encode(pck Packet, buf []byte) error {
	size := HeaderSize(pck)
	if size == 0 {
		return ErrInvalidPacket
	}
	if len(buf) != size {
		return fmt.Errorf("%w: have %d, need %d", ErrBufferSize, len(buf), size)
	}
	pck.encode(&writer{buf: buf})
	return nil
}

func ToBytes(pck Packet) ([]byte, error) {
	size := HeaderSize(pck)
	if size == 0 {
		return nil, ErrInvalidPacket
	}
	arr := make([]byte, size)
	if err := Encode(pck, arr); err != nil {
		return nil, err
	}
	return arr, nil
}
