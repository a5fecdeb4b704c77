package common

import (
	"fmt"
	"strings"
)

// Packet is one of the six TFTP message kinds. Only the pointer types in this
// package implement it.
type Packet interface {
	Opcode() Opcode
	// HeaderSize is the exact number of bytes Encode writes, or 0 for a nil
	// packet.
	HeaderSize() int

	encode(w *writer)
	validate() error
}

type ReadRequest struct {
	Filename string
	Mode     string
	Options  Options
}

type WriteRequest struct {
	Filename string
	Mode     string
	Options  Options
}

type Data struct {
	Block   uint16
	Payload []byte
}

type Ack struct {
	Block uint16
}

type ErrorPacket struct {
	Code    ErrorCode
	Message string
}

type OptionAck struct {
	Options Options
}

func NewReadRequest(filename, mode string, opts ...Option) *ReadRequest {
	return &ReadRequest{
		Filename: filename,
		Mode:     mode,
		Options:  newOptions(opts),
	}
}

func NewWriteRequest(filename, mode string, opts ...Option) *WriteRequest {
	return &WriteRequest{
		Filename: filename,
		Mode:     mode,
		Options:  newOptions(opts),
	}
}

// NewData copies payload so the packet owns its bytes.
func NewData(block uint16, payload []byte) *Data {
	data := make([]byte, len(payload))
	copy(data, payload)
	return &Data{
		Block:   block,
		Payload: data,
	}
}

func NewAck(block uint16) *Ack {
	return &Ack{Block: block}
}

// NewError falls back to the default text of code when message is empty.
func NewError(code ErrorCode, message string) *ErrorPacket {
	if message == "" {
		message = code.Message()
	}
	return &ErrorPacket{
		Code:    code,
		Message: message,
	}
}

func NewOptionAck(opts ...Option) *OptionAck {
	return &OptionAck{Options: newOptions(opts)}
}

func newOptions(opts []Option) Options {
	var table Options
	for _, opt := range opts {
		table.Upsert(opt.Name, opt.Value)
	}
	return table
}

func (*ReadRequest) Opcode() Opcode  { return OpReadRequest }
func (*WriteRequest) Opcode() Opcode { return OpWriteRequest }
func (*Data) Opcode() Opcode         { return OpData }
func (*Ack) Opcode() Opcode          { return OpAck }
func (*ErrorPacket) Opcode() Opcode  { return OpError }
func (*OptionAck) Opcode() Opcode    { return OpOptionAck }

func requestSize(filename, mode string, opts Options) int {
	return OpcodeSize + len(filename) + 1 + len(mode) + 1 + opts.Size()
}

func (pck *ReadRequest) HeaderSize() int {
	if pck == nil {
		return 0
	}
	return requestSize(pck.Filename, pck.Mode, pck.Options)
}

func (pck *WriteRequest) HeaderSize() int {
	if pck == nil {
		return 0
	}
	return requestSize(pck.Filename, pck.Mode, pck.Options)
}

func (pck *Data) HeaderSize() int {
	if pck == nil {
		return 0
	}
	return DataHeaderSize + len(pck.Payload)
}

func (pck *Ack) HeaderSize() int {
	if pck == nil {
		return 0
	}
	return OpcodeSize + BlockFieldSize
}

func (pck *ErrorPacket) HeaderSize() int {
	if pck == nil {
		return 0
	}
	return OpcodeSize + ErrorCodeSize + len(pck.Message) + 1
}

func (pck *OptionAck) HeaderSize() int {
	if pck == nil {
		return 0
	}
	return OpcodeSize + pck.Options.Size()
}

func validateText(field, value string) error {
	if strings.IndexByte(value, 0) >= 0 {
		return fmt.Errorf("%w: %v", ErrEmbeddedNull, field)
	}
	return nil
}

func validateRequest(filename, mode string, opts Options) error {
	if err := validateText("filename", filename); err != nil {
		return err
	}
	if err := validateText("mode", mode); err != nil {
		return err
	}
	return opts.validate()
}

func (pck *ReadRequest) validate() error {
	return validateRequest(pck.Filename, pck.Mode, pck.Options)
}

func (pck *WriteRequest) validate() error {
	return validateRequest(pck.Filename, pck.Mode, pck.Options)
}

func (pck *Data) validate() error { return nil }

func (pck *Ack) validate() error { return nil }

func (pck *ErrorPacket) validate() error {
	return validateText("message", pck.Message)
}

func (pck *OptionAck) validate() error {
	return pck.Options.validate()
}

// Validate checks that no text field of pck contains a NUL byte, which would
// make the encoded packet decode differently.
func Validate(pck Packet) error {
	if isNil(pck) {
		return ErrInvalidPacket
	}
	return pck.validate()
}

func isNil(pck Packet) bool {
	return pck == nil || pck.HeaderSize() == 0
}
