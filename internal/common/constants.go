package common

import "fmt"

// BlockSize is the default DATA payload size from RFC 1350.
const BlockSize = 512

const (
	OpcodeSize     int = 2
	BlockFieldSize int = 2
	ErrorCodeSize  int = 2

	DataHeaderSize int = OpcodeSize + BlockFieldSize

	// PacketSize fits a DATA packet with a default sized block.
	PacketSize = DataHeaderSize + BlockSize
)

// MinOptionSize is the smallest unread tail the decoder still treats as an
// option pair: one byte name, NUL, one byte value, NUL.
const MinOptionSize = 4

// Opcode is the 2 byte field that starts every TFTP packet.
type Opcode uint16

const (
	OpReadRequest  Opcode = iota + 1
	OpWriteRequest Opcode = iota + 1
	OpData         Opcode = iota + 1
	OpAck          Opcode = iota + 1
	OpError        Opcode = iota + 1
	OpOptionAck    Opcode = iota + 1
)

func (op Opcode) Valid() bool {
	return op >= OpReadRequest && op <= OpOptionAck
}

// HasOptions reports whether packets with this opcode carry an option table.
func (op Opcode) HasOptions() bool {
	return op == OpReadRequest || op == OpWriteRequest || op == OpOptionAck
}

func (op Opcode) String() string {
	switch op {
	case OpReadRequest:
		return "RRQ"
	case OpWriteRequest:
		return "WRQ"
	case OpData:
		return "DATA"
	case OpAck:
		return "ACK"
	case OpError:
		return "ERROR"
	case OpOptionAck:
		return "OACK"
	default:
		return fmt.Sprintf("Opcode(%d)", uint16(op))
	}
}

// ErrorCode is carried by ERROR packets. Values above 8 are kept as received.
type ErrorCode uint16

const (
	Undefined         ErrorCode = iota
	FileNotFound      ErrorCode = iota
	AccessViolation   ErrorCode = iota
	DiskFull          ErrorCode = iota
	IllegalOperation  ErrorCode = iota
	UnknownTransferID ErrorCode = iota
	FileExists        ErrorCode = iota
	NoSuchUser        ErrorCode = iota
	OptionError       ErrorCode = iota
)

func (code ErrorCode) String() string {
	switch code {
	case Undefined:
		return "Undefined"
	case FileNotFound:
		return "FileNotFound"
	case AccessViolation:
		return "AccessViolation"
	case DiskFull:
		return "DiskFull"
	case IllegalOperation:
		return "IllegalOperation"
	case UnknownTransferID:
		return "UnknownTransferID"
	case FileExists:
		return "FileExists"
	case NoSuchUser:
		return "NoSuchUser"
	case OptionError:
		return "OptionError"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint16(code))
	}
}

// Message returns the default text for the code as listed in RFC 1350 and
// RFC 2347. Undefined and unknown codes have no default text.
func (code ErrorCode) Message() string {
	switch code {
	case FileNotFound:
		return "File not found"
	case AccessViolation:
		return "Access violation"
	case DiskFull:
		return "Disk full or allocation exceeded"
	case IllegalOperation:
		return "Illegal TFTP operation"
	case UnknownTransferID:
		return "Unknown transfer ID"
	case FileExists:
		return "File already exists"
	case NoSuchUser:
		return "No such user"
	case OptionError:
		return "Option negotiation failed"
	default:
		return ""
	}
}
