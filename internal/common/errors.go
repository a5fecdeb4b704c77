package common

import "errors"

var (
	// ErrMalformedPacket is returned by PacketFromBytes for any datagram that
	// is not a structurally valid TFTP packet.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrOptionNotFound is returned by Options lookups and deletes.
	ErrOptionNotFound = errors.New("option not found")

	ErrInvalidPacket = errors.New("packet can not be encoded")
	ErrBufferSize    = errors.New("buffer size does not match header size")
	ErrEmbeddedNull  = errors.New("text field contains a null byte")

	// ErrEmptyOption is returned by Validate for an option with an empty name
	// or value. A short pair at the end of a packet would not be decoded.
	ErrEmptyOption = errors.New("option name and value must not be empty")

	ErrEnvelopeTooShort = errors.New("secure packet too short")
)
