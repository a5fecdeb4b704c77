package common

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const SecureHeaderSize int = chacha20poly1305.NonceSizeX + 4

// SecurePacket seals one encoded TFTP packet for links where datagrams must
// not be read or altered in transit.
type SecurePacket struct {
	Nonce         [chacha20poly1305.NonceSizeX]byte
	DataLength    uint32
	EncryptedData []byte
}

func NewSecurePacket(key [32]byte, pck Packet) (*SecurePacket, error) {
	data, err := ToBytes(pck)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err = rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	encrypted := aead.Seal(nil, nonce[:], data, nil)

	return &SecurePacket{
		Nonce:         nonce,
		DataLength:    uint32(len(encrypted)),
		EncryptedData: encrypted,
	}, nil
}

func SecurePacketFromBytes(bytes []byte) (*SecurePacket, error) {
	if len(bytes) < SecureHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrEnvelopeTooShort, len(bytes))
	}
	length := binary.BigEndian.Uint32(bytes[chacha20poly1305.NonceSizeX:SecureHeaderSize])
	if uint64(SecureHeaderSize)+uint64(length) > uint64(len(bytes)) {
		return nil, fmt.Errorf("%w: announced %d encrypted bytes, have %d", ErrEnvelopeTooShort, length, len(bytes)-SecureHeaderSize)
	}
	enc := make([]byte, length)
	copy(enc, bytes[SecureHeaderSize:])

	return &SecurePacket{
		Nonce:         [chacha20poly1305.NonceSizeX]byte(bytes[:chacha20poly1305.NonceSizeX]),
		DataLength:    length,
		EncryptedData: enc,
	}, nil
}

func (secPck *SecurePacket) ToBytes() []byte {
	encSize := int(secPck.DataLength)

	arr := make([]byte, SecureHeaderSize+encSize)
	copy(arr[:chacha20poly1305.NonceSizeX], secPck.Nonce[:])
	binary.BigEndian.PutUint32(arr[chacha20poly1305.NonceSizeX:SecureHeaderSize], secPck.DataLength)
	copy(arr[SecureHeaderSize:], secPck.EncryptedData)

	return arr
}

// ExtractPacket opens the envelope and decodes the TFTP packet inside.
func (secPck *SecurePacket) ExtractPacket(key [32]byte) (Packet, error) {
	pck, _, err := secPck.ExtractPacketTrailing(key)
	return pck, err
}

// ExtractPacketTrailing is ExtractPacket that also reports the bytes the
// decoder left unread, see PacketFromBytesTrailing.
func (secPck *SecurePacket) ExtractPacketTrailing(key [32]byte) (Packet, int, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, 0, err
	}
	data, err := aead.Open(nil, secPck.Nonce[:], secPck.EncryptedData, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("open secure packet: %w", err)
	}
	return PacketFromBytesTrailing(data)
}
