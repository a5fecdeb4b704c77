package client

import (
	"errors"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Pablu23/tftp/internal/common"
)

const DefaultTimeout = 5 * time.Second

type Options struct {
	Timeout time.Duration
	// Key seals outgoing and opens incoming datagrams when set.
	Key *[32]byte
}

func NewDefaultOptions() *Options {
	return &Options{
		Timeout: DefaultTimeout,
	}
}

var ErrNoReply = errors.New("no reply received")

// SendPacket writes pck to addr, or to the connected peer when addr is nil.
func SendPacket(conn *net.UDPConn, addr *net.UDPAddr, pck common.Packet, key *[32]byte) error {
	if err := common.Validate(pck); err != nil {
		return err
	}

	var bytes []byte
	if key == nil {
		var err error
		if bytes, err = common.ToBytes(pck); err != nil {
			return err
		}
	} else {
		secPck, err := common.NewSecurePacket(*key, pck)
		if err != nil {
			return err
		}
		bytes = secPck.ToBytes()
	}

	var err error
	if addr == nil {
		_, err = conn.Write(bytes)
	} else {
		_, err = conn.WriteToUDP(bytes, addr)
	}
	if err != nil {
		return fmt.Errorf("write %v packet: %w", pck.Opcode(), err)
	}
	return nil
}

// ReceivePacketWithTimeout waits up to timeout for one datagram. The bool is
// false when the deadline passed without a datagram.
func ReceivePacketWithTimeout(conn *net.UDPConn, key *[32]byte, timeout time.Duration) (common.Packet, bool, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, false, err
	}

	bytes := make([]byte, 65535)
	n, from, err := conn.ReadFromUDP(bytes)
	if err != nil {
		var e net.Error
		if errors.As(err, &e) && e.Timeout() {
			return nil, false, nil
		}
		return nil, false, err
	}

	log.WithFields(log.Fields{
		"From":   from.String(),
		"Length": n,
	}).Debug("Received datagram")

	if key == nil {
		pck, err := common.PacketFromBytes(bytes[:n])
		return pck, true, err
	}

	secPck, err := common.SecurePacketFromBytes(bytes[:n])
	if err != nil {
		return nil, true, err
	}
	pck, err := secPck.ExtractPacket(*key)
	return pck, true, err
}

// Probe sends request to address and returns the first decoded reply. The
// socket is unconnected because servers answer from a fresh port. Probe does
// not continue any transfer the reply may start.
func Probe(address string, request common.Packet, opts ...func(*Options)) (common.Packet, error) {
	options := NewDefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, err
	}
	defer func(conn *net.UDPConn) {
		err := conn.Close()
		if err != nil {
			log.WithError(err).Error("Could not close UDP connection")
		}
	}(conn)

	if err := SendPacket(conn, udpAddr, request, options.Key); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"Address": address,
		"Opcode":  request.Opcode(),
	}).Debug("Sent probe")

	pck, received, err := ReceivePacketWithTimeout(conn, options.Key, options.Timeout)
	if err != nil {
		return nil, err
	}
	if !received {
		return nil, fmt.Errorf("%w from %v after %v", ErrNoReply, address, options.Timeout)
	}
	return pck, nil
}
