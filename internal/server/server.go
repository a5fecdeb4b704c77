package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/kelindar/bitmap"
	log "github.com/sirupsen/logrus"

	"github.com/Pablu23/tftp/internal/common"
)

// MaxDatagramSize fits the largest DATA packet a blksize option can ask for.
const MaxDatagramSize = 65535

type peer struct {
	dataBlocks bitmap.Bitmap
	ackBlocks  bitmap.Bitmap
	packets    uint64
	malformed  uint64
	duplicates uint64
	lastOpcode common.Opcode
	time       time.Time
}

type PeerStats struct {
	Packets    uint64
	Malformed  uint64
	Duplicates uint64
	DataBlocks int
	AckBlocks  int
	LastOpcode common.Opcode
	LastSeen   time.Time
}

// Server listens for TFTP datagrams, decodes and logs each one and keeps
// counters per remote address. It never transfers files.
type Server struct {
	peers   map[string]*peer
	mu      sync.Mutex
	options *Options
	conn    *net.UDPConn
}

func New(opts ...func(*Options)) (*Server, error) {
	options := NewDefaultOptions()

	for _, opt := range opts {
		opt(options)
	}

	if options.Port < 0 || options.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", options.Port)
	}
	if options.PeerTimeout <= 0 {
		return nil, fmt.Errorf("invalid peer timeout %v", options.PeerTimeout)
	}

	return &Server{
		peers:   make(map[string]*peer),
		options: options,
	}, nil
}

func (server *Server) Listen() error {
	address := net.JoinHostPort(server.options.Address, strconv.Itoa(server.options.Port))
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return fmt.Errorf("resolve %v: %w", address, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen %v: %w", address, err)
	}
	server.conn = conn

	log.WithField("Address", conn.LocalAddr()).Info("Started listening")
	return nil
}

func (server *Server) Addr() net.Addr {
	if server.conn == nil {
		return nil
	}
	return server.conn.LocalAddr()
}

func (server *Server) Close() error {
	if server.conn == nil {
		return nil
	}
	return server.conn.Close()
}

// Serve reads datagrams until ctx is done. Listen is called first if the
// server is not bound yet.
func (server *Server) Serve(ctx context.Context) error {
	if server.conn == nil {
		if err := server.Listen(); err != nil {
			return err
		}
	}

	go server.startTimeout(ctx)
	go func() {
		<-ctx.Done()
		log.Info("Server is shutting down")
		if err := server.Close(); err != nil {
			log.WithError(err).Error("Could not close UDP connection")
		}
	}()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := server.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.WithError(err).Error("Could not retrieve UDP Packet")
			continue
		}

		reply := server.handleDatagram(addr.String(), buf[:n])
		if reply == nil {
			continue
		}
		if _, err := server.conn.WriteToUDP(reply, addr); err != nil {
			log.WithError(err).WithField("Peer", addr.String()).Error("Could not write Packet to UDP")
		}
	}
}

// handleDatagram decodes one datagram from addr and returns the bytes to send
// back, or nil.
func (server *Server) handleDatagram(addr string, data []byte) []byte {
	pck, trailing, err := server.decode(data)

	server.mu.Lock()
	p, ok := server.peers[addr]
	if !ok {
		p = &peer{}
		server.peers[addr] = p
	}
	p.packets++
	p.time = time.Now()

	if err != nil {
		p.malformed++
		server.mu.Unlock()

		log.WithError(err).WithFields(log.Fields{
			"Peer":   addr,
			"Length": len(data),
		}).Warn("Received malformed Packet")

		if !server.options.ReplyMalformed {
			return nil
		}
		return server.reply(addr, common.NewError(common.IllegalOperation, ""))
	}

	p.lastOpcode = pck.Opcode()
	duplicate := false
	switch pck := pck.(type) {
	case *common.ReadRequest, *common.WriteRequest:
		p.dataBlocks.Clear()
		p.ackBlocks.Clear()
	case *common.Data:
		duplicate = p.dataBlocks.Contains(uint32(pck.Block))
		p.dataBlocks.Set(uint32(pck.Block))
	case *common.Ack:
		duplicate = p.ackBlocks.Contains(uint32(pck.Block))
		p.ackBlocks.Set(uint32(pck.Block))
	}
	if duplicate {
		p.duplicates++
	}
	server.mu.Unlock()

	entry := log.WithFields(PacketFields(pck)).WithField("Peer", addr)
	if trailing > 0 {
		entry.WithField("Trailing", trailing).Warn("Packet has unread trailing bytes")
	}

	switch pck.(type) {
	case *common.ErrorPacket:
		entry.Warn("Received Error Packet")
	case *common.ReadRequest, *common.WriteRequest:
		entry.Info("Received Request")
		if server.options.RejectRequests {
			return server.reply(addr, common.NewError(common.AccessViolation, server.options.RejectMessage))
		}
	default:
		if duplicate {
			entry.Warn("Received duplicate block")
		} else {
			entry.Debug("Received Packet")
		}
	}

	return nil
}

func (server *Server) decode(data []byte) (common.Packet, int, error) {
	if server.options.Key == nil {
		return common.PacketFromBytesTrailing(data)
	}

	secPck, err := common.SecurePacketFromBytes(data)
	if err != nil {
		return nil, 0, err
	}
	return secPck.ExtractPacketTrailing(*server.options.Key)
}

func (server *Server) reply(addr string, pck common.Packet) []byte {
	var bytes []byte
	var err error
	if server.options.Key == nil {
		bytes, err = common.ToBytes(pck)
	} else {
		var secPck *common.SecurePacket
		secPck, err = common.NewSecurePacket(*server.options.Key, pck)
		if err == nil {
			bytes = secPck.ToBytes()
		}
	}
	if err != nil {
		log.WithError(err).WithField("Peer", addr).Error("Could not encode reply")
		return nil
	}
	return bytes
}

// PacketFields describes pck for structured logging.
func PacketFields(pck common.Packet) log.Fields {
	fields := log.Fields{"Opcode": pck.Opcode()}
	switch pck := pck.(type) {
	case *common.ReadRequest:
		fields["Filename"] = pck.Filename
		fields["Mode"] = pck.Mode
		fields["Options"] = pck.Options.String()
	case *common.WriteRequest:
		fields["Filename"] = pck.Filename
		fields["Mode"] = pck.Mode
		fields["Options"] = pck.Options.String()
	case *common.Data:
		fields["Block"] = pck.Block
		fields["Length"] = len(pck.Payload)
	case *common.Ack:
		fields["Block"] = pck.Block
	case *common.ErrorPacket:
		fields["Code"] = pck.Code
		fields["Message"] = pck.Message
	case *common.OptionAck:
		fields["Options"] = pck.Options.String()
	}
	return fields
}

// Stats returns a snapshot of the counters kept for addr.
func (server *Server) Stats(addr string) (PeerStats, bool) {
	server.mu.Lock()
	defer server.mu.Unlock()

	p, ok := server.peers[addr]
	if !ok {
		return PeerStats{}, false
	}
	return PeerStats{
		Packets:    p.packets,
		Malformed:  p.malformed,
		Duplicates: p.duplicates,
		DataBlocks: p.dataBlocks.Count(),
		AckBlocks:  p.ackBlocks.Count(),
		LastOpcode: p.lastOpcode,
		LastSeen:   p.time,
	}, true
}

func (server *Server) startTimeout(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(server.options.PeerTimeout):
			server.cleanup(time.Now())
		}
	}
}

func (server *Server) cleanup(now time.Time) {
	server.mu.Lock()

	for addr, p := range server.peers {
		if now.After(p.time.Add(server.options.PeerTimeout)) {
			delete(server.peers, addr)
			log.WithField("Peer", addr).Info("Forgot idle peer")
		}
	}

	server.mu.Unlock()
}
