package client

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Pablu23/tftp/internal/common"
)

// fakeServer answers the first request it receives with reply, sent from a
// second socket the way TFTP servers pick a new transfer ID.
func fakeServer(t *testing.T, reply common.Packet, key *[32]byte) (string, <-chan common.Packet) {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	received := make(chan common.Packet, 1)
	go func() {
		defer close(received)

		buf := make([]byte, 65535)
		if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
			return
		}
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}

		var pck common.Packet
		if key == nil {
			pck, err = common.PacketFromBytes(buf[:n])
		} else {
			var secPck *common.SecurePacket
			if secPck, err = common.SecurePacketFromBytes(buf[:n]); err == nil {
				pck, err = secPck.ExtractPacket(*key)
			}
		}
		if err != nil {
			return
		}
		received <- pck

		transfer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		if err != nil {
			return
		}
		defer transfer.Close()
		_ = SendPacket(transfer, addr, reply, key)
	}()

	return conn.LocalAddr().String(), received
}

func TestProbe(t *testing.T) {
	reply := common.NewOptionAck(common.Option{Name: "blksize", Value: "1024"})
	address, received := fakeServer(t, reply, nil)

	request := common.NewReadRequest("boot.img", "octet", common.Option{Name: "blksize", Value: "1024"})
	got, err := Probe(address, request)
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(got, common.Packet(reply)) {
		t.Errorf("Got = %+v; want %+v", got, reply)
	}
	if sent := <-received; !cmp.Equal(sent, common.Packet(request)) {
		t.Errorf("server got %+v; want %+v", sent, request)
	}
}

func TestProbeSecure(t *testing.T) {
	key := [32]byte{7}
	reply := common.NewError(common.FileNotFound, "")
	address, _ := fakeServer(t, reply, &key)

	got, err := Probe(address, common.NewReadRequest("missing", "octet"), func(o *Options) {
		o.Key = &key
	})
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(got, common.Packet(reply)) {
		t.Errorf("Got = %+v; want %+v", got, reply)
	}
}

func TestProbeTimeout(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	_, err = Probe(conn.LocalAddr().String(), common.NewReadRequest("f", "octet"), func(o *Options) {
		o.Timeout = 50 * time.Millisecond
	})
	if !errors.Is(err, ErrNoReply) {
		t.Errorf("Got = %v; want %v", err, ErrNoReply)
	}
}

func TestSendPacketValidates(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	err = SendPacket(conn, conn.LocalAddr().(*net.UDPAddr), common.NewReadRequest("a\x00b", "octet"), nil)
	if !errors.Is(err, common.ErrEmbeddedNull) {
		t.Errorf("Got = %v; want %v", err, common.ErrEmbeddedNull)
	}
}
