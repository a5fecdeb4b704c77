package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/Pablu23/tftp/internal/client"
	"github.com/Pablu23/tftp/internal/common"
	"github.com/Pablu23/tftp/internal/config"
	"github.com/Pablu23/tftp/internal/option"
	"github.com/Pablu23/tftp/internal/server"
)

const usage = `usage:
  tftp server [config]
  tftp probe <address> <file> [config]
  tftp decode <hex>
  tftp encode rrq|wrq <file> [mode]
  tftp encode data <block> <text>
  tftp encode ack <block>
  tftp encode error <code> [message]`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "server":
		err = runServer(argOr(2, ""))
	case "probe":
		if len(os.Args) < 4 {
			err = errors.New("probe needs an address and a file")
			break
		}
		err = runProbe(os.Args[2], os.Args[3], argOr(4, ""))
	case "decode":
		if len(os.Args) < 3 {
			err = errors.New("decode needs a hex string")
			break
		}
		err = runDecode(os.Args[2])
	case "encode":
		err = runEncode(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.WithError(err).Fatal("Command failed")
	}
}

func argOr(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.ConfigureLogging(cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServer(path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	opts, err := cfg.ServerOptions()
	if err != nil {
		return err
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return srv.Serve(ctx)
}

func runProbe(address, file, path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	opts, err := cfg.ClientOptions()
	if err != nil {
		return err
	}
	requestOpts, err := cfg.RequestOptions()
	if err != nil {
		return err
	}

	if option.ParseMode(cfg.Client.Mode) == option.Unknown {
		log.WithField("Mode", cfg.Client.Mode).Warn("Sending non standard mode")
	}

	request := common.NewReadRequest(file, cfg.Client.Mode, requestOpts...)
	reply, err := client.Probe(address, request, opts)
	if err != nil {
		return err
	}

	entry := log.WithFields(fields(reply))
	if oack, ok := reply.(*common.OptionAck); ok {
		if blksize, err := option.GetBlockSize(oack.Options); err == nil {
			entry = entry.WithField("BlockSize", blksize)
		} else if !errors.Is(err, common.ErrOptionNotFound) {
			entry = entry.WithError(err)
		}
		if tsize, err := option.GetTransferSize(oack.Options); err == nil {
			entry = entry.WithField("TransferSize", tsize)
		}
	}
	entry.Info("Received reply")
	return nil
}

func runDecode(s string) error {
	pck, trailing, err := decodeHex(s)
	if err != nil {
		return err
	}

	entry := log.WithFields(fields(pck))
	if trailing > 0 {
		entry = entry.WithField("Trailing", trailing)
	}
	entry.Info("Decoded Packet")
	return nil
}

// decodeHex decodes a packet given as hex, spaces allowed.
func decodeHex(s string) (common.Packet, int, error) {
	bytes, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return nil, 0, err
	}
	return common.PacketFromBytesTrailing(bytes)
}

func runEncode(args []string) error {
	bytes, err := encodeArgs(args)
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(bytes))
	return nil
}

// encodeArgs builds and validates the packet described by args and returns its
// wire bytes.
func encodeArgs(args []string) ([]byte, error) {
	if len(args) < 2 {
		return nil, errors.New("encode needs a packet kind and its fields")
	}

	var pck common.Packet
	switch args[0] {
	case "rrq", "wrq":
		mode := "octet"
		if len(args) > 2 {
			mode = args[2]
		}
		if args[0] == "rrq" {
			pck = common.NewReadRequest(args[1], mode)
		} else {
			pck = common.NewWriteRequest(args[1], mode)
		}
	case "data":
		if len(args) < 3 {
			return nil, errors.New("data needs a block and a text payload")
		}
		block, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return nil, err
		}
		pck = common.NewData(uint16(block), []byte(args[2]))
	case "ack":
		block, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return nil, err
		}
		pck = common.NewAck(uint16(block))
	case "error":
		code, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return nil, err
		}
		message := ""
		if len(args) > 2 {
			message = args[2]
		}
		pck = common.NewError(common.ErrorCode(code), message)
	default:
		return nil, fmt.Errorf("unknown packet kind %q", args[0])
	}

	if err := common.Validate(pck); err != nil {
		return nil, err
	}
	return common.ToBytes(pck)
}

func fields(pck common.Packet) log.Fields {
	fields := server.PacketFields(pck)
	fields["Size"] = common.HeaderSize(pck)
	return fields
}
