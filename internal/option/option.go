// Package option interprets the well-known TFTP option values and transfer
// modes on top of the verbatim text carried by package common.
//
// Nothing here decides whether an option is accepted; callers use the parsed
// values to build their own negotiation.
package option

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Pablu23/tftp/internal/common"
)

// Option names.
const (
	BlockSize    = "blksize"    // RFC 2348
	Timeout      = "timeout"    // RFC 2349
	TransferSize = "tsize"      // RFC 2349
	WindowSize   = "windowsize" // RFC 7440
)

const (
	MinBlockSize  = 8
	MaxBlockSize  = 65464
	MinTimeout    = 1
	MaxTimeout    = 255
	MinWindowSize = 1
	MaxWindowSize = 65535
)

var ErrInvalidValue = errors.New("invalid option value")

type Mode uint8

const (
	Unknown  Mode = iota
	Netascii Mode = iota
	Octet    Mode = iota
	Mail     Mode = iota
)

// ParseMode maps a request mode to a Mode, ignoring case. Unrecognised modes
// return Unknown; the request text itself is never rewritten.
func ParseMode(s string) Mode {
	switch strings.ToLower(s) {
	case "netascii":
		return Netascii
	case "octet":
		return Octet
	case "mail":
		return Mail
	default:
		return Unknown
	}
}

func (m Mode) String() string {
	switch m {
	case Netascii:
		return "netascii"
	case Octet:
		return "octet"
	case Mail:
		return "mail"
	default:
		return "unknown"
	}
}

func parseInt(opts common.Options, name string, min, max int64) (int64, error) {
	opt, err := opts.Find(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(opt.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v=%q", ErrInvalidValue, name, opt.Value)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%w: %v=%d out of range [%d, %d]", ErrInvalidValue, name, v, min, max)
	}
	return v, nil
}

func GetBlockSize(opts common.Options) (int, error) {
	v, err := parseInt(opts, BlockSize, MinBlockSize, MaxBlockSize)
	return int(v), err
}

// GetTimeout returns the timeout option in seconds.
func GetTimeout(opts common.Options) (int, error) {
	v, err := parseInt(opts, Timeout, MinTimeout, MaxTimeout)
	return int(v), err
}

func GetTransferSize(opts common.Options) (int64, error) {
	return parseInt(opts, TransferSize, 0, 1<<63-1)
}

func GetWindowSize(opts common.Options) (int, error) {
	v, err := parseInt(opts, WindowSize, MinWindowSize, MaxWindowSize)
	return int(v), err
}

func setInt(opts *common.Options, name string, v, min, max int64) error {
	if v < min || v > max {
		return fmt.Errorf("%w: %v=%d out of range [%d, %d]", ErrInvalidValue, name, v, min, max)
	}
	opts.Upsert(name, strconv.FormatInt(v, 10))
	return nil
}

func SetBlockSize(opts *common.Options, size int) error {
	return setInt(opts, BlockSize, int64(size), MinBlockSize, MaxBlockSize)
}

func SetTimeout(opts *common.Options, seconds int) error {
	return setInt(opts, Timeout, int64(seconds), MinTimeout, MaxTimeout)
}

func SetTransferSize(opts *common.Options, size int64) error {
	return setInt(opts, TransferSize, size, 0, 1<<63-1)
}

func SetWindowSize(opts *common.Options, size int) error {
	return setInt(opts, WindowSize, int64(size), MinWindowSize, MaxWindowSize)
}
