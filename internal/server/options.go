package server

import "time"

type Options struct {
	Address string
	Port    int

	// ReplyMalformed answers undecodable datagrams with an ERROR packet.
	ReplyMalformed bool
	// RejectRequests answers every RRQ and WRQ with an access violation.
	RejectRequests bool
	RejectMessage  string

	PeerTimeout time.Duration

	// Key enables sealed datagrams in both directions when set.
	Key *[32]byte
}

func NewDefaultOptions() *Options {
	return &Options{
		Address:        "0.0.0.0",
		Port:           69,
		ReplyMalformed: true,
		RejectRequests: false,
		RejectMessage:  "Transfers are not served here",
		PeerTimeout:    30 * time.Second,
	}
}
