package common

import (
	"fmt"
	"strings"
)

// Option is a single RFC 2347 name/value pair.
type Option struct {
	Name  string
	Value string
}

// Options is an ordered option table. Names are unique and the slice order is
// the order options are written onto the wire.
type Options []Option

// UpsertResult tells whether Upsert added a new option or replaced a value.
type UpsertResult uint8

const (
	Inserted UpsertResult = iota
	Updated  UpsertResult = iota
)

func (r UpsertResult) String() string {
	if r == Updated {
		return "updated"
	}
	return "inserted"
}

func (opts Options) index(name string) int {
	for i, opt := range opts {
		if opt.Name == name {
			return i
		}
	}
	return -1
}

func (opts Options) Find(name string) (Option, error) {
	if i := opts.index(name); i >= 0 {
		return opts[i], nil
	}
	return Option{}, fmt.Errorf("%w: %q", ErrOptionNotFound, name)
}

func (opts Options) Has(name string) bool {
	return opts.index(name) >= 0
}

// Upsert replaces the value of an existing option in place or appends a new
// one at the end of the table.
func (opts *Options) Upsert(name, value string) UpsertResult {
	if i := opts.index(name); i >= 0 {
		(*opts)[i].Value = value
		return Updated
	}
	*opts = append(*opts, Option{Name: name, Value: value})
	return Inserted
}

func (opts *Options) Delete(name string) error {
	i := opts.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrOptionNotFound, name)
	}
	*opts = append((*opts)[:i], (*opts)[i+1:]...)
	return nil
}

func (opts Options) Clone() Options {
	if opts == nil {
		return nil
	}
	clone := make(Options, len(opts))
	copy(clone, opts)
	return clone
}

// Size is the number of wire bytes taken by all pairs including terminators.
func (opts Options) Size() int {
	size := 0
	for _, opt := range opts {
		size += len(opt.Name) + 1 + len(opt.Value) + 1
	}
	return size
}

func (opts Options) validate() error {
	for _, opt := range opts {
		if opt.Name == "" || opt.Value == "" {
			return fmt.Errorf("%w: option %q", ErrEmptyOption, opt.Name)
		}
		if strings.IndexByte(opt.Name, 0) >= 0 || strings.IndexByte(opt.Value, 0) >= 0 {
			return fmt.Errorf("%w: option %q", ErrEmbeddedNull, opt.Name)
		}
	}
	return nil
}

func (opts Options) String() string {
	pairs := make([]string, len(opts))
	for i, opt := range opts {
		pairs[i] = opt.Name + "=" + opt.Value
	}
	return strings.Join(pairs, " ")
}
