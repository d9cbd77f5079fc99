// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

// Package wire implements the framing spoken between the accounting daemon
// and its consumer. Every message starts with a big-endian uint16 total
// length (including the length field itself) and a big-endian uint16 type.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Type is a message type code.
type Type uint16

const (
	TypeAccount Type = 1
	TypeEnd     Type = 2
	TypeLoss    Type = 3
)

func (t Type) String() string {
	switch t {
	case TypeAccount:
		return "ACCOUNT"
	case TypeEnd:
		return "END"
	case TypeLoss:
		return "LOSS"
	default:
		return fmt.Sprintf("TYPE(%d)", uint16(t))
	}
}

const (
	headerLen  = 4
	endLen     = headerLen
	lossLen    = headerLen + 2
	accountLen = headerLen + 8 // plus address bytes
)

// ErrMalformed is returned by the decoder for frames that violate the format.
var ErrMalformed = errors.New("malformed message")

// Message is one decoded frame. Total and Addr are set for ACCOUNT, Lost for LOSS.
type Message struct {
	Type  Type
	Total uint64
	Addr  []byte
	Lost  uint16
}

// Flusher is the output of an export: a buffered stream that is flushed once
// per export sequence.
type Flusher interface {
	io.Writer
	Flush() error
}

// Encoder writes messages to an output stream.
type Encoder struct {
	w   Flusher
	buf [accountLen + 16]byte
}

func NewEncoder(w Flusher) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) header(length int, t Type) {
	binary.BigEndian.PutUint16(e.buf[0:2], uint16(length))
	binary.BigEndian.PutUint16(e.buf[2:4], uint16(t))
}

// Account writes an ACCOUNT message. addr must be 4 or 16 bytes.
func (e *Encoder) Account(total uint64, addr []byte) error {
	if len(addr) != 4 && len(addr) != 16 {
		return fmt.Errorf("account address must be 4 or 16 bytes, got %d", len(addr))
	}
	n := accountLen + len(addr)
	e.header(n, TypeAccount)
	binary.BigEndian.PutUint64(e.buf[4:12], total)
	copy(e.buf[12:], addr)
	_, err := e.w.Write(e.buf[:n])
	return err
}

// Loss writes a LOSS message; counts above 65535 saturate.
func (e *Encoder) Loss(count uint64) error {
	e.header(lossLen, TypeLoss)
	binary.BigEndian.PutUint16(e.buf[4:6], uint16(min(count, math.MaxUint16)))
	_, err := e.w.Write(e.buf[:lossLen])
	return err
}

// End writes an END message.
func (e *Encoder) End() error {
	e.header(endLen, TypeEnd)
	_, err := e.w.Write(e.buf[:endLen])
	return err
}

// Flush flushes the underlying stream.
func (e *Encoder) Flush() error {
	return e.w.Flush()
}

// Decoder reads messages from a stream.
type Decoder struct {
	r   io.Reader
	buf [accountLen + 16]byte
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Next reads one message. It returns io.EOF when the stream ends on a message
// boundary and io.ErrUnexpectedEOF when it ends inside a message. The Addr
// slice of an ACCOUNT message is only valid until the next call.
func (d *Decoder) Next() (Message, error) {
	if _, err := io.ReadFull(d.r, d.buf[:headerLen]); err != nil {
		return Message{}, err
	}
	length := int(binary.BigEndian.Uint16(d.buf[0:2]))
	t := Type(binary.BigEndian.Uint16(d.buf[2:4]))

	switch t {
	case TypeAccount:
		if length != accountLen+4 && length != accountLen+16 {
			return Message{}, fmt.Errorf("%w: %s length %d", ErrMalformed, t, length)
		}
	case TypeEnd:
		if length != endLen {
			return Message{}, fmt.Errorf("%w: %s length %d", ErrMalformed, t, length)
		}
	case TypeLoss:
		if length != lossLen {
			return Message{}, fmt.Errorf("%w: %s length %d", ErrMalformed, t, length)
		}
	default:
		return Message{}, fmt.Errorf("%w: unknown type %d", ErrMalformed, uint16(t))
	}

	body := d.buf[headerLen:length]
	if _, err := io.ReadFull(d.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Message{}, err
	}

	m := Message{Type: t}
	switch t {
	case TypeAccount:
		m.Total = binary.BigEndian.Uint64(body[0:8])
		m.Addr = body[8:]
	case TypeLoss:
		m.Lost = binary.BigEndian.Uint16(body[0:2])
	}
	return m, nil
}
