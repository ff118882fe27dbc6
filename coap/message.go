/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package coap

import (
	"errors"
	"sort"
	"strings"
)

// Protocol version per RFC 7252.
const Version = 1

// PayloadMarker separates the options from a non-empty payload.
const PayloadMarker = 0xFF

// Type is a CoAP message type.
type Type uint8

// Message types.
const (
	Confirmable     Type = 0
	NonConfirmable  Type = 1
	Acknowledgement Type = 2
	Reset           Type = 3
)

func (t Type) String() string {
	switch t {
	case Confirmable:
		return "CON"
	case NonConfirmable:
		return "NON"
	case Acknowledgement:
		return "ACK"
	default:
		return "RST"
	}
}

// Error definitions
var (
	ErrTokenTooLong  = errors.New("token exceeds 8 bytes")
	ErrMessageTooFew = errors.New("message shorter than CoAP header")
	ErrBadVersion    = errors.New("unsupported CoAP version")
	ErrBadOption     = errors.New("malformed option")
	ErrEmptyPayload  = errors.New("payload marker present but payload empty")
)

// Message is a single CoAP message.
type Message struct {
	Type      Type
	Code      Code
	MessageID uint16
	Token     []byte
	Options   []Option
	Payload   []byte
}

// NewMessage creates a message with the specified type, code, and message ID.
func NewMessage(messageType Type, code Code, messageID uint16) *Message {
	m := new(Message)
	m.Type = messageType
	m.Code = code
	m.MessageID = messageID
	return m
}

func (m *Message) String() string {
	return "CoAPMessage(" + m.Type.String() + ", " + m.Code.String() + ")"
}

//
// Options
//

// AddOption appends an option. Ordering across numbers is normalised at
// encoding time; options with the same number keep insertion order.
func (m *Message) AddOption(number uint16, value []byte) {
	m.Options = append(m.Options, Option{Number: number, Value: value})
}

// AddUintOption appends an option with a minimum-length unsigned integer value.
func (m *Message) AddUintOption(number uint16, value uint32) {
	m.AddOption(number, EncodeUintOption(value))
}

// GetOption returns the first option with the specified number.
func (m *Message) GetOption(number uint16) (Option, bool) {
	for _, opt := range m.Options {
		if opt.Number == number {
			return opt, true
		}
	}
	return Option{}, false
}

// GetOptions returns all options with the specified number in order.
func (m *Message) GetOptions(number uint16) []Option {
	var opts []Option
	for _, opt := range m.Options {
		if opt.Number == number {
			opts = append(opts, opt)
		}
	}
	return opts
}

// RemoveOptions removes all options with the specified number.
func (m *Message) RemoveOptions(number uint16) {
	kept := m.Options[:0]
	for _, opt := range m.Options {
		if opt.Number != number {
			kept = append(kept, opt)
		}
	}
	m.Options = kept
}

// SetUriPath sets the Uri-Path options from a slash-separated path.
func (m *Message) SetUriPath(path string) {
	m.RemoveOptions(OptionUriPath)
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			m.AddOption(OptionUriPath, []byte(segment))
		}
	}
}

// UriPath reassembles the Uri-Path options into a slash-separated path.
func (m *Message) UriPath() string {
	var segments []string
	for _, opt := range m.GetOptions(OptionUriPath) {
		segments = append(segments, string(opt.Value))
	}
	return strings.Join(segments, "/")
}

// Block1 returns the decoded Block1 option, if present.
func (m *Message) Block1() (Block, bool) {
	opt, ok := m.GetOption(OptionBlock1)
	if !ok {
		return Block{}, false
	}
	block, err := DecodeBlock(opt.Value)
	if err != nil {
		return Block{}, false
	}
	return block, true
}

// Block2 returns the decoded Block2 option, if present.
func (m *Message) Block2() (Block, bool) {
	opt, ok := m.GetOption(OptionBlock2)
	if !ok {
		return Block{}, false
	}
	block, err := DecodeBlock(opt.Value)
	if err != nil {
		return Block{}, false
	}
	return block, true
}

// SetBlock1 sets the Block1 option, replacing any existing one.
func (m *Message) SetBlock1(block Block) {
	m.RemoveOptions(OptionBlock1)
	m.AddOption(OptionBlock1, block.Encode())
}

// SetBlock2 sets the Block2 option, replacing any existing one.
func (m *Message) SetBlock2(block Block) {
	m.RemoveOptions(OptionBlock2)
	m.AddOption(OptionBlock2, block.Encode())
}

// ContentFormat returns the Content-Format option value, if present.
func (m *Message) ContentFormat() (uint32, bool) {
	opt, ok := m.GetOption(OptionContentFormat)
	if !ok {
		return 0, false
	}
	return opt.UintValue(), true
}

//
// Wire codec
//

// Encode produces the wire form of the message.
func (m *Message) Encode() ([]byte, error) {
	if len(m.Token) > 8 {
		return nil, ErrTokenTooLong
	}

	wire := make([]byte, 0, 4+len(m.Token)+len(m.Payload)+4*len(m.Options))
	wire = append(wire,
		Version<<6|byte(m.Type)<<4|byte(len(m.Token)),
		byte(m.Code),
		byte(m.MessageID>>8),
		byte(m.MessageID))
	wire = append(wire, m.Token...)

	// Delta encoding requires ascending option numbers; equal numbers keep
	// their relative order.
	sorted := make([]Option, len(m.Options))
	copy(sorted, m.Options)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Number < sorted[j].Number
	})

	prev := uint16(0)
	for _, opt := range sorted {
		deltaNibble, deltaExt := optionArg(opt.Number - prev)
		lenNibble, lenExt := optionArg(uint16(len(opt.Value)))
		wire = append(wire, deltaNibble<<4|lenNibble)
		wire = append(wire, deltaExt...)
		wire = append(wire, lenExt...)
		wire = append(wire, opt.Value...)
		prev = opt.Number
	}

	if len(m.Payload) > 0 {
		wire = append(wire, PayloadMarker)
		wire = append(wire, m.Payload...)
	}
	return wire, nil
}

// Decode parses a CoAP message from its wire form.
func Decode(wire []byte) (*Message, error) {
	if len(wire) < 4 {
		return nil, ErrMessageTooFew
	}
	if wire[0]>>6 != Version {
		return nil, ErrBadVersion
	}

	m := new(Message)
	m.Type = Type(wire[0] >> 4 & 0x03)
	tkl := int(wire[0] & 0x0F)
	m.Code = Code(wire[1])
	m.MessageID = uint16(wire[2])<<8 | uint16(wire[3])

	if tkl > 8 {
		return nil, ErrTokenTooLong
	}
	if len(wire) < 4+tkl {
		return nil, ErrMessageTooFew
	}
	m.Token = append([]byte{}, wire[4:4+tkl]...)

	pos := 4 + tkl
	number := uint16(0)
	for pos < len(wire) {
		if wire[pos] == PayloadMarker {
			pos++
			if pos == len(wire) {
				return nil, ErrEmptyPayload
			}
			m.Payload = append([]byte{}, wire[pos:]...)
			return m, nil
		}

		deltaNibble := wire[pos] >> 4
		lenNibble := wire[pos] & 0x0F
		pos++

		delta, n, err := decodeOptionArg(deltaNibble, wire[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		length, n, err := decodeOptionArg(lenNibble, wire[pos:])
		if err != nil {
			return nil, err
		}
		pos += n

		if pos+int(length) > len(wire) {
			return nil, ErrBadOption
		}
		number += delta
		m.Options = append(m.Options, Option{
			Number: number,
			Value:  append([]byte{}, wire[pos:pos+int(length)]...),
		})
		pos += int(length)
	}
	return m, nil
}

func decodeOptionArg(nibble uint8, rest []byte) (uint16, int, error) {
	switch nibble {
	case 13:
		if len(rest) < 1 {
			return 0, 0, ErrBadOption
		}
		return uint16(rest[0]) + 13, 1, nil
	case 14:
		if len(rest) < 2 {
			return 0, 0, ErrBadOption
		}
		return (uint16(rest[0])<<8 | uint16(rest[1])) + 269, 2, nil
	case 15:
		return 0, 0, ErrBadOption
	default:
		return uint16(nibble), 0, nil
	}
}
