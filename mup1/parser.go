/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package mup1

import (
	"github.com/velocity-sp/mvdctl/core"
)

type parserState int

const (
	stateInit parserState = iota
	stateType
	stateData
	stateEsc
	stateEOF2
	stateChk
)

// Parser is an incremental MUP1 frame parser. It accepts arbitrary byte
// slices and yields zero or more complete frames per call. The parser is
// single-owner: all calls must come from the transport reader.
type Parser struct {
	state      parserState
	frameType  FrameType
	payload    []byte
	wire       []byte
	escapedLen int

	chkExpected uint16
	chkReceived uint16
	chkDigits   int

	maxFrameSize int

	// Counters
	nFrames         uint64
	nChecksumErrors uint64
	nAborts         uint64
}

// NewParser creates a new MUP1 parser.
func NewParser() *Parser {
	p := new(Parser)
	p.maxFrameSize = DefaultMaxFrameSize
	p.state = stateInit
	return p
}

func (p *Parser) String() string {
	return "MUP1Parser"
}

// SetMaxFrameSize sets the maximum accepted payload size.
func (p *Parser) SetMaxFrameSize(size int) {
	if size > 0 {
		p.maxFrameSize = size
	}
}

// NFrames returns the number of frames delivered.
func (p *Parser) NFrames() uint64 {
	return p.nFrames
}

// NChecksumErrors returns the number of frames discarded due to checksum mismatch.
func (p *Parser) NChecksumErrors() uint64 {
	return p.nChecksumErrors
}

// NAborts returns the number of frames abandoned before the checksum stage.
func (p *Parser) NAborts() uint64 {
	return p.nAborts
}

// Feed runs the parser over the specified bytes, returning any complete
// frames. Corrupted frames are discarded and counted; they are never
// surfaced as errors.
func (p *Parser) Feed(data []byte) []*Frame {
	var frames []*Frame
	for _, b := range data {
		if f := p.feedByte(b); f != nil {
			frames = append(frames, f)
		}
	}
	return frames
}

func (p *Parser) feedByte(b byte) *Frame {
	switch p.state {
	case stateInit:
		if b == SOF {
			p.beginFrame()
		}

	case stateType:
		if b == SOF {
			// Stray SOF, resynchronise here
			p.beginFrame()
			break
		}
		p.frameType = FrameType(b)
		p.wire = append(p.wire, b)
		p.state = stateData

	case stateData:
		switch b {
		case ESC:
			p.wire = append(p.wire, b)
			p.state = stateEsc
		case EOF:
			p.wire = append(p.wire, b)
			if p.escapedLen%2 == 1 {
				p.beginChecksum()
			} else {
				p.state = stateEOF2
			}
		case SOF:
			// An unescaped SOF means the previous frame was cut short
			p.abort()
			p.beginFrame()
		case 0x00, 0xFF:
			p.abort()
		default:
			p.appendData(b, 1)
		}

	case stateEsc:
		decoded, ok := unescape(b)
		if !ok {
			p.abort()
			break
		}
		p.wire = append(p.wire, b)
		p.appendData(decoded, 2)

	case stateEOF2:
		if b == EOF {
			p.wire = append(p.wire, b)
			p.beginChecksum()
			break
		}
		// Some senders omit the alignment EOF for empty frames; the byte we
		// just read is then the first checksum digit.
		p.beginChecksum()
		return p.feedByte(b)

	case stateChk:
		nibble, ok := hexNibble(b)
		if !ok {
			p.abort()
			break
		}
		p.chkReceived = p.chkReceived<<4 | nibble
		p.chkDigits++
		if p.chkDigits == 4 {
			return p.finishFrame()
		}
	}
	return nil
}

func (p *Parser) beginFrame() {
	p.state = stateType
	p.payload = nil
	p.wire = append(p.wire[:0], SOF)
	p.escapedLen = 0
}

// appendData appends one decoded payload byte that occupied wireBytes bytes
// on the wire. Plain bytes are also recorded into the checksum buffer here;
// escape sequences were recorded as they arrived.
func (p *Parser) appendData(b byte, wireBytes int) {
	if len(p.payload) >= p.maxFrameSize {
		core.LogDebug(p, "Frame payload exceeds ", p.maxFrameSize, " bytes - abandoning")
		p.abort()
		return
	}
	if wireBytes == 1 {
		p.wire = append(p.wire, b)
	}
	p.payload = append(p.payload, b)
	p.escapedLen += wireBytes
	p.state = stateData
}

func (p *Parser) beginChecksum() {
	p.chkExpected = Checksum(p.wire)
	p.chkReceived = 0
	p.chkDigits = 0
	p.state = stateChk
}

func (p *Parser) finishFrame() *Frame {
	defer func() {
		p.state = stateInit
	}()

	if p.chkReceived != p.chkExpected {
		p.nChecksumErrors++
		core.LogWarn(p, "Checksum mismatch: computed ", p.chkExpected, ", received ", p.chkReceived, " - DROP")
		return nil
	}

	p.nFrames++
	frame := new(Frame)
	frame.Type = p.frameType
	frame.Payload = make([]byte, len(p.payload))
	copy(frame.Payload, p.payload)
	return frame
}

func (p *Parser) abort() {
	p.nAborts++
	p.state = stateInit
}
