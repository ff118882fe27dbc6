/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package mup1_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velocity-sp/mvdctl/mup1"
)

func TestParsePingWithoutAlignmentEOF(t *testing.T) {
	// Some firmware revisions omit the second EOF on empty frames; the
	// checksum then only covers the single EOF.
	p := mup1.NewParser()
	frames := p.Feed([]byte{0x3E, 0x50, 0x3C, '8', '5', 'A', 'F'})
	require.Equal(t, 1, len(frames))
	assert.Equal(t, mup1.TypePing, frames[0].Type)
	assert.Equal(t, 0, len(frames[0].Payload))
}

func TestParseRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x01},
		{0x00, 0xFF, 0x3E, 0x3C, 0x5C},
		{0x41, 0x42, 0x43, 0x44},
	}
	for _, payload := range payloads {
		p := mup1.NewParser()
		frame := mup1.NewFrame(mup1.TypeCoAP, payload)
		frames := p.Feed(frame.Encode())
		require.Equal(t, 1, len(frames))
		assert.Equal(t, mup1.TypeCoAP, frames[0].Type)
		assert.Equal(t, frame.Payload, frames[0].Payload)
	}
}

func TestParseRoundTripAllLengths(t *testing.T) {
	p := mup1.NewParser()
	p.SetMaxFrameSize(4096)
	for length := 0; length <= 2048; length += 97 {
		payload := make([]byte, length)
		for i := range payload {
			payload[i] = byte(i * 7)
		}
		frame := mup1.NewFrame(mup1.TypeCoAP, payload)
		frames := p.Feed(frame.Encode())
		require.Equal(t, 1, len(frames), "length %d", length)
		assert.Equal(t, frame.Payload, frames[0].Payload, "length %d", length)
	}
}

func TestParseIncremental(t *testing.T) {
	p := mup1.NewParser()
	wire := mup1.NewFrame(mup1.TypeCoAP, []byte{0x10, 0x20, 0x30}).Encode()
	var frames []*mup1.Frame
	for _, b := range wire {
		frames = append(frames, p.Feed([]byte{b})...)
	}
	require.Equal(t, 1, len(frames))
	assert.Equal(t, []byte{0x10, 0x20, 0x30}, frames[0].Payload)
}

func TestParseMultipleFramesInOneCall(t *testing.T) {
	p := mup1.NewParser()
	var wire []byte
	wire = append(wire, mup1.NewFrame(mup1.TypePing, nil).Encode()...)
	wire = append(wire, mup1.NewFrame(mup1.TypeCoAP, []byte{0x60}).Encode()...)
	frames := p.Feed(wire)
	require.Equal(t, 2, len(frames))
	assert.Equal(t, mup1.TypePing, frames[0].Type)
	assert.Equal(t, mup1.TypeCoAP, frames[1].Type)
}

func TestParseDiscardsGarbageBetweenFrames(t *testing.T) {
	p := mup1.NewParser()
	var wire []byte
	wire = append(wire, 0x01, 0x02, 0x41, 0x42)
	wire = append(wire, mup1.NewFrame(mup1.TypePing, nil).Encode()...)
	frames := p.Feed(wire)
	require.Equal(t, 1, len(frames))
	assert.Equal(t, mup1.TypePing, frames[0].Type)
}

func TestParseChecksumMismatchCounted(t *testing.T) {
	p := mup1.NewParser()
	wire := mup1.NewFrame(mup1.TypeCoAP, []byte{0x11, 0x22, 0x33}).Encode()
	wire[len(wire)-1] ^= 0x01
	frames := p.Feed(wire)
	assert.Equal(t, 0, len(frames))
	assert.Equal(t, uint64(1), p.NChecksumErrors())
	assert.Equal(t, uint64(0), p.NFrames())

	// The parser must recover for the next frame.
	frames = p.Feed(mup1.NewFrame(mup1.TypePing, nil).Encode())
	require.Equal(t, 1, len(frames))
	assert.Equal(t, uint64(1), p.NFrames())
}

func TestParseResyncOnStraySOF(t *testing.T) {
	p := mup1.NewParser()
	// A truncated frame followed immediately by a complete one.
	wire := []byte{0x3E, 0x43, 0x11, 0x22}
	wire = append(wire, mup1.NewFrame(mup1.TypePing, nil).Encode()...)
	frames := p.Feed(wire)
	require.Equal(t, 1, len(frames))
	assert.Equal(t, mup1.TypePing, frames[0].Type)
	assert.Equal(t, uint64(1), p.NAborts())
}

func TestParseRawSpecialByteAborts(t *testing.T) {
	p := mup1.NewParser()
	frames := p.Feed([]byte{0x3E, 0x43, 0x11, 0x00, 0x22, 0x3C})
	assert.Equal(t, 0, len(frames))
	assert.Equal(t, uint64(1), p.NAborts())
}

func TestParseInvalidEscapeAborts(t *testing.T) {
	p := mup1.NewParser()
	frames := p.Feed([]byte{0x3E, 0x43, 0x5C, 0x99, 0x3C})
	assert.Equal(t, 0, len(frames))
	assert.Equal(t, uint64(1), p.NAborts())
}

func TestParseOversizeAborts(t *testing.T) {
	p := mup1.NewParser()
	p.SetMaxFrameSize(16)
	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = 0x42
	}
	frames := p.Feed(mup1.NewFrame(mup1.TypeCoAP, payload).Encode())
	assert.Equal(t, 0, len(frames))
	assert.Equal(t, uint64(1), p.NAborts())

	// Resynchronises at the next SOF.
	frames = p.Feed(mup1.NewFrame(mup1.TypePing, nil).Encode())
	require.Equal(t, 1, len(frames))
}
