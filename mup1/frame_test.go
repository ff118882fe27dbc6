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

func TestEncodeEmptyPing(t *testing.T) {
	frame := mup1.NewFrame(mup1.TypePing, []byte{})
	wire := frame.Encode()
	// Empty payload: even escaped length, so the EOF is doubled for alignment.
	assert.Equal(t, []byte{0x3E, 0x50, 0x3C, 0x3C, '8', '5', '7', '3'}, wire)
}

func TestEncodeEscapesAllSpecialBytes(t *testing.T) {
	frame := mup1.NewFrame(mup1.TypeTrace, []byte{0x00, 0xFF, 0x3E, 0x3C, 0x5C})
	wire := frame.Encode()
	assert.Equal(t, []byte{
		0x3E, 0x54,
		0x5C, 0x30,
		0x5C, 0x46,
		0x5C, 0x3E,
		0x5C, 0x3C,
		0x5C, 0x5C,
		0x3C, 0x3C,
		'B', '8', '2', '1',
	}, wire)
}

func TestEncodeOddPayloadSingleEOF(t *testing.T) {
	frame := mup1.NewFrame(mup1.TypeCoAP, []byte{0x40})
	wire := frame.Encode()
	require.Equal(t, 8, len(wire))
	assert.Equal(t, byte(0x3C), wire[3])
	assert.NotEqual(t, byte(0x3C), wire[4])
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, uint16(0x8573), mup1.Checksum([]byte{0x3E, 0x50, 0x3C, 0x3C}))
	// Odd-length input is padded with a zero low byte.
	assert.Equal(t, uint16(0x85AF), mup1.Checksum([]byte{0x3E, 0x50, 0x3C}))
	assert.Equal(t, uint16(0xFFFF), mup1.Checksum(nil))
}

func TestFrameTypeString(t *testing.T) {
	assert.Equal(t, "Announce", mup1.TypeAnnounce.String())
	assert.Equal(t, "CoAP", mup1.TypeCoAP.String())
	assert.Equal(t, "Ping", mup1.TypePing.String())
	assert.Equal(t, "SysReq", mup1.TypeSysReq.String())
	assert.Equal(t, "Trace", mup1.TypeTrace.String())
	assert.Equal(t, "Unknown", mup1.FrameType('x').String())
	assert.True(t, mup1.TypeCoAP.IsValid())
	assert.False(t, mup1.FrameType('Q').IsValid())
}
