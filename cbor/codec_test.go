/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package cbor_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velocity-sp/mvdctl/cbor"
)

// staticResolver is a test double for the SID table.
type staticResolver map[string]uint32

func (r staticResolver) SidForPath(path string) (uint32, bool) {
	sid, ok := r[path]
	return sid, ok
}

func (r staticResolver) PathForSid(sid uint32) (string, bool) {
	for path, s := range r {
		if s == sid {
			return path, true
		}
	}
	return "", false
}

var testResolver = staticResolver{
	"/ietf-interfaces:interfaces": 1000,
}

func TestIntegerEncoding(t *testing.T) {
	e := cbor.NewEncoder(nil)

	cases := []struct {
		value    interface{}
		expected []byte
	}{
		{uint64(0), []byte{0x00}},
		{uint64(23), []byte{0x17}},
		{uint64(24), []byte{0x18, 0x18}},
		{uint64(255), []byte{0x18, 0xFF}},
		{uint64(256), []byte{0x19, 0x01, 0x00}},
		{uint64(65536), []byte{0x1A, 0x00, 0x01, 0x00, 0x00}},
		{uint64(1) << 32, []byte{0x1B, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}},
		{int64(-1), []byte{0x20}},
		{int64(-24), []byte{0x37}},
		{int64(-25), []byte{0x38, 0x18}},
		{int64(-256), []byte{0x38, 0xFF}},
	}
	for _, c := range cases {
		wire, err := e.Encode(c.value)
		require.NoError(t, err)
		assert.Equal(t, c.expected, wire)
	}
}

func TestRoundTripScalars(t *testing.T) {
	e := cbor.NewEncoder(nil)
	d := cbor.NewDecoder(nil)

	values := []interface{}{
		uint64(0),
		uint64(1) << 60, // beyond 2^53, must survive intact
		int64(-1234567890123),
		"hello",
		[]byte{0x01, 0x02, 0x03},
		true,
		false,
		nil,
		float64(1.5),
		float64(-0.001),
	}
	for _, v := range values {
		wire, err := e.Encode(v)
		require.NoError(t, err)
		decoded, err := d.Decode(wire)
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
	}
}

func TestRoundTripStructures(t *testing.T) {
	e := cbor.NewEncoder(nil)
	d := cbor.NewDecoder(nil)

	value := map[string]interface{}{
		"name":    "eth0",
		"enabled": true,
		"speeds":  []interface{}{uint64(10), uint64(100), uint64(1000)},
		"nested": map[string]interface{}{
			"mtu": uint64(1500),
		},
	}
	wire, err := e.Encode(value)
	require.NoError(t, err)
	decoded, err := d.Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, value, decoded)
}

func TestCanonicalKeyOrderStable(t *testing.T) {
	e := cbor.NewEncoder(nil)
	value := map[string]interface{}{
		"bb": uint64(2), "a": uint64(1), "ccc": uint64(3), "d": uint64(4),
	}
	first, err := e.Encode(value)
	require.NoError(t, err)
	for i := 0; i < 16; i++ {
		again, err := e.Encode(value)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	// Shorter encoded keys sort first byte-wise ("a" < "d" < "bb" < "ccc").
	assert.Equal(t, byte(0x61), first[1]&0x7F)
}

func TestSidKeySubstitution(t *testing.T) {
	e := cbor.NewEncoder(testResolver)
	wire, err := e.Encode(map[string]interface{}{
		"/ietf-interfaces:interfaces": map[string]interface{}{},
	})
	require.NoError(t, err)
	// Map of one pair whose key is tag 256 (0xD9 0x01 0x00) wrapping 1000.
	assert.Equal(t, []byte{0xA1, 0xD9, 0x01, 0x00, 0x19, 0x03, 0xE8, 0xA0}, wire)

	d := cbor.NewDecoder(testResolver)
	decoded, err := d.Decode(wire)
	require.NoError(t, err)
	m, ok := decoded.(map[string]interface{})
	require.True(t, ok)
	_, ok = m["/ietf-interfaces:interfaces"]
	assert.True(t, ok)
}

func TestUnknownSidKeyIsOpaque(t *testing.T) {
	d := cbor.NewDecoder(testResolver)
	// Map with tag-256 key 4999, not in the table.
	decoded, err := d.Decode([]byte{0xA1, 0xD9, 0x01, 0x00, 0x19, 0x13, 0x87, 0xF5})
	require.NoError(t, err)
	m := decoded.(map[string]interface{})
	v, ok := m["SID:4999"]
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestYangTags(t *testing.T) {
	e := cbor.NewEncoder(nil)
	d := cbor.NewDecoder(nil)

	values := []interface{}{
		cbor.Bits{Value: "flag-a flag-b"},
		cbor.Enum{Value: uint64(3)},
		cbor.IdentityRef{Value: "iana-if-type:ethernetCsmacd"},
		cbor.InstanceID{Value: "/ietf-interfaces:interfaces/interface[name='eth0']"},
		cbor.SID(29304),
		cbor.DeltaSID(-4),
	}
	for _, v := range values {
		wire, err := e.Encode(v)
		require.NoError(t, err)
		decoded, err := d.Decode(wire)
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
	}
}

func TestFloat16And32Decode(t *testing.T) {
	d := cbor.NewDecoder(nil)

	// 1.0 as float16
	decoded, err := d.Decode([]byte{0xF9, 0x3C, 0x00})
	require.NoError(t, err)
	assert.Equal(t, float64(1.0), decoded)

	// -2.5 as float16
	decoded, err = d.Decode([]byte{0xF9, 0xC1, 0x00})
	require.NoError(t, err)
	assert.Equal(t, float64(-2.5), decoded)

	// 2^-15 subnormal half
	decoded, err = d.Decode([]byte{0xF9, 0x02, 0x00})
	require.NoError(t, err)
	assert.Equal(t, math.Pow(2, -15), decoded)

	// 100000.0 as float32
	decoded, err = d.Decode([]byte{0xFA, 0x47, 0xC3, 0x50, 0x00})
	require.NoError(t, err)
	assert.Equal(t, float64(100000.0), decoded)
}

func TestDecodeErrors(t *testing.T) {
	d := cbor.NewDecoder(nil)

	_, err := d.Decode([]byte{0x18})
	assert.Equal(t, cbor.ErrTruncated, err)

	_, err = d.Decode([]byte{0x9F})
	assert.Equal(t, cbor.ErrIndefinite, err)

	_, err = d.Decode([]byte{0x00, 0x00})
	assert.Equal(t, cbor.ErrTrailingBytes, err)

	// -(2^64) does not fit a 64-bit signed integer.
	_, err = d.Decode([]byte{0x3B, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	assert.Equal(t, cbor.ErrIntegerRange, err)

	_, err = d.Decode([]byte{0xD8, 0x63, 0x00})
	assert.ErrorIs(t, err, cbor.ErrUnknownTag)
}

func TestEncodeUnsupportedType(t *testing.T) {
	e := cbor.NewEncoder(nil)
	_, err := e.Encode(struct{}{})
	assert.ErrorIs(t, err, cbor.ErrUnsupportedType)
}
