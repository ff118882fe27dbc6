/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package coap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velocity-sp/mvdctl/coap"
)

func TestBlockEncodeDecode(t *testing.T) {
	cases := []coap.Block{
		{Num: 0, More: false, SZX: 4},
		{Num: 0, More: true, SZX: 4},
		{Num: 1, More: true, SZX: 0},
		{Num: 15, More: false, SZX: 6},
		{Num: 4096, More: true, SZX: 2},
		{Num: 1 << 19, More: false, SZX: 5},
	}
	for _, c := range cases {
		decoded, err := coap.DecodeBlock(c.Encode())
		require.NoError(t, err)
		assert.Equal(t, c, decoded, c.String())
	}
}

func TestBlockSize(t *testing.T) {
	assert.Equal(t, 16, coap.Block{SZX: 0}.Size())
	assert.Equal(t, 256, coap.Block{SZX: 4}.Size())
	assert.Equal(t, 1024, coap.Block{SZX: 6}.Size())
}

func TestBlockZeroEncodesEmpty(t *testing.T) {
	assert.Equal(t, 0, len(coap.Block{Num: 0, More: false, SZX: 0}.Encode()))
	decoded, err := coap.DecodeBlock(nil)
	require.NoError(t, err)
	assert.Equal(t, coap.Block{}, decoded)
}

func TestSzxForSize(t *testing.T) {
	szx, err := coap.SzxForSize(256)
	require.NoError(t, err)
	assert.Equal(t, uint8(4), szx)

	szx, err = coap.SzxForSize(16)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), szx)

	_, err = coap.SzxForSize(100)
	assert.Error(t, err)
	_, err = coap.SzxForSize(2048)
	assert.Error(t, err)
}
