/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package trace_test

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velocity-sp/mvdctl/mup1"
	"github.com/velocity-sp/mvdctl/trace"
	"github.com/velocity-sp/mvdctl/transport"
)

func TestCaptureRecordsFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mup1.pcap")
	capture, err := trace.NewCapture(path)
	require.NoError(t, err)

	ping := mup1.NewFrame(mup1.TypePing, nil).Encode()
	require.NoError(t, capture.Record(ping))
	require.NoError(t, capture.Record(mup1.NewFrame(mup1.TypeCoAP, []byte{0x40, 0x01, 0x00, 0x01}).Encode()))
	assert.Equal(t, uint64(2), capture.NPackets())
	require.NoError(t, capture.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	reader, err := pcapgo.NewReader(file)
	require.NoError(t, err)

	data, _, err := reader.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, ping, data)
}

func TestCaptureTransportTapsBothDirections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tap.pcap")
	capture, err := trace.NewCapture(path)
	require.NoError(t, err)

	local, remote := net.Pipe()
	tapped := trace.NewCaptureTransport(transport.NewStreamTransport("pipe://tap", local), capture)

	received := make(chan []byte, 1)
	tapped.SetReceiveCallback(func(data []byte) {
		buf := make([]byte, len(data))
		copy(buf, data)
		received <- buf
	})
	go tapped.Run()

	go func() {
		readBack := make([]byte, 2)
		remote.Read(readBack)
		remote.Write([]byte{0xBB})
	}()

	require.NoError(t, tapped.Send([]byte{0xAA, 0xAB}))
	select {
	case data := <-received:
		assert.Equal(t, []byte{0xBB}, data)
	case <-time.After(time.Second):
		t.Fatal("no bytes delivered")
	}

	tapped.Close()
	assert.Equal(t, uint64(2), capture.NPackets())
	require.NoError(t, capture.Close())
}
