/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

// Package trace captures MUP1 wire traffic to pcap files for offline
// dissection.
package trace

import (
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// linkTypeUser0 is the private-use link type carrying raw MUP1 frames.
const linkTypeUser0 layers.LinkType = 147

const snapshotLength = 65536

// Capture writes both directions of MUP1 traffic to one pcap file.
type Capture struct {
	mu     sync.Mutex
	file   *os.File
	writer *pcapgo.Writer

	nPackets uint64
}

// NewCapture creates a pcap file at the specified path.
func NewCapture(path string) (*Capture, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	writer := pcapgo.NewWriter(file)
	if err := writer.WriteFileHeader(snapshotLength, linkTypeUser0); err != nil {
		file.Close()
		return nil, err
	}
	return &Capture{file: file, writer: writer}, nil
}

func (c *Capture) String() string {
	return "Capture"
}

// Record appends one frame to the capture.
func (c *Capture) Record(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writer == nil {
		return os.ErrClosed
	}
	err := c.writer.WritePacket(gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(frame),
		Length:        len(frame),
	}, frame)
	if err == nil {
		c.nPackets++
	}
	return err
}

// NPackets returns the number of frames recorded.
func (c *Capture) NPackets() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nPackets
}

// Close flushes and closes the capture file.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writer == nil {
		return nil
	}
	c.writer = nil
	return c.file.Close()
}
