/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package transport

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DefaultBaudRate is the UART rate the device ships with (8N1, no flow control).
const DefaultBaudRate = 115200

var baudFlags = map[int]uint32{
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	921600:  unix.B921600,
	1000000: unix.B1000000,
}

// NewSerialTransport opens the specified UART device in raw 8N1 mode and
// returns a stream transport over it.
func NewSerialTransport(device string, baud int) (*StreamTransport, error) {
	flag, ok := baudFlags[baud]
	if !ok {
		return nil, fmt.Errorf("unsupported baud rate %d", baud)
	}

	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", device, err)
	}

	termios := unix.Termios{
		Cflag:  unix.CS8 | unix.CREAD | unix.CLOCAL | flag,
		Ispeed: flag,
		Ospeed: flag,
	}
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &termios); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("unable to configure %s: %w", device, err)
	}
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("unable to flush %s: %w", device, err)
	}

	file := os.NewFile(uintptr(fd), device)
	return NewStreamTransport("serial://"+device, file), nil
}
