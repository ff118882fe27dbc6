/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package transport

import (
	"path/filepath"
	"sort"
)

var portGlobs = []string{
	"/dev/ttyACM*",
	"/dev/ttyUSB*",
	"/dev/tty.usbmodem*",
	"/dev/tty.usbserial*",
}

// ListPorts enumerates serial devices that may have a VelocityDRIVE-SP
// switch attached.
func ListPorts() []string {
	var ports []string
	for _, pattern := range portGlobs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		ports = append(ports, matches...)
	}
	sort.Strings(ports)
	return ports
}
