/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package mgmt

import (
	"strings"

	"github.com/velocity-sp/mvdctl/core"
)

// Model identifies the switch family.
type Model int

// Known switch models.
const (
	ModelUnknown Model = iota
	ModelLAN9662
	ModelLAN9668
	ModelLAN9692
)

func (m Model) String() string {
	switch m {
	case ModelLAN9662:
		return "LAN9662"
	case ModelLAN9668:
		return "LAN9668"
	case ModelLAN9692:
		return "LAN9692"
	default:
		return "Unknown"
	}
}

// modelForPortCount infers the model from the number of populated ports.
var modelForPortCount = map[int]Model{
	2:  ModelLAN9662,
	8:  ModelLAN9668,
	12: ModelLAN9692,
}

// DeviceInfo describes an identified device.
type DeviceInfo struct {
	Model     Model
	PortCount int
	Checksum  []byte
	Version   string
}

// Identify reads the YANG library checksum and the interface list, inferring
// the model from the populated port count. An unknown count yields
// ModelUnknown, not a failure.
func (m *Client) Identify() (*DeviceInfo, error) {
	info := new(DeviceInfo)
	info.Version = m.engine.Announcement()

	checksum, err := m.YangGet("/ietf-constrained-yang-library:yang-library/checksum")
	if err != nil {
		return nil, err
	}
	if bytes, ok := checksum.([]byte); ok {
		info.Checksum = bytes
	}

	interfaces, err := m.YangGet("/ietf-interfaces:interfaces")
	if err != nil {
		return nil, err
	}
	info.PortCount = countInterfaces(interfaces)

	model, ok := modelForPortCount[info.PortCount]
	if !ok {
		core.LogWarn(m, "Unrecognised port count ", info.PortCount, " - model unknown")
		model = ModelUnknown
	}
	info.Model = model
	return info, nil
}

// countInterfaces walks a decoded data tree looking for the interface list.
func countInterfaces(value interface{}) int {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, child := range v {
			if list, ok := child.([]interface{}); ok && strings.HasSuffix(key, "interface") {
				return len(list)
			}
		}
		for _, child := range v {
			if count := countInterfaces(child); count > 0 {
				return count
			}
		}
	case []interface{}:
		for _, child := range v {
			if count := countInterfaces(child); count > 0 {
				return count
			}
		}
	}
	return 0
}
