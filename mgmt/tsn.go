/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package mgmt

import (
	"errors"
	"strconv"
)

const gateParameterTablePath = "/ietf-interfaces:interfaces/interface/ieee802-dot1q-sched:gate-parameter-table"
const trafficClassShapersPath = "/ietf-interfaces:interfaces/interface/mchp-velocitysp-port:eth-qos/traffic-class-shapers"
const ptpInstancePath = "/ieee1588-ptp:ptp/instances/instance"

// Rational is a fraction of seconds; a denominator of 1e9 expresses the
// numerator in nanoseconds.
type Rational struct {
	Numerator   uint32
	Denominator uint32
}

// NanosecondsPerSecond is the denominator expressing cycle times in nanoseconds.
const NanosecondsPerSecond = 1000000000

// Timestamp is a PTP base time.
type Timestamp struct {
	Seconds     uint64
	Nanoseconds uint32
}

// GateOperation is one entry of a Time-Aware Shaper control list. GateStates
// is an 8-bit mask, one bit per traffic class 0..7.
type GateOperation struct {
	GateStates   uint8
	TimeInterval uint32 // nanoseconds
}

// GateStatesMask builds a gate-state mask from open traffic classes.
func GateStatesMask(classes ...int) uint8 {
	var mask uint8
	for _, class := range classes {
		if class >= 0 && class <= 7 {
			mask |= 1 << uint(class)
		}
	}
	return mask
}

// TASConfig is a Time-Aware Shaper schedule for one port.
type TASConfig struct {
	GateEnabled     bool
	AdminGateStates uint8
	CycleTime       Rational
	BaseTime        Timestamp
	ControlList     []GateOperation
	ConfigChange    bool
}

// ConfigureTAS writes a Qbv gate schedule to the specified port.
func (m *Client) ConfigureTAS(port string, cfg TASConfig) error {
	if len(cfg.ControlList) == 0 {
		return errors.New("control list is empty")
	}
	if cfg.CycleTime.Denominator == 0 {
		return errors.New("cycle time denominator is zero")
	}

	controlList := make([]interface{}, 0, len(cfg.ControlList))
	for i, op := range cfg.ControlList {
		controlList = append(controlList, map[string]interface{}{
			"index":          uint64(i),
			"operation-name": "set-gate-states",
			"sgs-params": map[string]interface{}{
				"gate-states-value":   op.GateStates,
				"time-interval-value": op.TimeInterval,
			},
		})
	}

	payload := map[string]interface{}{
		gateParameterTablePath + "/gate-enabled":      cfg.GateEnabled,
		gateParameterTablePath + "/admin-gate-states": cfg.AdminGateStates,
		gateParameterTablePath + "/admin-cycle-time": map[string]interface{}{
			"numerator":   cfg.CycleTime.Numerator,
			"denominator": cfg.CycleTime.Denominator,
		},
		gateParameterTablePath + "/admin-base-time": map[string]interface{}{
			"seconds":     cfg.BaseTime.Seconds,
			"nanoseconds": cfg.BaseTime.Nanoseconds,
		},
		gateParameterTablePath + "/admin-control-list": controlList,
		gateParameterTablePath + "/config-change":      cfg.ConfigChange,
	}
	return m.yangSet(gateParameterTablePath, payload, "name="+port)
}

// CBSConfig is a Credit-Based Shaper setting for one traffic class.
type CBSConfig struct {
	TrafficClass uint8
	IdleSlope    uint32 // kilobits per second
}

// ConfigureCBS writes a Qav idle slope to the specified port.
func (m *Client) ConfigureCBS(port string, cfg CBSConfig) error {
	if cfg.TrafficClass > 7 {
		return errors.New("traffic class out of range")
	}

	payload := map[string]interface{}{
		trafficClassShapersPath + "/traffic-class": cfg.TrafficClass,
		trafficClassShapersPath + "/credit-based": map[string]interface{}{
			"idle-slope": cfg.IdleSlope,
		},
	}
	return m.yangSet(trafficClassShapersPath, payload, "name="+port)
}

// PTPInstance configures one PTP clock instance.
type PTPInstance struct {
	InstanceIndex uint32
	Priority1     uint8
	Priority2     uint8
	DomainNumber  uint8
}

// ConfigurePTPInstance writes the default dataset of a PTP instance.
func (m *Client) ConfigurePTPInstance(cfg PTPInstance) error {
	payload := map[string]interface{}{
		ptpInstancePath + "/instance-index": cfg.InstanceIndex,
		ptpInstancePath + "/default-ds": map[string]interface{}{
			"priority1":     cfg.Priority1,
			"priority2":     cfg.Priority2,
			"domain-number": cfg.DomainNumber,
		},
	}
	return m.yangSet(ptpInstancePath, payload,
		"instance-index="+strconv.FormatUint(uint64(cfg.InstanceIndex), 10))
}
