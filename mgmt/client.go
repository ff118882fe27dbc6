/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

// Package mgmt exposes typed management operations on top of the CoAP
// engine, the CBOR codec, and the SID table.
package mgmt

import (
	"time"

	"github.com/velocity-sp/mvdctl/cbor"
	"github.com/velocity-sp/mvdctl/coap"
	"github.com/velocity-sp/mvdctl/core"
	"github.com/velocity-sp/mvdctl/engine"
	"github.com/velocity-sp/mvdctl/sid"
)

const pingTimeout = 2 * time.Second

// Client is the management facade for one device.
type Client struct {
	engine  *engine.Engine
	table   *sid.Table
	encoder *cbor.Encoder
	decoder *cbor.Decoder

	// The firmware upgrade resource varies across firmware lines, so it is
	// device-specific configuration.
	firmwareResource string
}

// MakeClient creates a management client over the specified engine.
func MakeClient(e *engine.Engine, table *sid.Table) *Client {
	m := new(Client)
	m.engine = e
	m.table = table
	m.encoder = cbor.NewEncoder(table)
	m.decoder = cbor.NewDecoder(table)
	m.firmwareResource = core.GetConfigStringDefault("firmware.resource",
		"mchp-velocitysp-system:firmware-upgrade")
	return m
}

func (m *Client) String() string {
	return "Management"
}

// Engine returns the underlying engine.
func (m *Client) Engine() *engine.Engine {
	return m.engine
}

// Table returns the SID table in use.
func (m *Client) Table() *sid.Table {
	return m.table
}

// Ping checks device liveness over MUP1, returning the status banner.
func (m *Client) Ping() (string, error) {
	return m.engine.Ping(pingTimeout)
}

// SaveConfig persists the running configuration to flash.
func (m *Client) SaveConfig() error {
	_, err := m.engine.Do(coap.CodePOST, "/mchp-velocitysp-system:save-config", nil,
		engine.DefaultRequestOptions())
	return err
}

// Reset reboots the device.
func (m *Client) Reset() error {
	_, err := m.engine.Do(coap.CodePOST, "/mchp-velocitysp-system:reset", nil,
		engine.DefaultRequestOptions())
	return err
}

// SystemRequest sends a low-level MUP1 system request. Fire and forget.
func (m *Client) SystemRequest() error {
	return m.engine.SystemRequest(nil)
}
