/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

// Package executor wires the configuration, transport, engine, and
// management facade into a running control stack.
package executor

import (
	"errors"
	"strings"
	"time"

	"github.com/velocity-sp/mvdctl/core"
	"github.com/velocity-sp/mvdctl/engine"
	"github.com/velocity-sp/mvdctl/mgmt"
	"github.com/velocity-sp/mvdctl/sid"
	"github.com/velocity-sp/mvdctl/trace"
	"github.com/velocity-sp/mvdctl/transport"
)

// MvdctlConfig is the configuration of the control stack.
type MvdctlConfig struct {
	Version        string
	ConfigFileName string

	// Port is the endpoint to connect to: a serial device path or a
	// ws:// bridge URL. Empty uses the uart.device config key.
	Port string

	CpuProfile   string
	MemProfile   string
	BlockProfile string
}

// Mvdctl is the wrapper class for the control stack.
// Note: only one instance of this class should be created per transport.
type Mvdctl struct {
	config   *MvdctlConfig
	profiler *Profiler

	transport transport.Transport
	capture   *trace.Capture
	engine    *engine.Engine
	client    *mgmt.Client
}

// NewMvdctl creates and configures the control stack without connecting.
func NewMvdctl(config *MvdctlConfig) *Mvdctl {
	core.Version = config.Version
	core.StartTimestamp = time.Now()

	if config.ConfigFileName != "" {
		core.LoadConfig(config.ConfigFileName)
	} else {
		core.LoadDefaultConfig()
	}
	core.InitializeLogger()

	m := new(Mvdctl)
	m.config = config
	m.profiler = NewProfiler(config)
	return m
}

// Connect opens the transport, starts the engine, and verifies the device.
func (m *Mvdctl) Connect() error {
	port := m.config.Port
	if port == "" {
		port = core.GetConfigStringDefault("uart.device", "")
	}
	if port == "" {
		return errors.New("no port specified")
	}

	var t transport.Transport
	var err error
	if strings.HasPrefix(port, "ws://") || strings.HasPrefix(port, "wss://") {
		t, err = transport.DialWebSocket(port)
	} else {
		baud := core.GetConfigIntDefault("uart.baud", transport.DefaultBaudRate)
		t, err = transport.NewSerialTransport(port, baud)
	}
	if err != nil {
		return err
	}

	if pcapFile := core.GetConfigStringDefault("trace.pcap_file", ""); pcapFile != "" {
		m.capture, err = trace.NewCapture(pcapFile)
		if err != nil {
			core.LogWarn(m, "Unable to open pcap capture: ", err)
		} else {
			core.LogInfo(m, "Capturing MUP1 traffic to ", pcapFile)
			t = trace.NewCaptureTransport(t, m.capture)
		}
	}

	m.transport = t
	m.engine = engine.MakeEngine(t)
	m.engine.Start()
	if err := m.engine.Connect(); err != nil {
		m.engine.Close()
		return err
	}
	m.client = mgmt.MakeClient(m.engine, sid.DefaultTable())

	transport.EmitEvent(transport.EventUp, t)
	return nil
}

func (m *Mvdctl) String() string {
	return "Mvdctl"
}

// Client returns the management facade. Only valid after Connect.
func (m *Mvdctl) Client() *mgmt.Client {
	return m.client
}

// Engine returns the protocol engine. Only valid after Connect.
func (m *Mvdctl) Engine() *engine.Engine {
	return m.engine
}

// StartProfiler starts CPU/memory/block profiling per the configuration.
func (m *Mvdctl) StartProfiler() error {
	return m.profiler.Start()
}

// Close shuts the stack down.
func (m *Mvdctl) Close() {
	if m.engine != nil {
		m.engine.Close()
	}
	if m.transport != nil {
		transport.EmitEvent(transport.EventClosed, m.transport)
	}
	if m.capture != nil {
		m.capture.Close()
	}
	m.profiler.Stop()
}
