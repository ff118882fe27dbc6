/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/velocity-sp/mvdctl/core"
	"github.com/velocity-sp/mvdctl/engine"
	"github.com/velocity-sp/mvdctl/executor"
	"github.com/velocity-sp/mvdctl/mgmt"
	"github.com/velocity-sp/mvdctl/transport"
)

// Version of mvdctl.
var Version string

// Exit codes.
const (
	exitOK        = 0
	exitUsage     = 1
	exitTransport = 2
	exitProtocol  = 3
	exitDevice    = 4
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: mvdctl [flags] <command> [args]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  list-ports                   List candidate serial ports")
	fmt.Fprintln(os.Stderr, "  connect <port>               Verify a device answers on the port")
	fmt.Fprintln(os.Stderr, "  info                         Identify the connected device")
	fmt.Fprintln(os.Stderr, "  get <path>                   Read a YANG data tree")
	fmt.Fprintln(os.Stderr, "  set <path> <value-json>      Write a YANG data tree")
	fmt.Fprintln(os.Stderr, "  delete <path>                Delete a YANG data tree")
	fmt.Fprintln(os.Stderr, "  rpc <path> [<params-json>]   Invoke a YANG RPC or action")
	fmt.Fprintln(os.Stderr, "  firmware <file>              Stream a firmware image to the device")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

func run() int {
	var shouldPrintVersion bool
	flag.BoolVar(&shouldPrintVersion, "version", false, "Print version and exit")
	var configFileName string
	flag.StringVar(&configFileName, "config", "", "Configuration file location")
	var port string
	flag.StringVar(&port, "port", "", "Serial device or ws:// bridge URL")
	var cpuProfile string
	flag.StringVar(&cpuProfile, "cpu-profile", "", "Enable CPU profiling (output to specified file)")
	var memProfile string
	flag.StringVar(&memProfile, "mem-profile", "", "Enable memory profiling (output to specified file)")
	var blockProfile string
	flag.StringVar(&blockProfile, "block-profile", "", "Enable block profiling (output to specified file)")
	flag.Usage = usage
	flag.Parse()

	if shouldPrintVersion {
		fmt.Println("mvdctl: VelocityDRIVE-SP control tool")
		fmt.Println("Version " + Version)
		return exitOK
	}

	args := flag.Args()
	if len(args) < 1 {
		usage()
		return exitUsage
	}
	command := args[0]

	if command == "list-ports" {
		for _, p := range transport.ListPorts() {
			fmt.Println(p)
		}
		return exitOK
	}

	config := &executor.MvdctlConfig{
		Version:        Version,
		ConfigFileName: configFileName,
		Port:           port,
		CpuProfile:     cpuProfile,
		MemProfile:     memProfile,
		BlockProfile:   blockProfile,
	}
	if command == "connect" {
		if len(args) != 2 {
			usage()
			return exitUsage
		}
		config.Port = args[1]
	}

	stack := executor.NewMvdctl(config)
	stack.StartProfiler()
	if err := stack.Connect(); err != nil {
		core.LogError("Main", "Unable to connect: ", err)
		return exitTransport
	}
	defer stack.Close()

	code, err := dispatch(stack.Client(), command, args[1:])
	if err != nil {
		core.LogError("Main", "Command failed: ", err)
	}
	return code
}

func dispatch(client *mgmt.Client, command string, args []string) (int, error) {
	switch command {
	case "connect":
		banner, err := client.Ping()
		if err != nil {
			return exitCode(err), err
		}
		fmt.Println(banner)
		return exitOK, nil

	case "info":
		info, err := client.Identify()
		if err != nil {
			return exitCode(err), err
		}
		fmt.Println("Model:     ", info.Model)
		fmt.Println("Ports:     ", info.PortCount)
		if info.Version != "" {
			fmt.Println("Version:   ", info.Version)
		}
		if len(info.Checksum) > 0 {
			fmt.Println("Checksum:  ", hex.EncodeToString(info.Checksum))
		}
		return exitOK, nil

	case "get":
		if len(args) != 1 {
			usage()
			return exitUsage, nil
		}
		value, err := client.YangGet(args[0])
		if err != nil {
			return exitCode(err), err
		}
		return exitOK, printJSON(value)

	case "set":
		if len(args) != 2 {
			usage()
			return exitUsage, nil
		}
		value, err := parseJSONValue(args[1])
		if err != nil {
			usage()
			return exitUsage, err
		}
		if err := client.YangSet(args[0], value); err != nil {
			return exitCode(err), err
		}
		return exitOK, nil

	case "delete":
		if len(args) != 1 {
			usage()
			return exitUsage, nil
		}
		if err := client.YangDelete(args[0]); err != nil {
			return exitCode(err), err
		}
		return exitOK, nil

	case "rpc":
		if len(args) < 1 || len(args) > 2 {
			usage()
			return exitUsage, nil
		}
		var params interface{}
		if len(args) == 2 {
			var err error
			params, err = parseJSONValue(args[1])
			if err != nil {
				usage()
				return exitUsage, err
			}
		}
		output, err := client.YangRPC(args[0], params)
		if err != nil {
			return exitCode(err), err
		}
		if output != nil {
			return exitOK, printJSON(output)
		}
		return exitOK, nil

	case "firmware":
		if len(args) != 1 {
			usage()
			return exitUsage, nil
		}
		image, err := os.ReadFile(args[0])
		if err != nil {
			return exitUsage, err
		}
		err = client.FirmwareUpdate(image, func(transferred int, total int) {
			fmt.Printf("\r%d / %d bytes", transferred, total)
		})
		fmt.Println()
		if err != nil {
			return exitCode(err), err
		}
		return exitOK, nil

	default:
		usage()
		return exitUsage, nil
	}
}

// exitCode maps an operation error onto the documented exit codes.
func exitCode(err error) int {
	var clientErr *engine.ClientError
	var serverErr *engine.ServerError
	switch {
	case errors.As(err, &clientErr), errors.As(err, &serverErr):
		return exitDevice
	case errors.Is(err, core.ErrTransportDown), errors.Is(err, core.ErrNotConnected):
		return exitTransport
	default:
		return exitProtocol
	}
}

// parseJSONValue decodes a JSON document, mapping integral numbers onto Go
// integers so that leaves validate against their YANG datatypes.
func parseJSONValue(document string) (interface{}, error) {
	var value interface{}
	if err := json.Unmarshal([]byte(document), &value); err != nil {
		return nil, err
	}
	return normalizeJSON(value), nil
}

func normalizeJSON(value interface{}) interface{} {
	switch v := value.(type) {
	case float64:
		if v == math.Trunc(v) {
			if v >= 0 {
				return uint64(v)
			}
			return int64(v)
		}
		return v
	case []interface{}:
		for i := range v {
			v[i] = normalizeJSON(v[i])
		}
		return v
	case map[string]interface{}:
		for key := range v {
			v[key] = normalizeJSON(v[key])
		}
		return v
	default:
		return v
	}
}

func printJSON(value interface{}) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
