// a15kb-repl is an interactive line-oriented client for the a15kb daemon,
// mainly useful for poking at the fan service while debugging.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/mjguynn/a15kb/client"
	"github.com/mjguynn/a15kb/protocol"
)

func main() {
	socketName := pflag.String("socket-name", protocol.DefaultSocketName, "socket name inside the runtime directory")
	socketPath := pflag.String("socket-path", "", "explicit socket path (overrides --socket-name)")
	pflag.Parse()

	conn, err := dial(*socketName, *socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "a15kb-repl: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Println("Connected. Type \"help\" for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if quit := runCommand(conn, fields[0], fields[1:]); quit {
			return
		}
	}
}

func dial(socketName, socketPath string) (*client.Connection, error) {
	if socketPath != "" {
		return client.DialPath(socketPath)
	}

	return client.Dial(socketName)
}

func runCommand(conn *client.Connection, cmd string, args []string) bool {
	switch cmd {
	case "thermal-info", "ti":
		thermalInfo(conn)
	case "set-fan-state", "sfs":
		setFanState(conn, args)
	case "help":
		printHelp()
	case "exit", "quit":
		return true
	default:
		fmt.Printf("unknown command %q, try \"help\"\n", cmd)
	}

	return false
}

func thermalInfo(conn *client.Connection) {
	info, err := conn.ThermalInfo()
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Printf("cpu temperature:  %s\n", info.CPUTemp)
	if info.GPUTemp != nil {
		fmt.Printf("gpu temperature:  %s\n", *info.GPUTemp)
	} else {
		fmt.Println("gpu temperature:  off")
	}
	fmt.Printf("fan rpm:          %d / %d\n", info.RPMLeft, info.RPMRight)
	fmt.Printf("fixed fan speed:  %s (allowed %s)\n", info.FixedSpeed, info.FanSpeedRange)
	if info.FanState != nil {
		fmt.Printf("fan state:        %s\n", *info.FanState)
	} else {
		fmt.Println("fan state:        unknown")
	}
}

func setFanState(conn *client.Connection, args []string) {
	if len(args) == 0 {
		fmt.Println("usage: set-fan-state normal|quiet|aggressive|fixed <speed>")
		return
	}

	mode, err := protocol.ParseFanMode(args[0])
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	state := protocol.FanState{Mode: mode}
	if mode == protocol.FanFixed {
		if len(args) != 2 {
			fmt.Println("usage: set-fan-state fixed <speed>, speed as a fraction like 0.45")
			return
		}

		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		p, err := protocol.NewPercent(v)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		state = protocol.FixedFanState(p)
	} else if len(args) > 1 {
		fmt.Printf("mode %q takes no speed\n", args[0])
		return
	}

	resp, err := conn.SetFanState(state)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(resp)
}

func printHelp() {
	fmt.Print(`commands:
  thermal-info (ti)          query temperatures, fan rpm and fan state
  set-fan-state (sfs) MODE   switch fan control; MODE is normal, quiet,
                             aggressive, or fixed followed by a fraction
                             between 0 and 1, e.g. "sfs fixed 0.45"
  help                       show this help
  exit                       close the session
`)
}
