package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	pionwebrtc "github.com/pion/webrtc/v3"

	"meshnet"
	webrtcfactory "meshnet/internal/transport/webrtc"

	"meshnet/internal/paths"
	"meshnet/internal/telemetry"
	"meshnet/internal/uiutil"
	"meshnet/internal/wire"
)

func main() {
	networkID := flag.String("network", "default", "mesh network id")
	switchAddr := flag.String("switch", "http://localhost:8080/switchboard", "switchboard endpoint URL")
	secret := flag.String("secret", "", "deterministic signing secret (derives a signed Address)")
	address := flag.String("address", "", "arbitrary unsigned Address (used only if -secret is empty)")
	stunServer := flag.String("stun", "stun:stun.l.google.com:19302", "STUN server URL, empty to disable")
	maxConns := flag.Int("max-connections", 10, "hard cap on total Connections")
	dataDir := flag.String("data", "", "data directory for persisted identity/seen-message journal (default: per-user config dir)")
	flag.Parse()

	if *dataDir == "" {
		*dataDir = paths.DefaultDataDir()
	}
	if _, err := paths.EnsureDir(*dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "create data dir: %v\n", err)
		os.Exit(1)
	}

	logger := telemetry.NewDefault("mesh-node")

	var iceServers []pionwebrtc.ICEServer
	if *stunServer != "" {
		iceServers = append(iceServers, pionwebrtc.ICEServer{URLs: []string{*stunServer}})
	}

	n, err := meshnet.New(meshnet.Options{
		NetworkID:     *networkID,
		SwitchAddress: *switchAddr,
		Secret:        *secret,
		Address:       *address,
		Config: meshnet.Config{
			MaxConnections: *maxConns,
			DataDir:        *dataDir,
		},
		Transport: webrtcfactory.New(iceServers),
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create node: %v\n", err)
		os.Exit(1)
	}

	n.On(meshnet.EventMessage, func(e meshnet.Event) {
		fmt.Printf("[message] from=%s app=%s type=%s\n", uiutil.FormatAddress(e.Message.Address), e.Message.AppID, e.Message.Type)
	})
	n.On(meshnet.EventBadMessage, func(e meshnet.Event) {
		fmt.Printf("[bad-message] %v\n", e.Err)
	})
	n.On(meshnet.EventAddConnection, func(e meshnet.Event) {
		fmt.Printf("[add-connection] %s\n", e.ConnectionID)
	})
	n.On(meshnet.EventDestroyConnection, func(e meshnet.Event) {
		fmt.Printf("[destroy-connection] %s (remote=%s)\n", e.ConnectionID, e.RemoteAddress)
	})
	n.On(meshnet.EventConnectionError, func(e meshnet.Event) {
		fmt.Printf("[connection-error] %s: %v\n", e.ConnectionID, e.Err)
	})
	n.On(meshnet.EventSwitchboardResponse, func(e meshnet.Event) {
		fmt.Printf("[switchboard-response] %d address(es)\n", len(e.Addresses))
	})

	n.Start()

	fmt.Printf("Node started.\n")
	fmt.Printf("Address: %s\n\n", n.Address())
	fmt.Println("Commands:")
	fmt.Println("  /say <text>   - broadcast a chat message")
	fmt.Println("  /peers        - list active connections")
	fmt.Println("  /quit         - teardown and exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "/quit":
			fmt.Println("tearing down...")
			if err := n.Teardown(); err != nil {
				fmt.Fprintf(os.Stderr, "teardown: %v\n", err)
			}
			return

		case line == "/peers":
			for _, c := range n.ActiveConnections() {
				fmt.Printf("  %s  connected_at=%s\n", uiutil.FormatAddress(c.RemoteAddress()), c.ConnectedAt().Format(time.RFC3339))
			}

		case strings.HasPrefix(line, "/say "):
			text := strings.TrimPrefix(line, "/say ")
			body, _ := json.Marshal(map[string]string{"text": text})
			if _, err := n.Broadcast(meshnet.BroadcastInput{
				AppID:       "chat",
				Type:        "text",
				Destination: wire.Wildcard,
				Data:        body,
			}); err != nil {
				fmt.Fprintf(os.Stderr, "broadcast: %v\n", err)
			}

		default:
			fmt.Println("unknown command")
		}
	}
}
