// Command orion-relay relays one camera to any number of browsers as an
// MJPEG (multipart/x-mixed-replace) or websocket stream.
//
//	orion-relay serve --config configs/relay.yaml
//	orion-relay probe --config configs/relay.yaml --duration 10s --output ./frames
//	orion-relay version
package main

import (
	"fmt"
	"os"
)

// version is set at build time: -ldflags "-X main.version=v0.2.0"
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "orion-relay: %v\n", err)
		os.Exit(1)
	}
}
