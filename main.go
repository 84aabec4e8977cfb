// SPDX-License-Identifier: MIT
package main

import (
	"os"

	"filterstream/cmd"
	"filterstream/internal/log"
	"filterstream/pkg/build"
)

// main is the entry point for the streaming application.
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//
// 2. Concurrent Phase (Hot Path):
//   - The selected command opens devices or files and runs the engine
//
// 3. Shutdown Phase (Cold Path):
//   - SIGINT/SIGTERM stop the stream, finalize recordings and close transports
func main() {
	if err := build.Initialize(); err != nil {
		log.Warnf("Incomplete build information: %v", err)
	}
	log.WithFields(build.GetBuildInfo().Fields()).Debug("starting")

	if err := cmd.Execute(os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}
}
