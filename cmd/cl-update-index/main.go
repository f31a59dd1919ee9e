package main

import (
	"os"

	"freelaw.courtlistener.cl-update-index/cmd/cl-update-index/updater"
)

// Run cl-update-index and exit with its status
func main() {
	os.Exit(updater.Run(os.Args[1:], updater.DefaultStreams))
}
