package main

import (
	"os"
	"sync"

	"freelaw.courtlistener.cl-update-index/cmd/cl-index-worker/worker"
	"freelaw.courtlistener.cl-update-index/cmd/utils"
)

// Print logo and run the index worker
func main() {
	utils.PrintLogo()

	var wg sync.WaitGroup
	wg.Add(1)
	worker.Run(&wg, os.Args[1:])
	wg.Wait()
}
