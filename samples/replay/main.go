// The replay command feeds a recorded JSON event trace to the workload
// characterisation engine. It stands in for a simulator host: one trace file
// produces the same per-kernel CSVs a live run would.
package main

import (
	"flag"
	"log"

	"github.com/tebeka/atexit"

	"gitlab.com/aiwc/aiwc/characteriser"
	"gitlab.com/aiwc/aiwc/monitoring"
)

var traceFlag = flag.String("trace", "",
	"JSON trace file to replay.")

var monitorFlag = flag.String("aiwc-monitor", "",
	"Address to serve the monitoring API on, empty to disable.")

func main() {
	flag.Parse()

	if *traceFlag == "" {
		log.Fatal("no trace file given, use -trace")
	}

	char := characteriser.NewCharacteriser(nil)
	char.RegisterAtExit()

	if *monitorFlag != "" {
		monitor := monitoring.NewMonitor(char)
		monitor.StartServer(*monitorFlag)
	}

	replayer := NewReplayer(char)
	err := replayer.ReplayFile(*traceFlag)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	atexit.Exit(0)
}
