// Command rusty-comms drives the IPC benchmark harness described in
// spec.md: it runs one or more mechanisms (Unix domain sockets, TCP
// loopback, POSIX message queues, SPSC shared-memory ring) against the
// same workload and writes a JSON results document.
package main

import (
	"fmt"
	"os"

	"github.com/redhat-performance/rusty-comms-sub000/cmd/rusty-comms/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
