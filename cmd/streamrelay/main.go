// Command streamrelay ingests a live DASH manifest and re-emits it as a
// rolling HLS window of decrypted fMP4 segments.
package main

import (
	"fmt"
	"os"

	"github.com/jmylchreest/streamrelay/cmd/streamrelay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
