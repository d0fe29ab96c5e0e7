// Command planner serves the lesson planning page and runs plans from the
// terminal.
//
//	planner serve               # web page on server.addr
//	planner plan "Soạn bài..."  # one run, final state as JSON
//	planner search "parabol"    # query the textbook knowledge base
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
