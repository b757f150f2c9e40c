// Command redis-cli sends commands to a Redis server.
//
// Without arguments it starts an interactive session:
//
//	redis-cli --url redis://localhost:6379/0
//	redis-cli SET greeting "hello world"
//	redis-cli scan --match 'user:*'
//	redis-cli subscribe news
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
