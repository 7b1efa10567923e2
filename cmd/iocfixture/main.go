// Command iocfixture starts an IOC the same way the test fixtures do, which
// helps when debugging templates that fail to load.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "iocfixture:", err)
		os.Exit(1)
	}
}
