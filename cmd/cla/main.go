// Command cla compresses CSV matrices into column-group blocks, stores them in
// a local directory, S3 or MinIO, and runs aggregates on the stored blocks.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
