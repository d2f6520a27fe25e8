package main

import (
	"os"

	"github.com/Lllllllleong/listingflow/cmd/listingctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
