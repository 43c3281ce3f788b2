// Linksim runs a Links model file and prints the events delivered between
// its components.
//
//	linksim [--model-options=S] [--num-threads=N] [--stop-at=T] [--verbose] model.hcl
package main

import (
	"os"

	"github.com/kmrgirish/simsuite/internal/linksim"
)

func main() {
	os.Exit(linksim.Main(os.Args[1:], os.Stdout, os.Stderr))
}
