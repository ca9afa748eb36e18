package main

import (
	"os"

	"github.com/nhirsama/Goster-Telemetry/cli"
)

func main() {
	os.Exit(cli.RunSender(os.Args[1:]))
}
