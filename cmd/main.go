package main

import (
	"github.com/dyike/MarketPulse/internal/cli"
)

func main() {
	cli.Run()
}
