package main

import (
	"github.com/charmbracelet/log"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Fatal("vpnrotator terminated", "error", err)
	}
}
