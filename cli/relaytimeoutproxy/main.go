package main

import (
	"fmt"
	"os"

	timeoutproxycmder "github.com/papercomputeco/relay/cmd/relay/timeoutproxy"
)

func main() {
	cmd := timeoutproxycmder.NewTimeoutProxyCmd()

	cmd.Use = "relaytimeoutproxy"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .relay/ config directory")

	err := cmd.Execute()
	if err != nil {
		fmt.Printf("Error executing root command: %v\n", err)
		os.Exit(1)
	}
}
