// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/satellite_tracker/internal/app"
)

func main() {
	configPath := flag.String("config", "tracker_config.txt", "path to KEY=VALUE config file")
	flag.Parse()

	log.Println("starting satellite tracker console (MQTT subscriber)")

	if err := app.RunConsoleMQTT(*configPath); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
