package main

import (
	"log"

	"archivebot/bot/app"
	"archivebot/core/buildinfo"
	corecmd "archivebot/core/cmd"
)

func main() {
	log.Printf("archivebot %s (%s) starting", buildinfo.Version, buildinfo.Commit)

	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.Bootstrap,
	})
	if err != nil {
		log.Fatalf("archivebot: %v", err)
	}
}
