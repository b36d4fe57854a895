package main

import (
	"log"

	"github.com/seyalabs/media-hub/cmd"
	"github.com/seyalabs/media-hub/config"
)

func main() {
	log.Printf("media-hub %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}
