package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/commitlabs/commitment-service/cmd/commitment-service/cli"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("failed to load .env file")
	}
}

func main() {
	// setup cli commands and flags
	if err := cli.Setup(); err != nil {
		panic(err)
	}
}
