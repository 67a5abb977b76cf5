package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func setup(envFile string) {
	if err := godotenv.Load(envFile); err != nil {
		// The environment may already be populated by the caller.
		logrus.WithField("file", envFile).Debug("No env file loaded")
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
