package main

import (
	"bufio"
	"os"

	"github.com/noah-isme/bundle-admin/internal/cartexpand"
	"github.com/noah-isme/bundle-admin/internal/obs"
)

func main() {
	logger := obs.NewLoggerTo(os.Stderr, envOrDefault("LOG_FORMAT", "json"), envOrDefault("LOG_LEVEL", "warn"))
	out := bufio.NewWriter(os.Stdout)
	if err := cartexpand.Execute(bufio.NewReader(os.Stdin), out, logger); err != nil {
		logger.Error().Err(err).Msg("cart_transform_failed")
		os.Exit(1)
	}
	if err := out.Flush(); err != nil {
		logger.Error().Err(err).Msg("cart_transform_write_failed")
		os.Exit(1)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
