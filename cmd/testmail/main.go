// Command testmail sends a sample dataset upload notification to check the
// SMTP settings in the environment or the CONFIG_FILE.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"movie-mate/config"
	"movie-mate/logging"
	"movie-mate/notifier"
	"movie-mate/resolver"
)

func main() {
	filename := flag.String("file", "sample.csv", "file name shown in the notification")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: "console", Output: os.Stderr})

	n, err := notifier.NewEmailNotifier(cfg.Email)
	if err != nil {
		logging.Fatal().Err(err).Msg("Email is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logging.Info().Msg("Attempting to send test email...")
	err = n.DatasetUploaded(ctx, resolver.DatasetUpload{
		Filename: *filename,
		Bytes:    1024,
		Movies:   3,
		Genres:   []string{"Drama", "Comedy", "Science Fiction"},
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to send email")
	}
	logging.Info().Msg("Email sent successfully")
}
