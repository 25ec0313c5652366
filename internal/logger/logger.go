package logger

import (
	"log"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the central logger used across the application.
var Logger = logrus.New()

// Init configures the logger's level. Output always goes to stdout:
// this CLI-only configuration has no config file to source a
// file-sink path from.
func Init(level string) error {
	Logger.SetOutput(os.Stdout)
	Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if lvl, err := logrus.ParseLevel(level); err == nil {
		Logger.SetLevel(lvl)
	} else {
		Logger.SetLevel(logrus.InfoLevel)
	}

	// Redirect standard library logs to logrus, so api/retry.go's
	// log.Printf calls pick up the same formatter and level.
	log.SetOutput(Logger.Writer())
	return nil
}

// Close is a no-op: there is no file sink to flush. Kept so main.go's
// defer logger.Close() shape doesn't need to change.
func Close() {}
