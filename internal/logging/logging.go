package logging

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

func SetupLogging() *logrus.Logger {
	logger := logrus.Logger{
		Formatter: &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyLevel: "loglevel",
			},
		},
		Out:   os.Stdout,
		Level: logrus.InfoLevel,
		Hooks: make(logrus.LevelHooks),
	}

	return &logger
}

// SetLevel applies a textual level such as "debug" or "warn". An empty
// level keeps the current one.
func SetLevel(logger *logrus.Logger, level string) error {
	if level == "" {
		return nil
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(parsed)
	return nil
}
