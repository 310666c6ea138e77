package main

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// logger is the process-wide logger. initLogger configures it once in main.
var logger = logrus.New()

// initLogger sets level and format. Empty values fall back to LOG_LEVEL / LOG_FORMAT, then info/text.
func initLogger(out io.Writer, level, format string) {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if format == "" {
		format = os.Getenv("LOG_FORMAT")
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.ToLower(format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	logger.SetOutput(out)
}

func componentLog(name string) *logrus.Entry {
	return logger.WithField("component", name)
}
