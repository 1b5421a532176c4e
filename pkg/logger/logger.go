package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Форматы вывода
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New создает логгер в stdout. Неизвестный формат считается json.
func New(logLevel, format string) *logrus.Logger {
	return newLogger(os.Stdout, logLevel, format)
}

func newLogger(out io.Writer, logLevel, format string) *logrus.Logger {
	log := logrus.New()

	if format == FormatText {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	log.SetOutput(out)

	// Уровень логирования
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel // Уровень по умолчанию, если передан некорректный
	}
	log.SetLevel(level)
	return log
}
