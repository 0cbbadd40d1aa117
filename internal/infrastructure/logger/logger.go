package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

var (
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Warn  *log.Logger
)

var (
	mu    sync.Mutex
	out   io.Writer = os.Stdout
	level           = "info"
)

var levels = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

func init() {
	logFlags := log.Ldate | log.Ltime | log.LUTC | log.Lshortfile

	Info = log.New(os.Stdout, "INFO: ", logFlags)
	Error = log.New(os.Stdout, "ERROR: ", logFlags)
	Debug = log.New(io.Discard, "DEBUG: ", logFlags)
	Warn = log.New(os.Stdout, "WARN: ", logFlags)
}

// SetLevel silences the loggers below level: debug, info, warn or error.
func SetLevel(l string) error {
	l = strings.ToLower(strings.TrimSpace(l))
	if _, ok := levels[l]; !ok {
		return fmt.Errorf("unknown log level %q", l)
	}
	mu.Lock()
	defer mu.Unlock()
	level = l
	apply()
	return nil
}

// SetOutput redirects every enabled logger, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	apply()
}

func apply() {
	threshold := levels[level]
	for i, l := range []*log.Logger{Debug, Info, Warn, Error} {
		if i >= threshold {
			l.SetOutput(out)
		} else {
			l.SetOutput(io.Discard)
		}
	}
}
