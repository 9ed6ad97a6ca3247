// Package logging wires up the process-wide logrus instance: the
// teacher's prefixed text formatter for console output, size-rotated
// files via lumberjack, and a hook that republishes every log entry
// whose message begins with a bracketed tag (e.g. "[BLOCK]", "[TXN]") onto the event
// bus, mirroring what the original source's console log sink did by
// scraping stdout.
package logging

import (
	"io"
	"regexp"

	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	logger "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dusknet/dusknet/internal/eventbus"
)

// TagTopic is the eventbus topic tagged log lines are republished on.
const TagTopic = "log.tagged"

// TaggedEntry is the payload delivered to TagTopic subscribers.
type TaggedEntry struct {
	Tag     string
	Message string
	Level   logger.Level
}

var tagPattern = regexp.MustCompile(`^\[([A-Z_]+)\]`)

// Options configures Setup.
type Options struct {
	// Level is the minimum level that reaches either sink. Defaults
	// to logger.InfoLevel if zero-valued elsewhere.
	Level logger.Level
	// LogFile, if non-empty, receives rotated log output via
	// lumberjack in addition to stderr.
	LogFile    string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Bus, if non-nil, receives a TaggedEntry for every log line whose
	// message begins with a bracketed tag.
	Bus *eventbus.EventBus
}

// Setup installs the prefixed formatter, wires the optional rotating
// file sink, and registers the tag-forwarding hook on logrus's global,
// default logger rather than a fresh instance: every package in this
// tree logs through `logger.WithFields(...)` (the package-level
// functions), which is a thin wrapper around that same global logger,
// so configuring it here is what makes those call sites pick up the
// formatter, rotation, and hook. It returns the configured
// *logger.Logger for convenience.
func Setup(opts Options) *logger.Logger {
	logger.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp:   true,
		ForceFormatting: true,
	})

	level := opts.Level
	if level == 0 {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)

	var out io.Writer = logger.StandardLogger().Out
	if opts.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    nonZero(opts.MaxSizeMB, 50),
			MaxBackups: nonZero(opts.MaxBackups, 5),
			MaxAge:     nonZero(opts.MaxAgeDays, 14),
		}
		out = io.MultiWriter(out, rotator)
	}
	logger.SetOutput(out)

	if opts.Bus != nil {
		logger.AddHook(&tagHook{bus: opts.Bus})
	}

	return logger.StandardLogger()
}

func nonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// tagHook republishes any entry whose Message starts with a bracketed
// tag onto the event bus, under TagTopic.
type tagHook struct {
	bus *eventbus.EventBus
}

func (h *tagHook) Levels() []logger.Level {
	return logger.AllLevels
}

func (h *tagHook) Fire(entry *logger.Entry) error {
	m := tagPattern.FindStringSubmatch(entry.Message)
	if m == nil {
		return nil
	}
	h.bus.Publish(TagTopic, TaggedEntry{
		Tag:     m[1],
		Message: entry.Message,
		Level:   entry.Level,
	})
	return nil
}
