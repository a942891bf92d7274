// Package log builds the zerolog loggers shared by the listener, the engines and the CLI.
package log

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const TimeFormat = "2006-01-02T15:04:05"

// Options selects where and how much the logger writes.
type Options struct {
	Level string    // zerolog level name, unknown values fall back to info
	File  string    // optional rotated log file
	Group string    // value of the Group field on every line
	Out   io.Writer // console destination, defaults to a colorable stdout
}

// New returns a console logger, teeing into a rotated file when Options.File is set.
func New(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	out := opts.Out
	noColor := false
	if out == nil {
		out = colorable.NewColorableStdout()
		noColor = !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())
	} else {
		noColor = true
	}

	var w io.Writer = zerolog.ConsoleWriter{Out: out, TimeFormat: TimeFormat, NoColor: noColor}
	if opts.File != "" {
		w = zerolog.MultiLevelWriter(w, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}

	group := opts.Group
	if group == "" {
		group = "beacon"
	}

	return zerolog.New(w).Level(level).With().Timestamp().Str("Group", group).Logger()
}
