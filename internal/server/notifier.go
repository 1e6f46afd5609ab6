package server

import "log/slog"

// LogNotifier reports capture progress to a logger instead of a terminal.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Progress(msg string) { n.Logger.Info(msg) }
func (n LogNotifier) Notice(msg string)   { n.Logger.Warn(msg) }
func (n LogNotifier) Error(msg string)    { n.Logger.Error(msg) }
func (n LogNotifier) Dismiss()            {}
