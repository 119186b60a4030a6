// Package logx wraps zerolog behind a small structured-logging API whose
// sinks and level can be swapped at runtime via Service.Apply, so a config
// reload never invalidates loggers already handed out to components.
package logx
