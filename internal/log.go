package internal

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
)

// Prefix creates a consistent prefix for all archive commands to use.
//
// i and n are the zero-based ordinal and expected count; the prefix shows i+1.
func Prefix(i, n int, name string) string {
	return fmt.Sprintf(`[%d/%d] "%s" - `, i+1, n, TruncateRightWithSuffix(path.Base(name), 30, "..."))
}

type loggerKey struct{}

// WithPrefixLogger creates a new logger using the given prefix, then attaches the logger to context.
func WithPrefixLogger(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, loggerKey{}, log.New(os.Stderr, prefix, 0))
}

// MustLogger returns the logger attached to the given context.
func MustLogger(ctx context.Context) *log.Logger {
	return ctx.Value(loggerKey{}).(*log.Logger)
}
