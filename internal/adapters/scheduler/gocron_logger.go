package scheduler

import (
	"context"
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/okian/comet/pkg/logger"
)

// cronLogger routes gocron's key/value logging into our Logger.
type cronLogger struct {
	l logger.Logger
}

var _ gocron.Logger = cronLogger{}

func (c cronLogger) Debug(msg string, args ...any) {
	c.l.Debug(context.Background(), msg, toFields(args)...)
}

func (c cronLogger) Info(msg string, args ...any) {
	c.l.Info(context.Background(), msg, toFields(args)...)
}

func (c cronLogger) Warn(msg string, args ...any) {
	c.l.Warn(context.Background(), msg, toFields(args)...)
}

func (c cronLogger) Error(msg string, args ...any) {
	c.l.Error(context.Background(), msg, toFields(args)...)
}

func toFields(args []any) []logger.Field {
	fields := make([]logger.Field, 0, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 == len(args) {
			fields = append(fields, logger.Any("!BADKEY", args[i]))
			break
		}
		fields = append(fields, logger.Any(key, args[i+1]))
	}
	return fields
}
