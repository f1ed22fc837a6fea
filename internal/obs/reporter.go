package obs

import (
	"context"

	"github.com/rs/zerolog"
)

// Reporter receives failures that should trend somewhere beyond the request
// log: webhook handler errors, OAuth exchange failures. Tags carry the
// context an operator needs (shop, topic or flow).
type Reporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
}

// LogReporter is the default Reporter: structured error events. A hosted
// error tracker can replace it without touching call sites.
type LogReporter struct {
	Logger zerolog.Logger
}

func (r LogReporter) Report(_ context.Context, err error, tags map[string]string) {
	ev := r.Logger.Error().Err(err)
	for k, v := range tags {
		ev.Str(k, v)
	}
	ev.Msg("failure reported")
}

// Nop returns a Reporter that discards everything. Tests use it.
func Nop() Reporter {
	return LogReporter{Logger: zerolog.Nop()}
}
