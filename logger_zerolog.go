package resilient

import "github.com/rs/zerolog"

// ZerologAdapter satisfies Logger on top of rs/zerolog, for callers already
// standardized on zerolog elsewhere in their service (spec §9 domain stack:
// ambient logging carried through from the pack's zerolog convention rather
// than left on the standard library).
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter wraps an existing zerolog.Logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

func (z *ZerologAdapter) Debug(msg string, kv ...any) { z.event(z.logger.Debug(), msg, kv...) }
func (z *ZerologAdapter) Info(msg string, kv ...any)  { z.event(z.logger.Info(), msg, kv...) }
func (z *ZerologAdapter) Warn(msg string, kv ...any)  { z.event(z.logger.Warn(), msg, kv...) }
func (z *ZerologAdapter) Error(msg string, kv ...any) { z.event(z.logger.Error(), msg, kv...) }

func (z *ZerologAdapter) event(e *zerolog.Event, msg string, kv ...any) {
	for i := 0; i+1 < len(kv); i += 2 {
		e = e.Interface(toString(kv[i]), kv[i+1])
	}
	e.Msg(msg)
}
