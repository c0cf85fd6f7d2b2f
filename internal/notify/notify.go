// Package notify defines the purely observational notification surface
// named in the external interfaces: a Sink watches the status stream and
// may forward selected updates to an outside channel (Discord, Telegram),
// but can never feed anything back into the controller.
package notify

import (
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bailanluo/autofish/internal/fishing"
)

// Sink receives every published Status and decides for itself whether to
// act on it.
type Sink interface {
	Notify(fishing.Status)
}

// statusEnv is the expr evaluation environment: the field names a filter
// expression can reference, shaped like the teacher's pickit/runeword rule
// environments.
type statusEnv struct {
	Phase      string
	RoundCount uint64
	LastError  string
	Paused     bool
}

// Filter compiles a boolean expr expression (e.g. `Phase == "ERROR"` or
// `RoundCount % 10 == 0`) against the status environment, the same
// expr-lang/expr rule-filtering idiom the teacher uses for pickit and
// runeword rules, generalized here to notification rules.
type Filter struct {
	program *vm.Program
}

// CompileFilter compiles expression. An empty expression always matches.
func CompileFilter(expression string) (*Filter, error) {
	if expression == "" {
		return &Filter{}, nil
	}
	program, err := expr.Compile(expression, expr.Env(statusEnv{}), expr.AsBool())
	if err != nil {
		return nil, err
	}
	return &Filter{program: program}, nil
}

// Match reports whether status satisfies the compiled filter.
func (f *Filter) Match(status fishing.Status) bool {
	if f == nil || f.program == nil {
		return true
	}
	env := statusEnv{
		Phase:      status.Phase.String(),
		RoundCount: status.RoundCount,
		LastError:  status.LastError,
		Paused:     status.Paused,
	}
	result, err := expr.Run(f.program, env)
	if err != nil {
		return false
	}
	matched, _ := result.(bool)
	return matched
}

// FilteredSink wraps a Sink so it is only invoked for statuses that pass
// filter. Wiring errors from CompileFilter are the caller's concern; a
// sink is simply skipped if it was never wired.
type FilteredSink struct {
	sink   Sink
	filter *Filter
	logger *slog.Logger
}

// NewFilteredSink pairs sink with filter.
func NewFilteredSink(sink Sink, filter *Filter, logger *slog.Logger) *FilteredSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilteredSink{sink: sink, filter: filter, logger: logger}
}

// Notify implements Sink, forwarding to the wrapped sink only on a filter
// match.
func (f *FilteredSink) Notify(status fishing.Status) {
	if !f.filter.Match(status) {
		return
	}
	f.sink.Notify(status)
}

// Fanout dispatches to every registered Sink from a single
// fishing.Publisher subscription, so wiring code can attach notify.Fanout
// wherever a Publisher or Hub subscriber is expected.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewFanout builds a Fanout over sinks.
func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{sinks: sinks, logger: logger}
}

// Notify implements Sink by forwarding to every wrapped sink. A panicking
// sink is recovered and logged so one misbehaving notifier can't take down
// the status fanout.
func (f *Fanout) Notify(status fishing.Status) {
	for _, sink := range f.sinks {
		f.notifyOne(sink, status)
	}
}

func (f *Fanout) notifyOne(sink Sink, status fishing.Status) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("notify: sink panicked", slog.Any("recover", r))
		}
	}()
	sink.Notify(status)
}

// Publish implements fishing.Publisher so a Fanout can be wired directly as
// one of status.MultiPublisher's targets.
func (f *Fanout) Publish(status fishing.Status) {
	f.Notify(status)
}
