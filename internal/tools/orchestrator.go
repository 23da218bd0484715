package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// MaxCallsPerPulse caps how many tools one pulse cycle may execute.
const MaxCallsPerPulse = 5

// bookkeeping argument keys stripped before dispatch so a tool cannot be
// coerced into impersonating the runtime.
var reservedArgKeys = map[string]bool{
	"persona_id": true,
	"pulse_id":   true,
	"origin":     true,
	"timestamp":  true,
	"created_at": true,
}

// Invocation records one tool call within a pulse cycle. It feeds the
// dedup check and the final utterance composition.
type Invocation struct {
	Name      string
	Arguments map[string]any
	Result    string
	Metadata  map[string]any
}

// Orchestrator executes tools for exactly one pulse cycle. It is not safe
// for concurrent use; each cycle constructs its own.
type Orchestrator struct {
	registry *Registry
	log      *zap.SugaredLogger
	history  []Invocation
	executed int
}

func NewOrchestrator(registry *Registry, log *zap.SugaredLogger) *Orchestrator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Orchestrator{registry: registry, log: log}
}

// Invoke runs the named tool with sanitized arguments. The second return is
// true when the call was answered from the cycle's dedup cache, in which
// case the underlying tool did not run again.
//
// Unknown tools, handler errors, and handler panics all produce a textual
// result instead of an error: a flaky capability must not blank out the
// persona's turn.
func (o *Orchestrator) Invoke(ctx context.Context, name string, args map[string]any) (Invocation, bool) {
	clean := sanitizeArgs(args)

	key := invocationKey(name, clean)
	for _, prev := range o.history {
		if invocationKey(prev.Name, prev.Arguments) == key && prev.Result != "" {
			o.log.Debugw("tool call deduplicated", "tool", name)
			return prev, true
		}
	}

	inv := Invocation{Name: name, Arguments: clean}

	tool := o.registry.Lookup(name)
	if tool == nil {
		inv.Result = fmt.Sprintf("unsupported tool: %q is not a known capability", name)
		o.history = append(o.history, inv)
		return inv, false
	}

	if o.executed >= MaxCallsPerPulse {
		inv.Result = fmt.Sprintf("tool budget spent: %d calls already ran this cycle", o.executed)
		o.history = append(o.history, inv)
		return inv, false
	}

	o.executed++
	result, meta, err := o.execute(ctx, tool, clean)
	if err != nil {
		inv.Result = fmt.Sprintf("tool %s failed: %v", name, err)
	} else {
		inv.Result = result
		inv.Metadata = meta
	}

	o.history = append(o.history, inv)
	return inv, false
}

// Exhausted reports whether the cycle's tool budget is spent.
func (o *Orchestrator) Exhausted() bool {
	return o.executed >= MaxCallsPerPulse
}

// Executed returns how many tools actually ran (cache hits excluded).
func (o *Orchestrator) Executed() int {
	return o.executed
}

// Invocations returns the cycle's call history in order.
func (o *Orchestrator) Invocations() []Invocation {
	out := make([]Invocation, len(o.history))
	copy(out, o.history)
	return out
}

func (o *Orchestrator) execute(ctx context.Context, tool *Tool, args map[string]any) (result string, meta map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return tool.Handler(ctx, args)
}

func sanitizeArgs(args map[string]any) map[string]any {
	clean := make(map[string]any, len(args))
	for k, v := range args {
		if reservedArgKeys[k] {
			continue
		}
		clean[k] = v
	}
	return clean
}

// invocationKey canonicalizes a (tool, arguments) pair. encoding/json sorts
// map keys, so equal argument maps produce equal keys.
func invocationKey(name string, args map[string]any) string {
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", args))
	}
	return name + "\x00" + string(raw)
}
