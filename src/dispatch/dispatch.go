// Package dispatch runs a named operation against the node or collection an
// entity_type label addresses, and normalizes what comes back.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"commvault-ops/src/cvapi"
	"commvault-ops/src/entities"
	"commvault-ops/src/safety"
)

// PropertySet is the result of every successful property write.
const PropertySet = "Property set successfully"

// Request is one operation to run.
type Request struct {
	EntityType string
	Operation  string
	Args       map[string]any
}

// Result is a normalized operation outcome.
type Result struct {
	Value any
	// Changed is true when a mutating member ran.
	Changed bool
	// Skipped is true in check mode; Message says what would have run.
	Skipped bool
	Message string
}

// Options tune a Dispatcher.
type Options struct {
	// DryRun resolves and validates the member without invoking it.
	DryRun bool
	// Confirm, when set, is asked before any mutating member runs.
	Confirm func(question string) (bool, error)
	// Progress receives job summaries while a job is waited on.
	Progress func(cvapi.JobSummary)
}

type Dispatcher struct {
	logger *slog.Logger
	opts   Options
}

func New(logger *slog.Logger, opts Options) *Dispatcher {
	return &Dispatcher{logger: logger, opts: opts}
}

// target is a resolved place an operation may run.
type target struct {
	value  any
	plural bool
}

// Dispatch runs req. The singular target is tried first, then the plural
// one. On each, the typed catalog wins over an Invoker.
func (d *Dispatcher) Dispatch(ctx context.Context, ents *entities.Entities, req Request) (Result, error) {
	b, err := ents.Binding(req.EntityType)
	if err != nil {
		return Result{}, err
	}
	for _, t := range []target{{b.Singular, false}, {b.Plural, true}} {
		if t.value == nil {
			continue
		}
		if m, ok := Lookup(b.Kind, t.plural, req.Operation); ok {
			d.logger.Debug("dispatching", "kind", b.Kind, "plural", t.plural, "operation", req.Operation, "member", m.Kind)
			return d.run(ctx, m, t.value, describe(b.Kind, t), req)
		}
		if inv, ok := t.value.(cvapi.Invoker); ok && inv.HasOperation(req.Operation) {
			d.logger.Debug("dispatching to node", "kind", b.Kind, "plural", t.plural, "operation", req.Operation)
			return d.invoke(ctx, inv, describe(b.Kind, t), req)
		}
	}
	return Result{}, &UnknownOperationError{EntityType: req.EntityType, Operation: req.Operation}
}

func (d *Dispatcher) run(ctx context.Context, m *Member, on any, desc string, req Request) (Result, error) {
	if m.Kind == Property {
		v, err := propertyValue(m, req.Args)
		if err != nil {
			return Result{}, err
		}
		if res, stop, err := d.gate(m, desc); stop {
			return res, err
		}
		if err := m.set(ctx, on, v); err != nil {
			return Result{}, err
		}
		d.logger.Info("property set", "property", m.Name, "target", desc)
		return Result{Value: PropertySet, Changed: true}, nil
	}

	args, err := bind(m, req.Args)
	if err != nil {
		return Result{}, err
	}
	args.progress = d.opts.Progress
	if res, stop, err := d.gate(m, desc); stop {
		return res, err
	}
	v, err := m.call(ctx, on, args)
	if err != nil {
		return Result{}, err
	}
	if m.Mutating {
		d.logger.Info("operation ran", "operation", m.Name, "target", desc)
	}
	return Result{Value: Normalize(v), Changed: m.Mutating}, nil
}

// gate applies check mode and confirmation. stop is true when the member
// must not run.
func (d *Dispatcher) gate(m *Member, desc string) (Result, bool, error) {
	if d.opts.DryRun {
		msg := fmt.Sprintf("check mode: would run %s %s on %s", m.Kind, m.Name, desc)
		return Result{Skipped: true, Message: msg}, true, nil
	}
	if m.Mutating && d.opts.Confirm != nil {
		ok, err := d.opts.Confirm(fmt.Sprintf("Run %s on %s?", m.Name, desc))
		if err != nil {
			return Result{}, true, err
		}
		if !ok {
			return Result{}, true, safety.ErrDeclined
		}
	}
	return Result{}, false, nil
}

func (d *Dispatcher) invoke(ctx context.Context, inv cvapi.Invoker, desc string, req Request) (Result, error) {
	if d.opts.DryRun {
		msg := fmt.Sprintf("check mode: would run %s on %s", req.Operation, desc)
		return Result{Skipped: true, Message: msg}, nil
	}
	v, err := inv.Invoke(ctx, req.Operation, req.Args)
	var argErr *cvapi.ArgumentError
	if errors.As(err, &argErr) {
		return Result{}, &ValidationError{Operation: req.Operation, Err: err}
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Value: Normalize(v)}, nil
}

func describe(kind cvapi.Kind, t target) string {
	if n, ok := t.value.(cvapi.Node); ok {
		return fmt.Sprintf("%s %q", kind, n.Name())
	}
	if j, ok := t.value.(cvapi.Job); ok {
		return "job " + j.JobID()
	}
	if s, ok := t.value.(cvapi.Session); ok {
		return "commcell " + s.WebconsoleHostname()
	}
	return string(kind) + " collection"
}
