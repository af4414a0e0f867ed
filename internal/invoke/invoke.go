// Package invoke implements the data invocation contract every UI surface calls through.
// A call always reports pending first and then exactly one of fulfilled or rejected.
package invoke

import (
	"context"
	"fmt"

	"github.com/toolpane/toolpane/pkg/types"
)

// State is the observable state of one invocation.
type State string

const (
	StatePending   State = "pending"
	StateFulfilled State = "fulfilled"
	StateRejected  State = "rejected"
)

// Func is a user-supplied data function. params may be nil.
type Func func(ctx context.Context, params map[string]any) (any, error)

// Functions maps function names to their implementations.
type Functions map[string]Func

// Request names the function to call and carries its parameter bag.
type Request struct {
	Function string
	Params   map[string]any
}

// Event is emitted to an Observer on every state transition.
type Event struct {
	Function string
	State    State
	Value    any
	Err      error
}

// Observer receives state transitions. It may be nil.
type Observer func(Event)

// Result is the terminal state of an invocation.
type Result struct {
	State State
	Value any
	Err   error
}

// MissingFunctionError is returned when the requested function is not provided.
type MissingFunctionError struct {
	Function string
}

func (e *MissingFunctionError) Error() string {
	return fmt.Sprintf("function '%s' is not provided", e.Function)
}

// PanicError wraps a panic raised by a data function.
type PanicError struct {
	Function string
	Value    any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("function '%s' panicked: %v", e.Function, e.Value)
}

// Invoke calls req.Function from fns and settles the result.
// It never panics and never returns a Go error; failures are carried by the rejected Result.
func Invoke(ctx context.Context, fns Functions, req Request, observe Observer) Result {
	emit := func(e Event) {
		if observe != nil {
			observe(e)
		}
	}
	emit(Event{Function: req.Function, State: StatePending})

	var res Result
	fn, ok := fns[req.Function]
	if !ok || fn == nil {
		res = Result{State: StateRejected, Err: &MissingFunctionError{Function: req.Function}}
	} else {
		res = call(ctx, req.Function, fn, req.Params)
	}

	emit(Event{Function: req.Function, State: res.State, Value: res.Value, Err: res.Err})
	return res
}

func call(ctx context.Context, name string, fn Func, params map[string]any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{State: StateRejected, Err: &PanicError{Function: name, Value: r}}
		}
	}()

	value, err := fn(ctx, params)
	if err != nil {
		return Result{State: StateRejected, Err: err}
	}
	return Result{State: StateFulfilled, Value: value}
}

// Response converts the result into its wire form.
func (r Result) Response() *types.InvocationResponse {
	resp := &types.InvocationResponse{State: string(r.State)}
	switch r.State {
	case StateFulfilled:
		resp.Value = r.Value
	case StateRejected:
		msg := "unknown error"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		resp.Error = &types.InvocationError{Message: msg}
	}
	return resp
}
