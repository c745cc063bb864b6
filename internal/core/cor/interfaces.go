// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cor (Chain of Responsibility) provides the building blocks used to
// assemble the trend strategy pipeline out of small, independently testable
// commands. A workflow run owns one Context; each Command reads its input from
// the Context, does one unit of work, and writes its output back so the Chain
// can hand it to the next Command.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the keys the BaseChain uses to pipe data between commands.
const (
	// CtxIn holds the primary input of the command that is about to run. The
	// BaseChain fills it with whatever the previous command left in CtxOut.
	CtxIn = "__IN__"
	// CtxOut is where a command places its primary output.
	CtxOut = "__OUT__"
)

// MeterName is the instrumentation scope shared by every command's meter.
const MeterName = "github.com/jaycherian/gcp-go-trend-strategist"

// Context is the shared property bag of a single workflow run. Implementations
// must be safe for concurrent use because fan-out commands write from worker
// goroutines.
type Context interface {
	// SetContext replaces the Go context used for cancellation and tracing.
	SetContext(context context.Context)

	// GetContext returns the current Go context.
	GetContext() context.Context

	// Add stores a value under key and returns the Context for chaining.
	Add(key string, value interface{}) Context

	// AddError records an error raised by the command called key.
	AddError(key string, err error)

	// GetErrors returns a copy of the recorded errors keyed by command name.
	GetErrors() map[string]error

	// Get returns the value stored under key, or nil.
	Get(key string) interface{}

	// Remove deletes key.
	Remove(key string)

	// HasErrors reports whether any command recorded an error.
	HasErrors() bool
}

// Executable is anything with an Execute step.
type Executable interface {
	Execute(context Context)
}

// Command is an atomic unit of work in a chain.
type Command interface {
	Executable

	// GetName returns the command name used for spans, counters and error keys.
	GetName() string

	// GetInputParam returns the context key holding the command's input.
	GetInputParam() string

	// GetOutputParam returns the context key receiving the command's output.
	GetOutputParam() string

	// IsExecutable is the precondition check run by the chain before Execute.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// CommandObserver is notified by a chain each time one of its commands
// finishes without leaving errors behind. output is the value the command
// placed in CtxOut, which may be nil.
type CommandObserver func(context Context, command Command, output interface{})

// Chain is an ordered sequence of commands. A Chain is itself a Command so
// chains nest.
type Chain interface {
	Command

	// ContinueOnFailure controls whether commands keep running after one of
	// them records an error.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the sequence.
	AddCommand(command Command) Chain

	// Observe registers a callback fired after every successful command.
	Observe(observer CommandObserver) Chain
}
