// Package host implements the execution host (C4): the capability
// interface the interpreter calls into for device I/O, module import
// resolution, and the structured per-run report. Its shape is grounded
// directly on the upstream plugin container's own design note that a
// capability surface should be "a single interface with four methods" —
// here fixed at exactly Call/Get/Set/Import rather than the container's
// open-ended reflection-discovered task set, because HomeScript's host
// surface is not user-extensible.
package host

import "context"

// Capabilities is the contract between the interpreter and the outside
// world. The interpreter only ever depends on this interface; Mock, Live,
// and DryRun implementations are interchangeable behind it.
type Capabilities interface {
	// Call dispatches a service invocation, e.g. "light.turn_on".
	Call(ctx context.Context, service string, args []any) (any, error)
	// Get reads an entity's current state. varName is the HomeScript
	// variable the result will be bound to, carried through for hosts that
	// report or log the GET (e.g. DryRunHost's simulated-output line).
	Get(ctx context.Context, entityID, varName string) (any, error)
	// Set writes an entity's state or invokes the domain-appropriate
	// service to reach it.
	Set(ctx context.Context, entityID string, value any) error
	// Import resolves a module name to HomeScript source, e.g. by looking
	// up a script with a matching endpoint.
	Import(ctx context.Context, name string) (string, error)
}

// ImportResolver is the narrow slice of script.Store the Import capability
// needs — looking a script up by endpoint and returning its source.
type ImportResolver interface {
	SourceForEndpoint(name string) (string, bool)
}
