// Package tools implements the MCP tool surface: registration-time
// policy gating, the per-invocation pipeline (elicitation, connection
// resolution, structured error mapping, telemetry), and the concrete
// MongoDB/Atlas/export tool bodies.
package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// Category is the broad grouping a tool belongs to.
type Category string

const (
	CategoryMongoDB Category = "mongodb"
	CategoryAtlas   Category = "atlas"
)

// OperationType classifies what a tool does, driving both policy gating
// and the derived annotations.
type OperationType string

const (
	OpRead    OperationType = "read"
	OpMeta    OperationType = "metadata"
	OpCreate  OperationType = "create"
	OpUpdate  OperationType = "update"
	OpDelete  OperationType = "delete"
	OpConnect OperationType = "connect"
)

// Annotations is a pure function of OperationType.
type Annotations struct {
	Title           string
	ReadOnlyHint    bool
	DestructiveHint bool
}

func annotationsFor(title string, op OperationType) Annotations {
	return Annotations{
		Title:           title,
		ReadOnlyHint:    op == OpRead || op == OpMeta || op == OpConnect,
		DestructiveHint: op == OpDelete,
	}
}

// Result is what a tool body returns to the dispatcher. IsError marks a
// tool-level failure surfaced as a non-exceptional result per MCP
// convention (distinct from a transport-level error).
type Result struct {
	Text    string
	IsError bool
}

// Body is the concrete implementation of a tool, given the resolved
// request context. It receives raw argument bytes (extended-JSON encoded
// by the transport) and returns a Result.
type Body func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error)

// Tool is one registrable unit: identity, schema, policy classification,
// and its implementation.
type Tool struct {
	Name          string
	Category      Category
	OperationType OperationType
	Description   string
	InputSchema   *jsonschema.Schema
	Annotations   Annotations
	Run           Body
}

func newTool(name string, category Category, op OperationType, description string, schema *jsonschema.Schema, run Body) Tool {
	return Tool{
		Name:          name,
		Category:      category,
		OperationType: op,
		Description:   description,
		InputSchema:   schema,
		Annotations:   annotationsFor(description, op),
		Run:           run,
	}
}
