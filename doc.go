// Package rosescout provides the tool-calling engine for the rosescout
// customer-screening assistant: registering, describing, and safely
// executing tools (functions) that an LLM may call during screening.
//
// # Overview
//
// The model produces tool calls as JSON. This package turns that JSON into
// concrete Go function calls: unmarshal → validate (against the same JSON
// Schema advertised to the model) → execute → marshal result, or return a
// clear error the model can react to.
//
// Pipeline: Go function + argument struct → NewTool (reflection + schema) →
// Tool → Registry → Execute (unmarshal, validate, call, marshal) →
// ToolResult.
//
// # Key concepts
//
//   - Single source of truth: one set of struct tags drives both the schema
//     sent to the model and the validation of incoming JSON.
//   - Partial success: ExecuteBatch collects all results; one failure does
//     not cancel sibling calls.
//   - Self-correction: ClientError carries human-readable messages back to
//     the model; SystemError redacts internals.
//
// The multi-turn orchestration that drives tool rounds lives in the agent
// package; conversation transcripts in the conversation package; final
// output sanitization in the sanitize package.
//
// # Example
//
//	type Args struct { Address string `json:"address" description:"Street address to geocode"` }
//	type Out  struct { Lat float64 `json:"latitude"`; Lng float64 `json:"longitude"` }
//	tool, err := rosescout.NewTool("get_coordinates", "Geocode an address", func(_ context.Context, a Args) (Out, error) {
//	    return Out{Lat: 37.42, Lng: -122.08}, nil
//	})
//	if err != nil { ... }
//	reg := rosescout.NewRegistry()
//	if err := reg.Register(tool); err != nil { ... }
//	res := reg.Execute(ctx, rosescout.ToolCall{ID: "1", ToolName: "get_coordinates", Args: []byte(`{"address":"1600 Amphitheatre Pkwy"}`)})
package rosescout
