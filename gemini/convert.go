package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/rosescout/rosescout"
	"github.com/rosescout/rosescout/agent"
	"github.com/rosescout/rosescout/conversation"
)

// toContents renders a transcript into Gemini's content format. Model turns
// carry their function call parts; tool result turns are sent from the user
// side as function responses, correlated by call id.
func toContents(turns []conversation.Turn) ([]*genai.Content, error) {
	callNames := make(map[string]string)
	var contents []*genai.Content

	for _, turn := range turns {
		switch t := turn.(type) {
		case conversation.UserTurn:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: t.Text}},
			})
		case conversation.ModelTurn:
			content := &genai.Content{Role: genai.RoleModel}
			if t.Text != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: t.Text})
			}
			for _, call := range t.Calls {
				callNames[call.ID] = call.ToolName
				var args map[string]any
				if len(call.Args) > 0 {
					if err := json.Unmarshal(call.Args, &args); err != nil {
						return nil, fmt.Errorf("tool call %s: invalid args: %w", call.ID, err)
					}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{Name: call.ToolName, Args: args},
				})
			}
			if len(content.Parts) > 0 {
				contents = append(contents, content)
			}
		case conversation.ToolResultTurn:
			content := &genai.Content{Role: genai.RoleUser}
			for _, res := range t.Results {
				name := res.ToolName
				if name == "" {
					name = callNames[res.CallID]
				}
				var response map[string]any
				if err := json.Unmarshal(res.ModelPayload(), &response); err != nil {
					response = map[string]any{"result": string(res.ModelPayload())}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{Name: name, Response: response},
				})
			}
			contents = append(contents, content)
		default:
			return nil, fmt.Errorf("unknown turn type %T", turn)
		}
	}
	return contents, nil
}

// toDeclarations converts registered tools to Gemini function declarations.
func toDeclarations(tools []rosescout.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  toSchema(tool.Parameters()),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// toSchema converts a JSON Schema map to Gemini's Schema type. Gemini accepts
// a subset of JSON Schema; keywords outside that subset are dropped.
func toSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}
	schema := &genai.Schema{}

	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = toSchema(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = toSchema(items)
	}
	return schema
}

// toToolConfig maps the loop's tool-calling mode onto Gemini's function
// calling config.
func toToolConfig(choice agent.ToolChoice) *genai.ToolConfig {
	mode := genai.FunctionCallingConfigModeAuto
	switch choice {
	case agent.ToolChoiceRequired:
		mode = genai.FunctionCallingConfigModeAny
	case agent.ToolChoiceNone:
		mode = genai.FunctionCallingConfigModeNone
	}
	return &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode},
	}
}

// fromResponse extracts text and tool calls from a Gemini response. Gemini
// does not assign call ids, so each call is minted a fresh one here; the id
// correlates the call with its result for the rest of the request.
func fromResponse(resp *genai.GenerateContentResponse) (*agent.Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from model")
	}

	reply := &agent.Reply{}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				args = []byte("{}")
			}
			reply.Calls = append(reply.Calls, rosescout.ToolCall{
				ID:       uuid.NewString(),
				ToolName: part.FunctionCall.Name,
				Args:     args,
			})
		}
	}
	reply.Text = text.String()
	return reply, nil
}
