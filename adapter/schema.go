package adapter

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/skosovsky/chatbridge"
)

// Tool is the backend's function-tool DTO, serialized as
// {"type":"function","function":{"name","description","parameters"}}.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function describes one callable function.
type Function struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

// Parameters is the flat object schema the backend accepts.
// Required is never nil so it serializes as [] rather than null.
type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// Property is one parameter: its JSON type and description.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

const (
	defaultParamsType   = "object"
	defaultPropertyType = "string"
)

// MapTool converts a tool descriptor into the backend DTO. It never fails: property
// type defaults to "string", description to "", the parameter block type to "object";
// unknown keys are ignored and malformed required entries are skipped one by one.
func MapTool(d chatbridge.ToolDescriptor) Tool {
	return Tool{
		Type: "function",
		Function: Function{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  mapParameters(d.JSONSchema),
		},
	}
}

// MapTools maps descriptors in order. It returns nil for no descriptors.
func MapTools(ds []chatbridge.ToolDescriptor) []Tool {
	if len(ds) == 0 {
		return nil
	}
	out := make([]Tool, 0, len(ds))
	for _, d := range ds {
		out = append(out, MapTool(d))
	}
	return out
}

func mapParameters(schema map[string]any) Parameters {
	p := Parameters{
		Type:       defaultParamsType,
		Properties: map[string]Property{},
		Required:   []string{},
	}
	if schema == nil {
		return p
	}
	// Typed maps ([string]map[string]any, [string]string, ...) are only readable
	// after a round-trip through JSON.
	raw, err := json.Marshal(schema)
	if err != nil {
		return p
	}
	doc := gjson.ParseBytes(raw)
	if t := doc.Get("type"); t.Type == gjson.String && t.Str != "" {
		p.Type = t.Str
	}
	if props := doc.Get("properties"); props.IsObject() {
		props.ForEach(func(name, v gjson.Result) bool {
			if name.Str != "" {
				p.Properties[name.Str] = mapProperty(v)
			}
			return true
		})
	}
	if req := doc.Get("required"); req.IsArray() {
		req.ForEach(func(_, v gjson.Result) bool {
			if v.Type == gjson.String && v.Str != "" {
				p.Required = append(p.Required, v.Str)
			}
			return true
		})
	}
	return p
}

func mapProperty(v gjson.Result) Property {
	prop := Property{Type: defaultPropertyType}
	if !v.IsObject() {
		return prop
	}
	if t := v.Get("type"); t.Type == gjson.String && t.Str != "" {
		prop.Type = t.Str
	}
	if d := v.Get("description"); d.Type == gjson.String {
		prop.Description = d.Str
	}
	return prop
}
