package model

// ToolDescriptor describes a tool discovered on a capability server. It is
// produced once per session handshake and never mutated afterwards.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  []ParamSpec
}

// ParamSpec is one entry of a tool's parameter schema. Type is the raw JSON
// schema type as announced by the server.
type ParamSpec struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// PrimitiveType is a parameter type every completion endpoint accepts.
type PrimitiveType string

const (
	TypeString  PrimitiveType = "string"
	TypeNumber  PrimitiveType = "number"
	TypeInteger PrimitiveType = "integer"
	TypeBoolean PrimitiveType = "boolean"
)

// FunctionSpec is a tool as offered to the model endpoint.
type FunctionSpec struct {
	Name        string
	Description string
	Parameters  []FunctionParam
}

type FunctionParam struct {
	Name        string
	Type        PrimitiveType
	Description string
	Required    bool
}

// RequiredNames lists required parameter names in declaration order.
func (f FunctionSpec) RequiredNames() []string {
	var names []string
	for _, p := range f.Parameters {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// JSONSchema renders the parameters as a JSON schema "properties" map.
func (f FunctionSpec) JSONSchema() map[string]any {
	props := make(map[string]any, len(f.Parameters))
	for _, p := range f.Parameters {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
	}
	return props
}
