package tool

// Choice is the tool-choice policy of a session or response.
type Choice string

const (
	ChoiceAuto     Choice = "auto"
	ChoiceNone     Choice = "none"
	ChoiceRequired Choice = "required"
)

type Tool struct {
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

type Parameters struct {
	Type       string     `json:"type"`
	Properties Properties `json:"properties"`
	Required   []string   `json:"required"`
}

type Properties map[string]Property

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// Function declares a function tool without parameters.
func Function(name, description string) Tool {
	return Tool{
		Type:        "function",
		Name:        name,
		Description: description,
		Parameters: Parameters{
			Type:       "object",
			Properties: Properties{},
			Required:   []string{},
		},
	}
}

// With adds a parameter to the tool.
func (t Tool) With(name string, p Property, required bool) Tool {
	props := make(Properties, len(t.Parameters.Properties)+1)
	for k, v := range t.Parameters.Properties {
		props[k] = v
	}
	props[name] = p
	t.Parameters.Properties = props
	if required {
		t.Parameters.Required = append(append([]string{}, t.Parameters.Required...), name)
	}
	return t
}
