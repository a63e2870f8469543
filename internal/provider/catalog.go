package provider

import "strings"

const (
	FamilyOpenAI = "openai"
	FamilyGemini = "gemini"
	FamilyAny    = "any"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// Model is one entry of the model selection list.
type Model struct {
	Name   string `json:"name"`
	ID     string `json:"id"`
	Family string `json:"family"`
}

var catalog = []Model{
	{Name: "OpenAI GPT-4", ID: "gpt-4", Family: FamilyOpenAI},
	{Name: "OpenAI GPT-3.5", ID: "gpt-3.5-turbo", Family: FamilyOpenAI},
	{Name: "OpenAI GPT-4 Turbo", ID: "gpt-4-1106-preview", Family: FamilyOpenAI},
	{Name: "Gemini 2.5 Flash", ID: "gemini-2.5-flash", Family: FamilyGemini},
	{Name: "Gemini 2.5 Flash Lite", ID: "gemini-2.5-flash-lite", Family: FamilyGemini},
}

// Models lists the catalog entries usable by a backend of the given family.
func Models(family string) []Model {
	out := make([]Model, 0, len(catalog))
	for _, m := range catalog {
		if family == "" || family == FamilyAny || m.Family == family {
			out = append(out, m)
		}
	}
	return out
}

// ResolveModel accepts a display name or a raw model id. Unknown ids that
// look like a known family are passed through.
func ResolveModel(nameOrID string) (Model, bool) {
	v := strings.TrimSpace(nameOrID)
	if v == "" {
		return Model{}, false
	}
	for _, m := range catalog {
		if strings.EqualFold(m.Name, v) || m.ID == v {
			return m, true
		}
	}
	if f := Family(v); f != "" {
		return Model{Name: v, ID: v, Family: f}, true
	}
	return Model{}, false
}

// Family guesses the backend family of a model id.
func Family(modelID string) string {
	id := strings.ToLower(strings.TrimSpace(modelID))
	switch {
	case strings.HasPrefix(id, "gpt-"), strings.HasPrefix(id, "o1"), strings.HasPrefix(id, "o3"), strings.HasPrefix(id, "o4"):
		return FamilyOpenAI
	case strings.HasPrefix(id, "gemini-"):
		return FamilyGemini
	default:
		return ""
	}
}

// Supports reports whether backend b can serve model m.
func Supports(b Backend, m Model) bool {
	f := b.Family()
	return f == FamilyAny || f == m.Family
}
