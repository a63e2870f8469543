// Package persona defines the built-in assistant personalities a session can
// be started with.
package persona

import (
	"path/filepath"
	"sort"
	"strings"
)

const (
	IDProjectManager = "project-manager"
	IDCodeAssistant  = "code-assistant"
	IDDocAssistant   = "doc-assistant"
	IDPlain          = "plain"
)

const (
	DefaultSummaryTemplate  = "Summarize:\n\n"
	ProjectSummaryTemplate  = "From this history write a project called Agents Project with the context, objectives and the development of the project.\n\n"
	KeyPointSummaryTemplate = "Please Summarize the following conversation by extracting the key points in order by sections:\n\n"
	CodeReferencePrefix     = "The following is a code snippet:\n"
)

// Persona seeds a conversation and decides how it is summarized.
type Persona struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Seed            string `json:"seed,omitempty"`
	SummaryTemplate string `json:"summary_template"`
	// ReferencePrefix is empty when the conversation default applies.
	ReferencePrefix string `json:"reference_prefix,omitempty"`
	// RequiresReference rejects submissions without uploaded content.
	RequiresReference bool `json:"requires_reference"`
}

var builtins = map[string]Persona{
	IDProjectManager: {
		ID:    IDProjectManager,
		Title: "AI Project Manager Assistant",
		Seed: `You are a Scrum Master specialized in application development. You are proficient in tools such as JIRA, SCRUM, Agile Methodologies, Python, Django, HTML, CSS and databases such as MySQL or Mongo DB. You are working in an environment that has Windows 10 and Pycharm as IDE. When planning the sprint please keep in mind:
- The duration of the sprint should be 15 days.
- The dashboards will be classified as: to do, in progress, blocked, to check or finished.
- It should include the step-by-step actions to achieve the project goal.`,
		SummaryTemplate: ProjectSummaryTemplate,
	},
	IDCodeAssistant: {
		ID:                IDCodeAssistant,
		Title:             "Code Assistant",
		Seed:              "Simulate an exceptionally talented software developer ...",
		SummaryTemplate:   KeyPointSummaryTemplate,
		ReferencePrefix:   CodeReferencePrefix,
		RequiresReference: true,
	},
	IDDocAssistant: {
		ID:    IDDocAssistant,
		Title: "Documentation Assistant",
		Seed: `Eres un ingeniero de software especializado en el desarrollo de aplicaciones. Tienes el dominio de herramientas como Python, Django, HTML, CSS y Bases de datos. Estas trabajando en un entorno que cuenta con Windows 10 y Pycharm. Cuando propongas código:
- Los comentarios dentro del codigo deben estar en idioma ingles.
- Cuando lo veas conveniente, incluye en los codigos propuestos lo necesario para la gestion de errores.`,
		SummaryTemplate:   KeyPointSummaryTemplate,
		ReferencePrefix:   CodeReferencePrefix,
		RequiresReference: true,
	},
	IDPlain: {
		ID:              IDPlain,
		Title:           "Plain",
		SummaryTemplate: DefaultSummaryTemplate,
	},
}

// Lookup returns the persona registered under id. Matching ignores case and
// surrounding space.
func Lookup(id string) (Persona, bool) {
	p, ok := builtins[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// List returns all built-in personas ordered by id.
func List() []Persona {
	out := make([]Persona, 0, len(builtins))
	for _, p := range builtins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var referenceExtensions = map[string]struct{}{
	".html": {},
	".py":   {},
	".php":  {},
	".js":   {},
	".css":  {},
	".csv":  {},
	".txt":  {},
}

// AllowedReference reports whether filename has an extension accepted for
// reference uploads.
func AllowedReference(filename string) bool {
	_, ok := referenceExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// ReferenceExtensions lists accepted upload extensions without the dot.
func ReferenceExtensions() []string {
	out := make([]string, 0, len(referenceExtensions))
	for ext := range referenceExtensions {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(out)
	return out
}
