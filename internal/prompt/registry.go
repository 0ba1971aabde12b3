// Package prompt is the immutable prompt registry. Templates are keyed by
// (agent, prompt_type) and use text/template with the Masterminds/sprig
// function map, matching the templating family already pulled in by the
// teacher's langchaingo dependency graph. Formatting fails, rather than
// silently rendering a blank, when a declared parameter is missing from
// the values supplied at format time.
package prompt

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"queryresolve/internal/models"
)

// Registry holds PromptTemplates keyed by "agent.prompt_type". It is
// immutable once built; hot-reload is out of scope per spec.
type Registry struct {
	templates map[string]compiledTemplate
}

type compiledTemplate struct {
	def    models.PromptTemplate
	system *template.Template
	user   *template.Template
}

// NewRegistry builds the registry containing every template the core's
// agents reference. Registration panics on a malformed built-in template
// (a programmer error, not a runtime condition).
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]compiledTemplate)}
	for _, def := range defaultTemplates() {
		r.mustRegister(def)
	}
	return r
}

func (r *Registry) mustRegister(def models.PromptTemplate) {
	if err := r.register(def); err != nil {
		panic(fmt.Sprintf("prompt: failed to register %s: %v", def.Key(), err))
	}
}

func (r *Registry) register(def models.PromptTemplate) error {
	funcs := sprig.TxtFuncMap()
	sysTpl, err := template.New(def.Key() + ".system").Funcs(funcs).Option("missingkey=error").Parse(def.SystemPrompt)
	if err != nil {
		return fmt.Errorf("parsing system_prompt: %w", err)
	}
	userTpl, err := template.New(def.Key() + ".user").Funcs(funcs).Option("missingkey=error").Parse(def.UserTemplate)
	if err != nil {
		return fmt.Errorf("parsing user_template: %w", err)
	}
	r.templates[def.Key()] = compiledTemplate{def: def, system: sysTpl, user: userTpl}
	return nil
}

// Rendered is the result of formatting a PromptTemplate: the system
// prompt and the user prompt, both fully substituted.
type Rendered struct {
	SystemPrompt string
	UserPrompt   string
}

// Format renders the template registered under (agent, promptType) using
// params. It returns an error if the template is unknown or if any
// parameter the template declares is missing from params.
func (r *Registry) Format(agent, promptType string, params map[string]any) (*Rendered, error) {
	key := agent + "." + promptType
	ct, ok := r.templates[key]
	if !ok {
		return nil, fmt.Errorf("prompt: no template registered for %q", key)
	}
	for _, name := range ct.def.Parameters {
		if _, present := params[name]; !present {
			return nil, fmt.Errorf("prompt: missing required parameter %q for template %q", name, key)
		}
	}

	var sysBuf, userBuf bytes.Buffer
	if err := ct.system.Execute(&sysBuf, params); err != nil {
		return nil, fmt.Errorf("prompt: formatting system_prompt for %q: %w", key, err)
	}
	if err := ct.user.Execute(&userBuf, params); err != nil {
		return nil, fmt.Errorf("prompt: formatting user_template for %q: %w", key, err)
	}
	return &Rendered{SystemPrompt: sysBuf.String(), UserPrompt: userBuf.String()}, nil
}

// Describe returns the registered PromptTemplate metadata (not including
// compiled templates), for introspection/tests.
func (r *Registry) Describe(agent, promptType string) (models.PromptTemplate, bool) {
	ct, ok := r.templates[agent+"."+promptType]
	return ct.def, ok
}
