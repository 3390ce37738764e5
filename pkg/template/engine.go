// Package template implements the fixed Jinja-family expression and
// control-flow subset spec §4.2 describes: {{ expr }} substitution,
// {% if/elif/else/endif %} control blocks, a fixed filter set, and
// strict-undefined name resolution.
package template

import (
	"fmt"
	"os"
	"strings"

	"github.com/sansible/sansible/pkg/types"
)

// Engine renders template strings and values against a variable
// mapping. It is safe for concurrent use; templates are parsed fresh
// on every call (no exec.Template caching), matching the ad-hoc nature
// of argument templating in a task scheduler rather than a web server
// rendering the same template repeatedly under load.
type Engine struct {
	filters *filterSet
}

// NewEngine creates a template engine with the fixed filter set wired
// in (pkg/filter, supplemented by the `default`/`d` filter implemented
// directly against the strict-undefined evaluator).
func NewEngine() *Engine {
	return &Engine{filters: newFilterSet()}
}

// DefaultTemplateEngine is the shared engine instance used where no
// per-run engine is threaded through explicitly.
var DefaultTemplateEngine = NewEngine()

// hasMarkers reports whether s contains a `{{` or `{%` marker at all —
// used as the fast path spec §4.2 calls for ("strings that contain no
// marker are returned unchanged").
func hasMarkers(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%")
}

// Render expands {{ … }} expressions and {% … %} control blocks in
// templateStr against vars.
func (e *Engine) Render(templateStr string, vars map[string]interface{}) (string, error) {
	if !hasMarkers(templateStr) {
		return templateStr, nil
	}

	segs, err := splitMarkers(templateStr)
	if err != nil {
		return "", types.NewTemplateError("inline", 0, 0, "failed to parse template", err)
	}
	nodes, _, err := parseSegments(segs, 0)
	if err != nil {
		return "", types.NewTemplateError("inline", 0, 0, "failed to parse template", err)
	}

	var out strings.Builder
	if err := renderNodes(nodes, vars, e.filters, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

// RenderFile reads filepath and renders its contents against vars.
func (e *Engine) RenderFile(path string, vars map[string]interface{}) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", types.NewTemplateError(path, 0, 0, "failed to read template file", err)
	}
	result, err := e.Render(string(content), vars)
	if err != nil {
		if templateErr, ok := err.(*types.TemplateError); ok {
			templateErr.Template = path
			return "", templateErr
		}
		return "", err
	}
	return result, nil
}

// RenderValue recursively walks v, rendering every string leaf against
// vars; map keys that are strings are rendered too. Other scalars,
// bools, numbers, and nil pass through unchanged (spec §4.2 "Render
// recursive").
func (e *Engine) RenderValue(v interface{}, vars map[string]interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return e.Render(val, vars)
	case map[string]interface{}:
		result := make(map[string]interface{}, len(val))
		for k, item := range val {
			renderedKey := k
			if hasMarkers(k) {
				rk, err := e.Render(k, vars)
				if err != nil {
					return nil, err
				}
				renderedKey = rk
			}
			renderedVal, err := e.RenderValue(item, vars)
			if err != nil {
				return nil, err
			}
			result[renderedKey] = renderedVal
		}
		return result, nil
	case []interface{}:
		result := make([]interface{}, len(val))
		for i, item := range val {
			renderedVal, err := e.RenderValue(item, vars)
			if err != nil {
				return nil, err
			}
			result[i] = renderedVal
		}
		return result, nil
	default:
		return v, nil
	}
}

// EvaluateWhen wraps expr as {{ expr }}, evaluates it, and coerces the
// result to a boolean using Ansible truthy rules (spec §4.2). `is
// defined`/`is not defined` are resolved via the dedicated evaluator
// path so an undefined name under test doesn't fail the render.
func (e *Engine) EvaluateWhen(expr string, vars map[string]interface{}) (bool, error) {
	trimmed := strings.TrimSpace(expr)
	ast, err := parseExpr(trimmed)
	if err != nil {
		return false, types.NewTemplateError("inline", 0, 0, "failed to parse when expression", fmt.Errorf("%s: %w", truncateSnippet(trimmed, 80), err))
	}

	ctx := &evalCtx{vars: vars, filters: e.filters, src: trimmed}
	result, err := evalExpr(ast, ctx)
	if err != nil {
		return false, err
	}
	if isUndefined(result) {
		return false, undefinedErr(result, trimmed)
	}
	return truthy(result), nil
}

// ValidateTemplate checks that templateStr parses without executing it.
func (e *Engine) ValidateTemplate(templateStr string) error {
	if !hasMarkers(templateStr) {
		return nil
	}
	segs, err := splitMarkers(templateStr)
	if err != nil {
		return types.NewTemplateError("inline", 0, 0, "template validation failed", err)
	}
	if _, _, err := parseSegments(segs, 0); err != nil {
		return types.NewTemplateError("inline", 0, 0, "template validation failed", err)
	}
	return nil
}

// ValidateTemplateFile is ValidateTemplate over a file on disk.
func (e *Engine) ValidateTemplateFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return types.NewTemplateError(path, 0, 0, "failed to read template file", err)
	}
	if err := e.ValidateTemplate(string(content)); err != nil {
		if templateErr, ok := err.(*types.TemplateError); ok {
			templateErr.Template = path
		}
		return err
	}
	return nil
}
