package playbook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// resolvePath resolves a playbook-relative path (vars_files, includes)
// against the playbook's directory, passing absolute paths through.
func resolvePath(playbookDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(playbookDir, path)
}

// loadVarsFileMerge decodes one vars_files entry.
func loadVarsFileMerge(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	vars := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// stringifyHosts renders the play's hosts field (string or list) into the
// comma-separated pattern string types.Play.Hosts carries.
func stringifyHosts(hosts interface{}) string {
	switch h := hosts.(type) {
	case string:
		return strings.TrimSpace(h)
	case []interface{}:
		parts := make([]string, len(h))
		for i, item := range h {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", hosts)
	}
}

// toList coerces a decoded YAML value into []interface{}, treating a
// missing/nil value as empty.
func toList(v interface{}) []interface{} {
	if v == nil {
		return nil
	}
	if list, ok := v.([]interface{}); ok {
		return list
	}
	return nil
}

// toMapList coerces a decoded YAML list into []map[string]interface{},
// the shape every task/block/rescue/always list takes.
func toMapList(v interface{}) []map[string]interface{} {
	list := toList(v)
	out := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// toStringList coerces a decoded YAML value (string, list, or nil) into a
// string slice — used for notify/listen/tags/vars_files, each of which
// may appear as either a bare string or a list in YAML.
func toStringList(v interface{}) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []interface{}:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = fmt.Sprintf("%v", item)
		}
		return out
	case []string:
		return val
	default:
		return nil
	}
}

// toStringMap coerces a decoded YAML mapping into map[string]string,
// stringifying values (used for `environment`).
func toStringMap(v map[string]interface{}) map[string]string {
	out := make(map[string]string, len(v))
	for k, val := range v {
		out[k] = fmt.Sprintf("%v", val)
	}
	return out
}

// toTagSet coerces a `tags` value (string or list) into the set form
// types.Task/types.Play carry.
func toTagSet(v interface{}) map[string]bool {
	return toTagSetFromSlice(toStringList(v))
}

func toTagSetFromSlice(tags []string) map[string]bool {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]bool, len(tags))
	for _, t := range tags {
		out[t] = true
	}
	return out
}

// unionTagSets merges b's tags into a (neither is mutated), returning nil
// when both are empty.
func unionTagSets(a, b map[string]bool) map[string]bool {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]bool, len(a)+len(b))
	for t := range a {
		out[t] = true
	}
	for t := range b {
		out[t] = true
	}
	return out
}

// joinWhen normalizes a `when` value (string, list of strings, or nil)
// into the single AND-joined expression types.Task.When carries (spec
// §4.4: "when values that are lists AND-join with ` and `").
func joinWhen(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(parts, " and ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// andJoin AND-composes two conditions, dropping either side if empty.
func andJoin(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return fmt.Sprintf("(%s) and (%s)", a, b)
	}
}

// parseInlineArgs attempts to parse a free-form task string as Ansible's
// inline `key=value key2="quoted value"` shorthand (spec §4.4). Returns
// ok=false when the string doesn't look like key=value pairs, in which
// case the caller stores it verbatim as RawParams for shell-family
// modules.
func parseInlineArgs(s string) (map[string]interface{}, bool) {
	tokens, err := tokenizeInline(s)
	if err != nil || len(tokens) == 0 {
		return nil, false
	}
	args := make(map[string]interface{}, len(tokens))
	for _, tok := range tokens {
		eq := strings.IndexByte(tok, '=')
		if eq <= 0 {
			return nil, false
		}
		key := tok[:eq]
		if !isIdentifier(key) {
			return nil, false
		}
		args[key] = tok[eq+1:]
	}
	return args, true
}

// tokenizeInline splits s on whitespace, honoring single/double-quoted
// spans so `msg="hello world"` stays one token.
func tokenizeInline(s string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	var quote rune
	inToken := false

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			flush()
		default:
			inToken = true
			cur.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	flush()
	return tokens, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isLetter {
			return false
		}
		if !isLetter && !isDigit {
			return false
		}
	}
	return true
}
