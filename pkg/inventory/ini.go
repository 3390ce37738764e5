package inventory

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sansible/sansible/pkg/types"
)

// LoadINIFile loads a static inventory from the classic Ansible INI
// format (spec §4.3): a bare `[name]` section header lists hosts, a
// `[name:vars]` section holds `key=value` group variables, and a
// `[name:children]` section lists child group names.
func LoadINIFile(path string) (*StaticInventory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, types.NewInventoryError(path, "failed to open file", err)
	}
	defer file.Close()
	return LoadINI(file, path)
}

// sectionKind distinguishes the three INI section shapes.
type sectionKind int

const (
	sectionHosts sectionKind = iota
	sectionVars
	sectionChildren
)

// LoadINI parses r as an Ansible-style INI inventory. source names the
// origin for error messages.
func LoadINI(r io.Reader, source string) (*StaticInventory, error) {
	inv := NewStaticInventory()

	currentGroup := ""
	currentKind := sectionHosts

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			header := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			if idx := strings.LastIndex(header, ":"); idx >= 0 {
				switch header[idx+1:] {
				case "vars":
					currentGroup = header[:idx]
					currentKind = sectionVars
				case "children":
					currentGroup = header[:idx]
					currentKind = sectionChildren
				default:
					currentGroup = header
					currentKind = sectionHosts
				}
			} else {
				currentGroup = header
				currentKind = sectionHosts
			}
			continue
		}

		if currentGroup == "" {
			return nil, types.NewInventoryError(source, fmt.Sprintf("line %d: host declared before any section header", lineNo), nil)
		}

		switch currentKind {
		case sectionVars:
			key, value, err := parseINIKeyValue(line)
			if err != nil {
				return nil, types.NewInventoryError(source, fmt.Sprintf("line %d: %v", lineNo, err), nil)
			}
			inv.AddGroupVars(currentGroup, map[string]interface{}{key: value})
		case sectionChildren:
			inv.LinkGroups(currentGroup, strings.TrimSpace(line))
		case sectionHosts:
			hostPattern, vars, err := parseINIHostLine(line)
			if err != nil {
				return nil, types.NewInventoryError(source, fmt.Sprintf("line %d: %v", lineNo, err), nil)
			}
			names, err := expandHostRange(hostPattern)
			if err != nil {
				return nil, types.NewInventoryError(source, fmt.Sprintf("line %d: %v", lineNo, err), nil)
			}
			for _, name := range names {
				if currentGroup == "all" {
					inv.AddHost(name, vars)
				} else {
					inv.AddHost(name, vars, currentGroup)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, types.NewInventoryError(source, "failed to read inventory", err)
	}

	inv.finalizeUngrouped()
	return inv, nil
}

// parseINIHostLine splits "HOST key=value key2=value2" into the host
// name/range-pattern and its variable mapping.
func parseINIHostLine(line string) (string, map[string]interface{}, error) {
	fields := splitINIFields(line)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("empty host line")
	}
	host := fields[0]
	vars := make(map[string]interface{})
	for _, field := range fields[1:] {
		key, value, err := parseINIKeyValue(field)
		if err != nil {
			return "", nil, err
		}
		vars[key] = value
	}
	return host, vars, nil
}

// splitINIFields splits a line on whitespace, respecting double-quoted
// values that may themselves contain spaces (e.g. ansible_user="a b").
func splitINIFields(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == ' ' || r == '\t':
			if inQuotes {
				cur.WriteRune(r)
			} else if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

// parseINIKeyValue splits "key=value" and coerces value to bool/int/
// float/null when recognizable, else leaves it a (quote-stripped) string.
func parseINIKeyValue(field string) (string, interface{}, error) {
	idx := strings.Index(field, "=")
	if idx < 0 {
		return "", nil, fmt.Errorf("expected key=value, got %q", field)
	}
	key := strings.TrimSpace(field[:idx])
	raw := strings.TrimSpace(field[idx+1:])
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	return key, coerceINIValue(raw), nil
}

// coerceINIValue applies spec §4.3's "bool/int/float/null when
// recognizable" rule, falling back to the literal string.
func coerceINIValue(raw string) interface{} {
	switch strings.ToLower(raw) {
	case "true", "yes":
		return true
	case "false", "no":
		return false
	case "null", "none", "~":
		return nil
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
