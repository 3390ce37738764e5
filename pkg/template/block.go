package template

import (
	"fmt"
	"strings"
)

type segKind int

const (
	segText segKind = iota
	segExpr
	segTag
)

type segment struct {
	kind segKind
	raw  string
}

// splitMarkers breaks src into text/{{ expr }}/{% tag %} segments.
func splitMarkers(src string) ([]segment, error) {
	var segs []segment
	rest := src
	for {
		exprIdx := strings.Index(rest, "{{")
		tagIdx := strings.Index(rest, "{%")

		if exprIdx == -1 && tagIdx == -1 {
			if rest != "" {
				segs = append(segs, segment{kind: segText, raw: rest})
			}
			return segs, nil
		}

		var isExpr bool
		var idx int
		switch {
		case exprIdx == -1:
			idx, isExpr = tagIdx, false
		case tagIdx == -1:
			idx, isExpr = exprIdx, true
		case exprIdx < tagIdx:
			idx, isExpr = exprIdx, true
		default:
			idx, isExpr = tagIdx, false
		}

		if idx > 0 {
			segs = append(segs, segment{kind: segText, raw: rest[:idx]})
		}

		var closer string
		if isExpr {
			closer = "}}"
		} else {
			closer = "%}"
		}
		closeIdx := strings.Index(rest[idx:], closer)
		if closeIdx == -1 {
			return nil, fmt.Errorf("unterminated %q marker", rest[idx:idx+2])
		}
		inner := rest[idx+2 : idx+closeIdx]
		if isExpr {
			segs = append(segs, segment{kind: segExpr, raw: strings.TrimSpace(inner)})
		} else {
			segs = append(segs, segment{kind: segTag, raw: strings.TrimSpace(inner)})
		}
		rest = rest[idx+closeIdx+len(closer):]
	}
}

type tplNode interface{ isTplNode() }

type textTplNode struct{ text string }
type exprTplNode struct {
	expr node
	src  string
}
type ifBranch struct {
	cond node
	src  string
	body []tplNode
}
type ifTplNode struct {
	branches []ifBranch
	elseBody []tplNode
}

func (textTplNode) isTplNode() {}
func (exprTplNode) isTplNode() {}
func (ifTplNode) isTplNode()   {}

// parseSegments parses segs starting at i, returning the parsed nodes
// and the index of the first unconsumed segment — either len(segs) at
// top level, or the segment holding the elif/else/endif tag that ended
// an if-block, letting the caller continue from there.
func parseSegments(segs []segment, i int) ([]tplNode, int, error) {
	var nodes []tplNode
	for i < len(segs) {
		seg := segs[i]
		switch seg.kind {
		case segText:
			nodes = append(nodes, textTplNode{text: seg.raw})
			i++
		case segExpr:
			ast, err := parseExpr(seg.raw)
			if err != nil {
				return nil, i, fmt.Errorf("parsing %q: %w", seg.raw, err)
			}
			nodes = append(nodes, exprTplNode{expr: ast, src: seg.raw})
			i++
		case segTag:
			word, rest := splitTagWord(seg.raw)
			switch word {
			case "if":
				ifNode, next, err := parseIfTag(segs, i, rest)
				if err != nil {
					return nil, i, err
				}
				nodes = append(nodes, ifNode)
				i = next
			case "elif", "else", "endif":
				return nodes, i, nil
			default:
				return nil, i, fmt.Errorf("unsupported control tag %q", word)
			}
		}
	}
	return nodes, i, nil
}

func splitTagWord(raw string) (string, string) {
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}

func parseIfTag(segs []segment, i int, condSrc string) (ifTplNode, int, error) {
	var result ifTplNode

	cond, err := parseExpr(condSrc)
	if err != nil {
		return result, i, fmt.Errorf("parsing if condition %q: %w", condSrc, err)
	}

	body, next, err := parseSegments(segs, i+1)
	if err != nil {
		return result, i, err
	}
	result.branches = append(result.branches, ifBranch{cond: cond, src: condSrc, body: body})
	i = next

	for i < len(segs) && segs[i].kind == segTag {
		word, rest := splitTagWord(segs[i].raw)
		switch word {
		case "elif":
			elifCond, err := parseExpr(rest)
			if err != nil {
				return result, i, fmt.Errorf("parsing elif condition %q: %w", rest, err)
			}
			body, next, err := parseSegments(segs, i+1)
			if err != nil {
				return result, i, err
			}
			result.branches = append(result.branches, ifBranch{cond: elifCond, src: rest, body: body})
			i = next
			continue
		case "else":
			body, next, err := parseSegments(segs, i+1)
			if err != nil {
				return result, i, err
			}
			result.elseBody = body
			i = next
			continue
		case "endif":
			return result, i + 1, nil
		}
		break
	}
	return result, i, fmt.Errorf("missing {%% endif %%}")
}

func renderNodes(nodes []tplNode, vars map[string]interface{}, filters *filterSet, out *strings.Builder) error {
	for _, n := range nodes {
		switch v := n.(type) {
		case textTplNode:
			out.WriteString(v.text)
		case exprTplNode:
			ctx := &evalCtx{vars: vars, filters: filters, src: v.src}
			result, err := evalExpr(v.expr, ctx)
			if err != nil {
				return err
			}
			if isUndefined(result) {
				return undefinedErr(result, v.src)
			}
			out.WriteString(stringify(result))
		case ifTplNode:
			matched := false
			for _, branch := range v.branches {
				ctx := &evalCtx{vars: vars, filters: filters, src: branch.src}
				cond, err := evalExpr(branch.cond, ctx)
				if err != nil {
					return err
				}
				if isUndefined(cond) {
					return undefinedErr(cond, branch.src)
				}
				if truthy(cond) {
					if err := renderNodes(branch.body, vars, filters, out); err != nil {
						return err
					}
					matched = true
					break
				}
			}
			if !matched && v.elseBody != nil {
				if err := renderNodes(v.elseBody, vars, filters, out); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
