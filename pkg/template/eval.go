package template

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/sansible/sansible/pkg/types"
)

// undefinedValue is the sentinel produced by a failed variable/attribute
// lookup. It satisfies the "strict undefined" contract (spec §4.2): most
// operations over it raise a template error, but `is defined`/`is
// undefined` and the `default` filter inspect it without erroring.
type undefinedValue struct{ name string }

func isUndefined(v interface{}) bool {
	_, ok := v.(undefinedValue)
	return ok
}

func undefinedErr(v interface{}, snippet string) error {
	u := v.(undefinedValue)
	return types.NewTemplateError("inline", 0, 0, fmt.Sprintf("'%s' is undefined", u.name), fmt.Errorf("offending expression: %s", truncateSnippet(snippet, 80)))
}

func truncateSnippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

type evalCtx struct {
	vars    map[string]interface{}
	filters *filterSet
	src     string
}

func evalExpr(n node, ctx *evalCtx) (interface{}, error) {
	switch v := n.(type) {
	case numberNode:
		return v.value, nil
	case stringNode:
		return v.value, nil
	case boolNode:
		return v.value, nil
	case noneNode:
		return nil, nil
	case identNode:
		val, ok := ctx.vars[v.name]
		if !ok {
			return undefinedValue{name: v.name}, nil
		}
		return val, nil
	case attrNode:
		target, err := evalExpr(v.target, ctx)
		if err != nil {
			return nil, err
		}
		if isUndefined(target) {
			return nil, undefinedErr(target, ctx.src)
		}
		return getAttr(target, v.attr), nil
	case indexNode:
		target, err := evalExpr(v.target, ctx)
		if err != nil {
			return nil, err
		}
		if isUndefined(target) {
			return nil, undefinedErr(target, ctx.src)
		}
		idx, err := evalExpr(v.index, ctx)
		if err != nil {
			return nil, err
		}
		return getIndex(target, idx), nil
	case listNode:
		items := make([]interface{}, 0, len(v.items))
		for _, item := range v.items {
			val, err := evalExpr(item, ctx)
			if err != nil {
				return nil, err
			}
			if isUndefined(val) {
				return nil, undefinedErr(val, ctx.src)
			}
			items = append(items, val)
		}
		return items, nil
	case dictNode:
		m := make(map[string]interface{}, len(v.keys))
		for i, k := range v.keys {
			kv, err := evalExpr(k, ctx)
			if err != nil {
				return nil, err
			}
			vv, err := evalExpr(v.values[i], ctx)
			if err != nil {
				return nil, err
			}
			m[types.ConvertToString(kv)] = vv
		}
		return m, nil
	case unaryNode:
		return evalUnary(v, ctx)
	case binaryNode:
		return evalBinary(v, ctx)
	case isTestNode:
		return evalIsTest(v, ctx)
	case ternaryNode:
		cond, err := evalExpr(v.cond, ctx)
		if err != nil {
			return nil, err
		}
		if isUndefined(cond) {
			return nil, undefinedErr(cond, ctx.src)
		}
		if truthy(cond) {
			return evalExpr(v.trueVal, ctx)
		}
		return evalExpr(v.falseVal, ctx)
	case filterNode:
		return evalFilter(v, ctx)
	case callNode:
		return nil, fmt.Errorf("function calls are not supported in expressions")
	}
	return nil, fmt.Errorf("unsupported expression node %T", n)
}

func evalUnary(v unaryNode, ctx *evalCtx) (interface{}, error) {
	val, err := evalExpr(v.operand, ctx)
	if err != nil {
		return nil, err
	}
	switch v.op {
	case "not":
		if isUndefined(val) {
			return true, nil
		}
		return !truthy(val), nil
	case "-":
		if isUndefined(val) {
			return nil, undefinedErr(val, ctx.src)
		}
		f, err := toFloat(val)
		if err != nil {
			return nil, err
		}
		return -f, nil
	}
	return nil, fmt.Errorf("unknown unary operator %q", v.op)
}

func evalBinary(v binaryNode, ctx *evalCtx) (interface{}, error) {
	// short-circuit and/or before resolving undefined on the right side
	if v.op == "and" {
		left, err := evalExpr(v.left, ctx)
		if err != nil {
			return nil, err
		}
		if !isUndefined(left) && !truthy(left) {
			return false, nil
		}
		if isUndefined(left) {
			return nil, undefinedErr(left, ctx.src)
		}
		right, err := evalExpr(v.right, ctx)
		if err != nil {
			return nil, err
		}
		if isUndefined(right) {
			return nil, undefinedErr(right, ctx.src)
		}
		return truthy(right), nil
	}
	if v.op == "or" {
		left, err := evalExpr(v.left, ctx)
		if err != nil {
			return nil, err
		}
		if !isUndefined(left) && truthy(left) {
			return true, nil
		}
		if isUndefined(left) {
			return nil, undefinedErr(left, ctx.src)
		}
		right, err := evalExpr(v.right, ctx)
		if err != nil {
			return nil, err
		}
		if isUndefined(right) {
			return nil, undefinedErr(right, ctx.src)
		}
		return truthy(right), nil
	}

	left, err := evalExpr(v.left, ctx)
	if err != nil {
		return nil, err
	}
	if isUndefined(left) {
		return nil, undefinedErr(left, ctx.src)
	}
	right, err := evalExpr(v.right, ctx)
	if err != nil {
		return nil, err
	}
	if isUndefined(right) {
		return nil, undefinedErr(right, ctx.src)
	}

	switch v.op {
	case "==":
		return valuesEqual(left, right), nil
	case "!=":
		return !valuesEqual(left, right), nil
	case "~":
		return types.ConvertToString(left) + types.ConvertToString(right), nil
	case "in":
		return containsValue(right, left), nil
	case "<", ">", "<=", ">=":
		lf, lerr := toFloat(left)
		rf, rerr := toFloat(right)
		if lerr == nil && rerr == nil {
			switch v.op {
			case "<":
				return lf < rf, nil
			case ">":
				return lf > rf, nil
			case "<=":
				return lf <= rf, nil
			case ">=":
				return lf >= rf, nil
			}
		}
		ls, rs := types.ConvertToString(left), types.ConvertToString(right)
		switch v.op {
		case "<":
			return ls < rs, nil
		case ">":
			return ls > rs, nil
		case "<=":
			return ls <= rs, nil
		case ">=":
			return ls >= rs, nil
		}
	case "+", "-", "*", "/", "%", "//":
		return arithmetic(v.op, left, right)
	}
	return nil, fmt.Errorf("unknown binary operator %q", v.op)
}

func arithmetic(op string, left, right interface{}) (interface{}, error) {
	if op == "+" {
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
		}
		if ll, rl, ok := bothLists(left, right); ok {
			return append(append([]interface{}{}, ll...), rl...), nil
		}
	}
	lf, err := toFloat(left)
	if err != nil {
		return nil, err
	}
	rf, err := toFloat(right)
	if err != nil {
		return nil, err
	}
	var result float64
	switch op {
	case "+":
		result = lf + rf
	case "-":
		result = lf - rf
	case "*":
		result = lf * rf
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		result = lf / rf
	case "//":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		result = float64(int64(lf / rf))
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		result = float64(int64(lf) % int64(rf))
	}
	if result == float64(int64(result)) {
		return int64(result), nil
	}
	return result, nil
}

func bothLists(a, b interface{}) ([]interface{}, []interface{}, bool) {
	la, ok1 := toSlice(a)
	lb, ok2 := toSlice(b)
	return la, lb, ok1 && ok2
}

func evalIsTest(v isTestNode, ctx *evalCtx) (interface{}, error) {
	// `is defined` / `is not defined` tolerate an undefined operand by
	// design — this is the dedicated code path spec §4.2 calls for.
	operandVal, err := evalExpr(v.operand, ctx)
	if err != nil {
		if ue, ok := err.(interface{ Unwrap() error }); ok {
			_ = ue
		}
		return nil, err
	}

	var result bool
	switch v.test {
	case "defined":
		result = !isUndefined(operandVal)
	case "undefined":
		result = isUndefined(operandVal)
	case "none":
		result = !isUndefined(operandVal) && operandVal == nil
	case "string":
		_, result = operandVal.(string)
	case "number":
		_, isFloat := operandVal.(float64)
		_, isInt := operandVal.(int)
		_, isInt64 := operandVal.(int64)
		result = isFloat || isInt || isInt64
	case "iterable":
		if isUndefined(operandVal) {
			return nil, undefinedErr(operandVal, ctx.src)
		}
		rv := reflect.ValueOf(operandVal)
		result = rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array || rv.Kind() == reflect.Map || rv.Kind() == reflect.String
	case "mapping":
		if isUndefined(operandVal) {
			return nil, undefinedErr(operandVal, ctx.src)
		}
		_, result = operandVal.(map[string]interface{})
	case "sequence":
		if isUndefined(operandVal) {
			return nil, undefinedErr(operandVal, ctx.src)
		}
		_, result = toSlice(operandVal)
	case "eq", "equalto":
		if isUndefined(operandVal) {
			return nil, undefinedErr(operandVal, ctx.src)
		}
		if len(v.args) != 1 {
			return nil, fmt.Errorf("'is eq' requires one argument")
		}
		arg, err := evalExpr(v.args[0], ctx)
		if err != nil {
			return nil, err
		}
		result = valuesEqual(operandVal, arg)
	default:
		return nil, fmt.Errorf("unknown test %q", v.test)
	}
	if v.negate {
		result = !result
	}
	return result, nil
}

func evalFilter(v filterNode, ctx *evalCtx) (interface{}, error) {
	operandVal, err := evalExpr(v.operand, ctx)
	if err != nil {
		return nil, err
	}

	args := make([]interface{}, 0, len(v.args))
	for _, a := range v.args {
		av, err := evalExpr(a, ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, av)
	}
	kwargs := make(map[string]interface{}, len(v.kwargs))
	for k, a := range v.kwargs {
		av, err := evalExpr(a, ctx)
		if err != nil {
			return nil, err
		}
		kwargs[k] = av
	}

	if v.name == "default" || v.name == "d" {
		return applyDefault(operandVal, args, kwargs), nil
	}

	if isUndefined(operandVal) {
		return nil, undefinedErr(operandVal, ctx.src)
	}
	return ctx.filters.apply(v.name, operandVal, args)
}

func applyDefault(operand interface{}, args []interface{}, kwargs map[string]interface{}) interface{} {
	var defaultVal interface{} = ""
	if len(args) > 0 {
		defaultVal = args[0]
	}
	boolean := false
	if b, ok := kwargs["boolean"]; ok {
		boolean = truthy(b)
	} else if len(args) > 1 {
		boolean = truthy(args[1])
	}

	if isUndefined(operand) {
		return defaultVal
	}
	if boolean && !truthy(operand) {
		return defaultVal
	}
	return operand
}

// stringify renders a value for output in a {{ }} expansion.
func stringify(v interface{}) string {
	return types.ConvertToString(v)
}

func truthy(v interface{}) bool {
	if isUndefined(v) {
		return false
	}
	return types.ConvertToBool(v)
}

func valuesEqual(a, b interface{}) bool {
	af, aerr := toFloat(a)
	bf, berr := toFloat(b)
	if aerr == nil && berr == nil {
		return af == bf
	}
	return types.ConvertToString(a) == types.ConvertToString(b)
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

func toSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case []string:
		out := make([]interface{}, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

func containsValue(container, needle interface{}) bool {
	if s, ok := container.(string); ok {
		if ns, ok := needle.(string); ok {
			return strings.Contains(s, ns)
		}
	}
	if m, ok := container.(map[string]interface{}); ok {
		_, found := m[types.ConvertToString(needle)]
		return found
	}
	if items, ok := toSlice(container); ok {
		for _, item := range items {
			if valuesEqual(item, needle) {
				return true
			}
		}
	}
	return false
}

func getAttr(target interface{}, attr string) interface{} {
	if m, ok := target.(map[string]interface{}); ok {
		if v, ok := m[attr]; ok {
			return v
		}
		return undefinedValue{name: attr}
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() == reflect.Struct {
		f := rv.FieldByName(attr)
		if f.IsValid() {
			return f.Interface()
		}
	}
	return undefinedValue{name: attr}
}

func getIndex(target, idx interface{}) interface{} {
	if m, ok := target.(map[string]interface{}); ok {
		key := types.ConvertToString(idx)
		if v, ok := m[key]; ok {
			return v
		}
		return undefinedValue{name: key}
	}
	if items, ok := toSlice(target); ok {
		i, err := toFloat(idx)
		if err != nil {
			return undefinedValue{name: fmt.Sprintf("%v", idx)}
		}
		n := int(i)
		if n < 0 {
			n += len(items)
		}
		if n < 0 || n >= len(items) {
			return undefinedValue{name: fmt.Sprintf("[%d]", n)}
		}
		return items[n]
	}
	if s, ok := target.(string); ok {
		runes := []rune(s)
		i, err := toFloat(idx)
		if err == nil {
			n := int(i)
			if n < 0 {
				n += len(runes)
			}
			if n >= 0 && n < len(runes) {
				return string(runes[n])
			}
		}
	}
	return undefinedValue{name: fmt.Sprintf("%v", idx)}
}
