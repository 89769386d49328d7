package expr

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// functions — функции, доступные в выражениях.
var functions = map[string]function.Function{
	"upper":      stdlib.UpperFunc,
	"lower":      stdlib.LowerFunc,
	"strlen":     stdlib.StrlenFunc,
	"substr":     stdlib.SubstrFunc,
	"join":       stdlib.JoinFunc,
	"split":      stdlib.SplitFunc,
	"trimspace":  stdlib.TrimSpaceFunc,
	"replace":    stdlib.ReplaceFunc,
	"concat":     stdlib.ConcatFunc,
	"length":     stdlib.LengthFunc,
	"coalesce":   stdlib.CoalesceFunc,
	"format":     stdlib.FormatFunc,
	"abs":        stdlib.AbsoluteFunc,
	"min":        stdlib.MinFunc,
	"max":        stdlib.MaxFunc,
	"floor":      stdlib.FloorFunc,
	"ceil":       stdlib.CeilFunc,
	"jsonencode": stdlib.JSONEncodeFunc,
	"jsondecode": stdlib.JSONDecodeFunc,
	"merge":      stdlib.MergeFunc,
	"keys":       stdlib.KeysFunc,
	"values":     stdlib.ValuesFunc,
	"lookup":     stdlib.LookupFunc,
	"contains":   stdlib.ContainsFunc,
}

// parse разбирает HCL выражение. name используется в диагностике.
func parse(name, src string) (hcl.Expression, error) {
	e, diags := hclsyntax.ParseExpression([]byte(src), name, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s: %s", ErrParse, name, diagText(diags))
	}
	return e, nil
}

// evaluate вычисляет выражение над переменными vars.
func evaluate(e hcl.Expression, vars map[string]any) (cty.Value, error) {
	variables, err := objectOf(vars)
	if err != nil {
		return cty.NilVal, fmt.Errorf("%w: %v", ErrEval, err)
	}

	ctx := &hcl.EvalContext{
		Variables: variables,
		Functions: functions,
	}

	val, diags := e.Value(ctx)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("%w: %s", ErrEval, diagText(diags))
	}
	return val, nil
}

// diagText склеивает ошибки диагностики в одну строку.
func diagText(diags hcl.Diagnostics) string {
	msgs := make([]string, 0, len(diags))
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		msg := d.Summary
		if d.Detail != "" {
			msg += ": " + d.Detail
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}
