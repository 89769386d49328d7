package expr

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Scope — значения, доступные условию ребра.
type Scope struct {
	Body       any
	Headers    map[string]string
	StatusCode int
	Query      map[string]string
	Params     map[string]string
}

func (s Scope) vars() map[string]any {
	return map[string]any{
		"body":       s.Body,
		"headers":    s.Headers,
		"statusCode": s.StatusCode,
		"query":      s.Query,
		"params":     s.Params,
	}
}

// Guard — скомпилированное условие ребра.
//
// nil Guard всегда истинен.
type Guard struct {
	src  string
	expr hcl.Expression
}

// CompileGuard компилирует условие. Пустая строка даёт nil Guard.
func CompileGuard(src string) (*Guard, error) {
	if src == "" {
		return nil, nil
	}

	e, err := parse("condition", src)
	if err != nil {
		return nil, err
	}

	return &Guard{src: src, expr: e}, nil
}

// String возвращает исходный текст условия.
func (g *Guard) String() string {
	if g == nil {
		return ""
	}
	return g.src
}

// Eval вычисляет условие в scope.
//
// Ошибка вычисления или небулево значение возвращаются вместе с false:
// вызывающий код логирует их и не выполняет поддерево.
func (g *Guard) Eval(scope Scope) (bool, error) {
	if g == nil {
		return true, nil
	}

	val, err := evaluate(g.expr, scope.vars())
	if err != nil {
		return false, err
	}

	if val.IsNull() || !val.IsKnown() || val.Type() != cty.Bool {
		return false, fmt.Errorf("%w: %q returned %s", ErrNotBool, g.src, val.Type().FriendlyName())
	}

	return val.True(), nil
}
