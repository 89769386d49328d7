package expr

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2"

	"github.com/shaiso/Conduit/internal/domain"
)

// Formula — скомпилированный маппинг одного поля.
//
// Формула чистая: результат зависит только от элемента, к которому
// она применяется. Безопасна для конкурентного использования.
type Formula struct {
	// ID — уникальный в процессе идентификатор (formula_<uuid>).
	ID string

	// Target — путь поля в результате.
	Target string

	// Sources — пути входных значений (input1..inputN).
	Sources []string

	src  string
	expr hcl.Expression // nil — тождественная формула
}

// CompileMapping компилирует маппинг в Formula.
//
// Пустая формула — тождественная: возвращает значение первого источника.
func CompileMapping(m domain.Mapping) (*Formula, error) {
	f := &Formula{
		ID:      "formula_" + domain.CamelCase(uuid.NewString()),
		Target:  m.Target,
		Sources: m.Sources,
		src:     m.Formula,
	}

	if m.Formula == "" {
		return f, nil
	}

	e, err := parse(f.ID, m.Formula)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", m.Target, err)
	}
	f.expr = e

	return f, nil
}

// Identity возвращает true для формулы без выражения.
func (f *Formula) Identity() bool {
	return f.expr == nil
}

// Source возвращает исходный текст выражения.
func (f *Formula) Source() string {
	return f.src
}

// Apply вычисляет значение поля для элемента data.
//
// Каждый источник извлекается по пути из data; отсутствующий путь даёт null.
func (f *Formula) Apply(data any) (any, error) {
	inputs := make([]any, len(f.Sources))
	for i, path := range f.Sources {
		inputs[i], _ = domain.GetPath(data, path)
	}

	if f.expr == nil {
		if len(inputs) == 0 {
			return nil, nil
		}
		return domain.CloneValue(inputs[0]), nil
	}

	vars := make(map[string]any, len(inputs)+1)
	vars["data"] = data
	for i, in := range inputs {
		vars["input"+strconv.Itoa(i+1)] = in
	}

	val, err := evaluate(f.expr, vars)
	if err != nil {
		return nil, fmt.Errorf("%s (%s): %w", f.ID, f.Target, err)
	}

	return FromCty(val)
}
