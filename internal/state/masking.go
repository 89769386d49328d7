package state

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shaiso/Conduit/internal/domain"
)

// MaskedValue — значение, которым заменяются маскируемые поля.
const MaskedValue = "****"

// ErrMissingMasker — формат используется стадией, но маскирование для него не зарегистрировано.
var ErrMissingMasker = errors.New("masking function not registered")

// MaskFunc маскирует объект на месте.
type MaskFunc func(obj any)

// Maskers — реестр функций маскирования по идентификатору формата.
// Потокобезопасен.
type Maskers struct {
	mu  sync.RWMutex
	fns map[string]MaskFunc
}

// NewMaskers создаёт пустой реестр.
func NewMaskers() *Maskers {
	return &Maskers{fns: make(map[string]MaskFunc)}
}

// MaskersFromDefinition регистрирует MaskFields для каждого формата описания.
func MaskersFromDefinition(def *domain.Definition) *Maskers {
	m := NewMaskers()
	for id, f := range def.Formats {
		m.Register(id, MaskFields(f.MaskedFields...))
	}
	return m
}

// Register регистрирует функцию для формата. Повторная регистрация заменяет функцию.
func (m *Maskers) Register(formatID string, fn MaskFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns[formatID] = fn
}

// Lookup возвращает функцию формата.
func (m *Maskers) Lookup(formatID string) (MaskFunc, bool) {
	if m == nil || formatID == "" {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.fns[formatID]
	return fn, ok
}

// Apply маскирует body функцией формата: массив поэлементно, иначе целиком.
// Возвращает false, если функции нет или тело пустое.
func (m *Maskers) Apply(formatID string, body any) bool {
	if body == nil {
		return false
	}
	fn, ok := m.Lookup(formatID)
	if !ok {
		return false
	}

	if items, isArray := body.([]any); isArray {
		for _, item := range items {
			fn(item)
		}
		return true
	}
	fn(body)
	return true
}

// Missing возвращает отсортированные форматы стадий графов без зарегистрированной функции.
func (m *Maskers) Missing(graphs ...*domain.FlowGraph) []string {
	seen := make(map[string]bool)
	var missing []string

	var walk func(g *domain.FlowGraph)
	walk = func(g *domain.FlowGraph) {
		for _, id := range g.Order {
			st := g.Stages[id]
			for _, f := range []string{st.InputFormat, st.OutputFormat} {
				if f == "" || seen[f] {
					continue
				}
				seen[f] = true
				if _, ok := m.Lookup(f); !ok {
					missing = append(missing, f)
				}
			}
			if it, ok := st.Spec.(*domain.Iteration); ok && it.Graph != nil {
				walk(it.Graph)
			}
		}
	}
	for _, g := range graphs {
		walk(g)
	}

	sort.Strings(missing)
	return missing
}

// Check возвращает ErrMissingMasker, если у форматов графов нет функций.
func (m *Maskers) Check(graphs ...*domain.FlowGraph) error {
	if missing := m.Missing(graphs...); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingMasker, strings.Join(missing, ", "))
	}
	return nil
}

// MaskFields возвращает MaskFunc, заменяющую значения по путям на MaskedValue.
//
// Путь через точку; сегмент, встретивший массив, применяется к каждому
// элементу ("cards.number"), числовой сегмент выбирает элемент ("cards.0.number").
// Отсутствующие поля пропускаются.
func MaskFields(paths ...string) MaskFunc {
	split := make([][]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			split = append(split, strings.Split(p, "."))
		}
	}

	return func(obj any) {
		for _, segs := range split {
			maskPath(obj, segs)
		}
	}
}

func maskPath(v any, segs []string) {
	switch node := v.(type) {
	case map[string]any:
		cur, ok := node[segs[0]]
		if !ok {
			return
		}
		if len(segs) == 1 {
			if cur != nil {
				node[segs[0]] = MaskedValue
			}
			return
		}
		maskPath(cur, segs[1:])

	case []any:
		if idx, err := strconv.Atoi(segs[0]); err == nil {
			if idx < 0 || idx >= len(node) {
				return
			}
			if len(segs) == 1 {
				node[idx] = MaskedValue
				return
			}
			maskPath(node[idx], segs[1:])
			return
		}
		for _, item := range node {
			maskPath(item, segs)
		}
	}
}
