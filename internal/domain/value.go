package domain

import (
	"maps"
	"strconv"
	"strings"

	"github.com/mohae/deepcopy"
)

// CloneValue рекурсивно копирует JSON-подобное значение
// (map[string]any, []any, скаляры).
func CloneValue(v any) any {
	return deepcopy.Copy(v)
}

// CloneStrings копирует map[string]string. nil остаётся nil.
func CloneStrings(m map[string]string) map[string]string {
	return maps.Clone(m)
}

// GetPath возвращает значение по пути через точку ("a.b.0.c").
// Числовой сегмент индексирует массив. Отсутствующий путь — nil, false.
func GetPath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// SetPath записывает значение по пути через точку, создавая
// промежуточные объекты. Возвращает корень (новый, если root был nil
// или не объектом).
func SetPath(root map[string]any, path string, value any) map[string]any {
	if root == nil {
		root = make(map[string]any)
	}
	segs := strings.Split(path, ".")
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
	return root
}
