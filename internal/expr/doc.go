// Package expr компилирует выражения описания flow.
//
// Выражения записываются в синтаксисе HCL и вычисляются над значениями cty:
//   - формулы маппинга (formula.go) — чистые функции над input1..inputN
//     и data (весь элемент тела);
//   - условия рёбер (guard.go) — булевы выражения над body, headers,
//     statusCode, query, params.
//
// Доступные функции: upper, lower, strlen, substr, join, split, trimspace,
// replace, concat, length, coalesce, format, abs, min, max, floor, ceil,
// jsonencode, jsondecode, merge, keys, values, lookup, contains.
//
// Значения Go (map[string]any, []any, скаляры) переводятся в cty и обратно
// в value.go. Целые числа возвращаются как int64, дробные как float64.
package expr
