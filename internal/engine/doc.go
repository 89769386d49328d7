// Package engine компилирует и выполняет графы стадий.
//
// Включает:
//   - parser.go   — построение domain.FlowGraph из описания flows
//   - compile.go  — компиляция графа в Pipeline (обход в глубину, условия, рёбра ошибки)
//   - pipeline.go — выполнение Pipeline для запроса и его текстовое описание
//   - engine.go   — набор pipelines процесса, выполнение дочерних flows
//
// Состояние обхода (посещённые и выполненные стадии) локально для одного
// вызова Compile или Execute и никогда не разделяется между flows
// и запросами.
package engine
