// Package steps содержит исполнение стадий flow.
//
// Dispatcher строит для каждой стадии Handler по её виду
// (domain.StageSpec):
//
//   - REMOTE_CALL (remote.go) — вызов API, data service или функции через transport.Doer
//   - TRANSFORM (transform.go) — маппинги полей через expr.Formula
//   - SUBFLOW (subflow.go) — дочерние flows параллельно или последовательно
//   - ITERATION (iteration.go) — вложенный граф по элементам тела (foreach, reduce)
//
// Обработчики регистрируются в Registry по имени стадии в lowerCamelCase.
// Build проверяет конфигурацию всех стадий до приёма запросов:
// формулы компилируются, дескрипторы и URL обязательны.
//
// Каждый Handler сохраняет snapshot через Recorder ровно один раз,
// на любом пути выхода, включая панику:
//
//	reg, err := dispatcher.Build(graph)
//	h, err := reg.Get("fetchOrders")
//	res, err := h(ctx, state.Snapshot(graph.ID, stage, in))
//
// Дочерние flows выполняет FlowRunner (реализован в engine),
// который задаётся через SetRunner после создания engine.
package steps
