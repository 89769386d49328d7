package domain

// FlowGraph — скомпилированное в память описание flow.
//
// Инвариант: каждое ребро ссылается на стадию из Stages
// (проверяется engine.Parse).
type FlowGraph struct {
	ID   string
	Name string
	App  string

	// Path — HTTP путь входной стадии.
	Path string

	// EntryID — идентификатор входной стадии.
	EntryID string

	// Entry — рёбра входной стадии к первым исполняемым стадиям.
	Entry []Edge

	// Stages — стадии по ID.
	Stages map[string]*Stage

	// Order — ID стадий в порядке объявления.
	Order []string
}

// Stage возвращает стадию по ID или nil.
func (g *FlowGraph) Stage(id string) *Stage {
	return g.Stages[id]
}

// Stage — узел графа.
type Stage struct {
	ID   string
	Name string

	// Spec — параметры, зависящие от вида стадии.
	Spec StageSpec

	// OnSuccess — рёбра, по которым идёт выполнение после успеха,
	// в порядке объявления.
	OnSuccess []Edge

	// OnError — ребро, в которое передаётся управление при статусе ≥400.
	OnError *Edge

	InputFormat  string
	OutputFormat string
	ContentType  string
}

// Kind возвращает вид стадии.
func (s *Stage) Kind() StageKind {
	return s.Spec.Kind()
}

// Label возвращает тип стадии в формате описания (API, TRANSFORM, FLOW...).
func (s *Stage) Label() string {
	return s.Spec.Label()
}

// Edge — ребро графа.
type Edge struct {
	Target    string
	Condition string
}

// StageSpec — закрытый набор вариантов стадии.
//
// Реализации: *RemoteCall, *Transform, *Subflow, *Iteration.
// Новые варианты добавляются только в этом пакете.
type StageSpec interface {
	Kind() StageKind
	Label() string
	stageSpec()
}

// RemoteCall — вызов удалённого сервиса.
type RemoteCall struct {
	Target RemoteTarget

	// URL, Method, Headers — для TargetAPI.
	URL     string
	Method  string
	Headers map[string]string

	// DescriptorID — для TargetDataService и TargetFaaS.
	DescriptorID string
}

func (*RemoteCall) Kind() StageKind  { return KindRemoteCall }
func (r *RemoteCall) Label() string { return string(r.Target) }
func (*RemoteCall) stageSpec()       {}

// Transform — преобразование тела по маппингам.
type Transform struct {
	Mappings []Mapping
}

func (*Transform) Kind() StageKind { return KindTransform }
func (*Transform) Label() string   { return StageTypeTransform }
func (*Transform) stageSpec()      {}

// Mapping — правило получения одного поля результата.
type Mapping struct {
	// Target — путь поля в результате.
	Target string

	// Sources — пути входных значений; доступны в формуле как input1..inputN.
	Sources []string

	// Formula — HCL выражение. Пустая формула возвращает input1.
	Formula string
}

// Subflow — композиция дочерних flows.
type Subflow struct {
	Mode  SubflowMode
	Flows []string
}

func (*Subflow) Kind() StageKind { return KindSubflow }
func (*Subflow) Label() string   { return StageTypeFlow }
func (*Subflow) stageSpec()      {}

// Iteration — выполнение вложенного flow по элементам тела.
type Iteration struct {
	Mode IterationMode

	// Graph — вложенный набор стадий, компилируется отдельно.
	Graph *FlowGraph

	// Initial — начальное значение аккумулятора для reduce.
	Initial any
}

func (*Iteration) Kind() StageKind { return KindIteration }

func (i *Iteration) Label() string {
	if i.Mode == IterationReduce {
		return StageTypeReduce
	}
	return StageTypeForEach
}

func (*Iteration) stageSpec() {}
