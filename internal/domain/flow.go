package domain

// Definition — содержимое файла описания flows.
//
// Файл может быть в YAML или JSON (JSON — подмножество YAML).
type Definition struct {
	// Flows — все flows, доступные процессу. Первый считается основным,
	// остальные могут вызываться через стадии FLOW.
	Flows []FlowDef `json:"flows" yaml:"flows" validate:"required,min=1,dive"`

	// Formats — форматы данных с полями для маскирования.
	// Ключ — идентификатор формата (inputFormat / outputFormat стадии).
	Formats map[string]FormatDef `json:"formats,omitempty" yaml:"formats,omitempty" validate:"dive"`

	// DataServices — зарегистрированные data services (id → дескриптор).
	DataServices map[string]DescriptorDef `json:"dataServices,omitempty" yaml:"dataServices,omitempty" validate:"dive"`

	// FaaS — зарегистрированные функции (id → дескриптор).
	FaaS map[string]DescriptorDef `json:"faas,omitempty" yaml:"faas,omitempty" validate:"dive"`
}

// FlowDef — описание одного flow.
type FlowDef struct {
	// ID — уникальный идентификатор flow.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Name — человекочитаемое имя.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// App — приложение, которому принадлежит flow.
	// Используется в адресе трекера взаимодействий.
	App string `json:"app,omitempty" yaml:"app,omitempty"`

	// InputStage — входная точка: HTTP путь и первые рёбра.
	InputStage InputStageDef `json:"inputStage" yaml:"inputStage"`

	// Stages — стадии flow.
	Stages []StageDef `json:"stages" yaml:"stages" validate:"dive"`
}

// InputStageDef — входная стадия flow.
//
// Сама не исполняется: задаёт маршрут и рёбра к первым стадиям.
type InputStageDef struct {
	ID        string      `json:"id,omitempty" yaml:"id,omitempty"`
	Incoming  IncomingDef `json:"incoming" yaml:"incoming"`
	OnSuccess []EdgeDef   `json:"onSuccess" yaml:"onSuccess" validate:"dive"`
}

// IncomingDef — входящий HTTP маршрут.
type IncomingDef struct {
	// Path — путь обработчика, например "/orders".
	Path string `json:"path" yaml:"path" validate:"omitempty,startswith=/"`
}

// StageDef — описание стадии в формате файла.
//
// Type определяет, какие поля используются:
//   - API: Outgoing
//   - DATASERVICE: DataService
//   - FAAS: FaaS
//   - TRANSFORM: Mapping
//   - FLOW: Parallel или Sequence
//   - FOREACH, REDUCE: Entry + Stages (вложенный flow), Initial для REDUCE
type StageDef struct {
	ID   string `json:"id" yaml:"id" validate:"required"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Type string `json:"type" yaml:"type" validate:"required,oneof=API DATASERVICE FAAS TRANSFORM FLOW FOREACH REDUCE"`

	Outgoing    *OutgoingDef      `json:"outgoing,omitempty" yaml:"outgoing,omitempty"`
	DataService *DescriptorRefDef `json:"dataServiceOptions,omitempty" yaml:"dataServiceOptions,omitempty"`
	FaaS        *DescriptorRefDef `json:"faasOptions,omitempty" yaml:"faasOptions,omitempty"`

	Mapping []MappingDef `json:"mapping,omitempty" yaml:"mapping,omitempty" validate:"dive"`

	Parallel []FlowRefDef `json:"parallel,omitempty" yaml:"parallel,omitempty" validate:"dive"`
	Sequence []FlowRefDef `json:"sequence,omitempty" yaml:"sequence,omitempty" validate:"dive"`

	Entry   []EdgeDef  `json:"entry,omitempty" yaml:"entry,omitempty" validate:"dive"`
	Stages  []StageDef `json:"stages,omitempty" yaml:"stages,omitempty" validate:"dive"`
	Initial any        `json:"initial,omitempty" yaml:"initial,omitempty"`

	OnSuccess []EdgeDef `json:"onSuccess,omitempty" yaml:"onSuccess,omitempty" validate:"dive"`
	OnError   *EdgeDef  `json:"onError,omitempty" yaml:"onError,omitempty"`

	// InputFormat, OutputFormat — форматы тела запроса и ответа (для маскирования).
	InputFormat  string `json:"inputFormat,omitempty" yaml:"inputFormat,omitempty"`
	OutputFormat string `json:"outputFormat,omitempty" yaml:"outputFormat,omitempty"`

	// ContentType — тип содержимого для сохраняемых данных.
	ContentType string `json:"contentType,omitempty" yaml:"contentType,omitempty"`
}

// EdgeDef — ребро к следующей стадии.
type EdgeDef struct {
	ID string `json:"id" yaml:"id" validate:"required"`

	// Condition — HCL выражение; стадия выполняется, если оно истинно.
	// Например: statusCode == 200 && body.kind == "order"
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// OutgoingDef — статический удалённый вызов.
type OutgoingDef struct {
	URL     string            `json:"url" yaml:"url" validate:"required"`
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// DescriptorRefDef — ссылка на зарегистрированный data service или функцию.
type DescriptorRefDef struct {
	ID     string `json:"id" yaml:"id" validate:"required"`
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
}

// MappingDef — маппинг одного поля результата.
type MappingDef struct {
	Target  PathDef   `json:"target" yaml:"target"`
	Source  []PathDef `json:"source" yaml:"source" validate:"dive"`
	Formula string    `json:"formula,omitempty" yaml:"formula,omitempty"`
}

// PathDef — путь к полю через точку ("customer.address.city").
type PathDef struct {
	DataPath string `json:"dataPath" yaml:"dataPath" validate:"required"`
}

// FlowRefDef — ссылка на дочерний flow.
type FlowRefDef struct {
	ID string `json:"id" yaml:"id" validate:"required"`
}

// FormatDef — формат данных.
type FormatDef struct {
	// MaskedFields — пути полей, значения которых заменяются при сохранении.
	MaskedFields []string `json:"maskedFields,omitempty" yaml:"maskedFields,omitempty"`
}

// DescriptorDef — дескриптор data service или функции.
type DescriptorDef struct {
	App string `json:"app" yaml:"app" validate:"required"`
	API string `json:"api" yaml:"api" validate:"required,startswith=/"`
}
