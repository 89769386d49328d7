package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/Conduit/internal/domain"
)

// DefaultEntryID — ID входной стадии, если он не задан.
const DefaultEntryID = "start"

// Допустимые типы стадий.
var validStageTypes = map[string]bool{
	domain.StageTypeAPI:         true,
	domain.StageTypeDataService: true,
	domain.StageTypeFaaS:        true,
	domain.StageTypeTransform:   true,
	domain.StageTypeFlow:        true,
	domain.StageTypeForEach:     true,
	domain.StageTypeReduce:      true,
}

// Parse строит графы flows из описания.
//
// Проверяет:
// - Наличие flows и уникальность их ID и путей
// - Уникальность ID стадий внутри flow
// - Корректность типов и параметров стадий
// - Что каждое ребро ссылается на существующую стадию
// - Что стадии FLOW ссылаются на существующие flows
//
// Графы возвращаются в порядке объявления.
func Parse(def *domain.Definition) ([]*domain.FlowGraph, error) {
	if def == nil || len(def.Flows) == 0 {
		return nil, ErrEmptyFlows
	}

	flowIDs := make(map[string]bool, len(def.Flows))
	paths := make(map[string]string)
	for _, f := range def.Flows {
		if f.ID == "" {
			return nil, NewValidationError("", "", "id", "flow has empty ID", ErrEmptyFlowID)
		}
		if flowIDs[f.ID] {
			return nil, NewValidationError(f.ID, "", "id",
				fmt.Sprintf("duplicate flow ID: %s", f.ID), ErrDuplicateFlowID)
		}
		flowIDs[f.ID] = true

		if p := f.InputStage.Incoming.Path; p != "" {
			if other, ok := paths[p]; ok {
				return nil, NewValidationError(f.ID, "", "inputStage.incoming.path",
					fmt.Sprintf("path %s already used by flow %s", p, other), ErrDuplicatePath)
			}
			paths[p] = f.ID
		}
	}

	graphs := make([]*domain.FlowGraph, 0, len(def.Flows))
	for _, f := range def.Flows {
		entryID := f.InputStage.ID
		if entryID == "" {
			entryID = DefaultEntryID
		}

		p := &parser{flowID: f.ID, app: f.App, flows: flowIDs}
		g, err := p.graph(f.ID, entryID, f.InputStage.OnSuccess, f.Stages)
		if err != nil {
			return nil, err
		}
		g.Name = f.Name
		g.Path = f.InputStage.Incoming.Path

		graphs = append(graphs, g)
	}

	return graphs, nil
}

// parser разбирает стадии одного flow, включая вложенные графы.
type parser struct {
	flowID string
	flows  map[string]bool
	app    string
}

// graph строит граф из входных рёбер и стадий.
func (p *parser) graph(id, entryID string, entry []domain.EdgeDef, defs []domain.StageDef) (*domain.FlowGraph, error) {
	if len(defs) == 0 {
		return nil, NewValidationError(p.flowID, "", "stages", "no stages", ErrEmptyStages)
	}

	g := &domain.FlowGraph{
		ID:      id,
		App:     p.app,
		EntryID: entryID,
		Stages:  make(map[string]*domain.Stage, len(defs)),
		Order:   make([]string, 0, len(defs)),
	}

	for i := range defs {
		def := &defs[i]

		stage, err := p.stage(g, def)
		if err != nil {
			return nil, err
		}
		if _, exists := g.Stages[stage.ID]; exists || stage.ID == entryID {
			return nil, NewValidationError(p.flowID, stage.ID, "id",
				fmt.Sprintf("duplicate stage ID: %s", stage.ID), ErrDuplicateStageID)
		}
		g.Stages[stage.ID] = stage
		g.Order = append(g.Order, stage.ID)
	}

	g.Entry = edges(entry)
	if err := p.validateEdges(g, entryID, g.Entry); err != nil {
		return nil, err
	}
	for _, id := range g.Order {
		stage := g.Stages[id]
		if err := p.validateEdges(g, id, stage.OnSuccess); err != nil {
			return nil, err
		}
		if stage.OnError != nil {
			if err := p.validateEdges(g, id, []domain.Edge{*stage.OnError}); err != nil {
				return nil, err
			}
		}
	}

	return g, nil
}

// stage строит стадию из описания.
func (p *parser) stage(g *domain.FlowGraph, def *domain.StageDef) (*domain.Stage, error) {
	if def.ID == "" {
		return nil, NewValidationError(p.flowID, "", "id", "stage has empty ID", ErrEmptyStageID)
	}
	if !validStageTypes[def.Type] {
		return nil, NewValidationError(p.flowID, def.ID, "type",
			fmt.Sprintf("unknown stage type: %q", def.Type), ErrUnknownStageType)
	}

	spec, err := p.spec(g, def)
	if err != nil {
		return nil, err
	}

	stage := &domain.Stage{
		ID:           def.ID,
		Name:         def.Name,
		Spec:         spec,
		OnSuccess:    edges(def.OnSuccess),
		InputFormat:  def.InputFormat,
		OutputFormat: def.OutputFormat,
		ContentType:  def.ContentType,
	}
	if def.OnError != nil {
		stage.OnError = &domain.Edge{Target: def.OnError.ID, Condition: def.OnError.Condition}
	}

	return stage, nil
}

// spec строит параметры стадии по её типу.
func (p *parser) spec(g *domain.FlowGraph, def *domain.StageDef) (domain.StageSpec, error) {
	invalid := func(field, msg string) error {
		return NewValidationError(p.flowID, def.ID, field, msg, ErrInvalidStage)
	}

	switch def.Type {
	case domain.StageTypeAPI:
		if def.Outgoing == nil || def.Outgoing.URL == "" {
			return nil, invalid("outgoing.url", "API stage requires outgoing url")
		}
		return &domain.RemoteCall{
			Target:  domain.TargetAPI,
			URL:     def.Outgoing.URL,
			Method:  def.Outgoing.Method,
			Headers: domain.CloneStrings(def.Outgoing.Headers),
		}, nil

	case domain.StageTypeDataService:
		if def.DataService == nil || def.DataService.ID == "" {
			return nil, invalid("dataServiceOptions.id", "DATASERVICE stage requires data service id")
		}
		return &domain.RemoteCall{
			Target:       domain.TargetDataService,
			Method:       def.DataService.Method,
			DescriptorID: def.DataService.ID,
		}, nil

	case domain.StageTypeFaaS:
		if def.FaaS == nil || def.FaaS.ID == "" {
			return nil, invalid("faasOptions.id", "FAAS stage requires function id")
		}
		return &domain.RemoteCall{
			Target:       domain.TargetFaaS,
			Method:       def.FaaS.Method,
			DescriptorID: def.FaaS.ID,
		}, nil

	case domain.StageTypeTransform:
		mappings := make([]domain.Mapping, 0, len(def.Mapping))
		for _, m := range def.Mapping {
			if m.Target.DataPath == "" {
				return nil, invalid("mapping.target", "mapping has empty target")
			}
			sources := make([]string, len(m.Source))
			for i, s := range m.Source {
				sources[i] = s.DataPath
			}
			mappings = append(mappings, domain.Mapping{
				Target:  m.Target.DataPath,
				Sources: sources,
				Formula: m.Formula,
			})
		}
		return &domain.Transform{Mappings: mappings}, nil

	case domain.StageTypeFlow:
		mode, refs := domain.SubflowParallel, def.Parallel
		if len(def.Sequence) > 0 {
			if len(def.Parallel) > 0 {
				return nil, invalid("parallel", "FLOW stage must declare either parallel or sequence")
			}
			mode, refs = domain.SubflowSequential, def.Sequence
		}
		if len(refs) == 0 {
			return nil, invalid("parallel", "FLOW stage has no flows")
		}

		flows := make([]string, len(refs))
		for i, ref := range refs {
			if !p.flows[ref.ID] {
				return nil, NewValidationError(p.flowID, def.ID, string(mode),
					fmt.Sprintf("unknown flow: %s", ref.ID), ErrUnknownFlow)
			}
			flows[i] = ref.ID
		}
		return &domain.Subflow{Mode: mode, Flows: flows}, nil

	case domain.StageTypeForEach, domain.StageTypeReduce:
		mode := domain.IterationForEach
		if def.Type == domain.StageTypeReduce {
			mode = domain.IterationReduce
		}

		nested, err := p.graph(g.ID+"."+def.ID, DefaultEntryID, def.Entry, def.Stages)
		if err != nil {
			return nil, err
		}
		if len(nested.Entry) == 0 {
			return nil, invalid("entry", "iteration has no entry edges")
		}

		return &domain.Iteration{
			Mode:    mode,
			Graph:   nested,
			Initial: domain.CloneValue(def.Initial),
		}, nil
	}

	return nil, NewValidationError(p.flowID, def.ID, "type",
		fmt.Sprintf("unknown stage type: %q", def.Type), ErrUnknownStageType)
}

// validateEdges проверяет, что рёбра ссылаются на стадии графа.
func (p *parser) validateEdges(g *domain.FlowGraph, from string, es []domain.Edge) error {
	for _, e := range es {
		if _, ok := g.Stages[e.Target]; !ok {
			return NewValidationError(p.flowID, from, "onSuccess",
				fmt.Sprintf("edge targets unknown stage: %s", e.Target), ErrUnknownTarget)
		}
	}
	return nil
}

func edges(defs []domain.EdgeDef) []domain.Edge {
	if len(defs) == 0 {
		return nil
	}
	out := make([]domain.Edge, len(defs))
	for i, d := range defs {
		out[i] = domain.Edge{Target: d.ID, Condition: d.Condition}
	}
	return out
}

// IsValidStageType проверяет, является ли тип стадии допустимым.
func IsValidStageType(stageType string) bool {
	return validStageTypes[stageType]
}

// GetValidStageTypes возвращает отсортированный список допустимых типов стадий.
func GetValidStageTypes() []string {
	types := make([]string, 0, len(validStageTypes))
	for t := range validStageTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
