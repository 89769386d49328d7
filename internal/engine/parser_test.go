package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/Conduit/internal/domain"
)

func edgeDefs(ids ...string) []domain.EdgeDef {
	out := make([]domain.EdgeDef, len(ids))
	for i, id := range ids {
		out[i] = domain.EdgeDef{ID: id}
	}
	return out
}

func apiStage(id, url string, next ...string) domain.StageDef {
	return domain.StageDef{
		ID:        id,
		Type:      domain.StageTypeAPI,
		Outgoing:  &domain.OutgoingDef{URL: url},
		OnSuccess: edgeDefs(next...),
	}
}

func flowDef(id, path string, entry []string, stages ...domain.StageDef) domain.FlowDef {
	return domain.FlowDef{
		ID:  id,
		App: "shop",
		InputStage: domain.InputStageDef{
			Incoming:  domain.IncomingDef{Path: path},
			OnSuccess: edgeDefs(entry...),
		},
		Stages: stages,
	}
}

func TestParse(t *testing.T) {
	def := &domain.Definition{Flows: []domain.FlowDef{
		flowDef("orders", "/orders", []string{"fetch"},
			apiStage("fetch", "/api/orders", "shape"),
			domain.StageDef{
				ID:   "shape",
				Type: domain.StageTypeTransform,
				Mapping: []domain.MappingDef{{
					Target:  domain.PathDef{DataPath: "total"},
					Source:  []domain.PathDef{{DataPath: "price"}, {DataPath: "qty"}},
					Formula: "input1 * input2",
				}},
				OnError: &domain.EdgeDef{ID: "fetch"},
			},
			domain.StageDef{
				ID:      "each",
				Type:    domain.StageTypeReduce,
				Entry:   edgeDefs("inner"),
				Stages:  []domain.StageDef{{ID: "inner", Type: domain.StageTypeTransform}},
				Initial: float64(0),
			},
			domain.StageDef{
				ID:       "fan",
				Type:     domain.StageTypeFlow,
				Sequence: []domain.FlowRefDef{{ID: "child"}},
			},
		),
		flowDef("child", "", []string{"call"},
			domain.StageDef{ID: "call", Type: domain.StageTypeFaaS, FaaS: &domain.DescriptorRefDef{ID: "fn"}},
		),
	}}

	graphs, err := Parse(def)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(graphs) != 2 {
		t.Fatalf("expected 2 graphs, got %d", len(graphs))
	}

	g := graphs[0]
	if g.ID != "orders" || g.Path != "/orders" || g.App != "shop" || g.EntryID != DefaultEntryID {
		t.Errorf("unexpected graph header: %+v", g)
	}
	if diff := cmp.Diff([]string{"fetch", "shape", "each", "fan"}, g.Order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	shape := g.Stage("shape").Spec.(*domain.Transform)
	wantMapping := []domain.Mapping{{Target: "total", Sources: []string{"price", "qty"}, Formula: "input1 * input2"}}
	if diff := cmp.Diff(wantMapping, shape.Mappings); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}
	if g.Stage("shape").OnError == nil || g.Stage("shape").OnError.Target != "fetch" {
		t.Error("expected error edge to fetch")
	}

	it := g.Stage("each").Spec.(*domain.Iteration)
	if it.Mode != domain.IterationReduce || it.Graph.ID != "orders.each" || it.Graph.App != "shop" {
		t.Errorf("unexpected iteration: mode=%s graph=%s app=%s", it.Mode, it.Graph.ID, it.Graph.App)
	}

	fan := g.Stage("fan").Spec.(*domain.Subflow)
	if fan.Mode != domain.SubflowSequential || fan.Flows[0] != "child" {
		t.Errorf("unexpected subflow: %+v", fan)
	}

	call := graphs[1].Stage("call").Spec.(*domain.RemoteCall)
	if call.Target != domain.TargetFaaS || call.DescriptorID != "fn" {
		t.Errorf("unexpected remote call: %+v", call)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		def     *domain.Definition
		wantErr error
	}{
		{
			name:    "nil definition",
			def:     nil,
			wantErr: ErrEmptyFlows,
		},
		{
			name: "empty flow id",
			def: &domain.Definition{Flows: []domain.FlowDef{
				flowDef("", "/a", nil, apiStage("a", "/a")),
			}},
			wantErr: ErrEmptyFlowID,
		},
		{
			name: "duplicate flow id",
			def: &domain.Definition{Flows: []domain.FlowDef{
				flowDef("f", "/a", nil, apiStage("a", "/a")),
				flowDef("f", "/b", nil, apiStage("a", "/a")),
			}},
			wantErr: ErrDuplicateFlowID,
		},
		{
			name: "duplicate path",
			def: &domain.Definition{Flows: []domain.FlowDef{
				flowDef("f1", "/a", nil, apiStage("a", "/a")),
				flowDef("f2", "/a", nil, apiStage("a", "/a")),
			}},
			wantErr: ErrDuplicatePath,
		},
		{
			name: "no stages",
			def: &domain.Definition{Flows: []domain.FlowDef{
				flowDef("f", "/a", nil),
			}},
			wantErr: ErrEmptyStages,
		},
		{
			name: "duplicate stage id",
			def: &domain.Definition{Flows: []domain.FlowDef{
				flowDef("f", "/a", []string{"a"}, apiStage("a", "/a"), apiStage("a", "/b")),
			}},
			wantErr: ErrDuplicateStageID,
		},
		{
			name: "stage id equals entry id",
			def: &domain.Definition{Flows: []domain.FlowDef{
				flowDef("f", "/a", nil, apiStage(DefaultEntryID, "/a")),
			}},
			wantErr: ErrDuplicateStageID,
		},
		{
			name: "unknown type",
			def: &domain.Definition{Flows: []domain.FlowDef{
				flowDef("f", "/a", nil, domain.StageDef{ID: "x", Type: "SOAP"}),
			}},
			wantErr: ErrUnknownStageType,
		},
		{
			name: "api without outgoing",
			def: &domain.Definition{Flows: []domain.FlowDef{
				flowDef("f", "/a", nil, domain.StageDef{ID: "x", Type: domain.StageTypeAPI}),
			}},
			wantErr: ErrInvalidStage,
		},
		{
			name: "data service without id",
			def: &domain.Definition{Flows: []domain.FlowDef{
				flowDef("f", "/a", nil, domain.StageDef{ID: "x", Type: domain.StageTypeDataService}),
			}},
			wantErr: ErrInvalidStage,
		},
		{
			name: "unknown entry target",
			def: &domain.Definition{Flows: []domain.FlowDef{
				flowDef("f", "/a", []string{"ghost"}, apiStage("a", "/a")),
			}},
			wantErr: ErrUnknownTarget,
		},
		{
			name: "unknown success target",
			def: &domain.Definition{Flows: []domain.FlowDef{
				flowDef("f", "/a", []string{"a"}, apiStage("a", "/a", "ghost")),
			}},
			wantErr: ErrUnknownTarget,
		},
		{
			name: "unknown subflow",
			def: &domain.Definition{Flows: []domain.FlowDef{
				flowDef("f", "/a", nil, domain.StageDef{
					ID: "x", Type: domain.StageTypeFlow, Parallel: []domain.FlowRefDef{{ID: "ghost"}},
				}),
			}},
			wantErr: ErrUnknownFlow,
		},
		{
			name: "both parallel and sequence",
			def: &domain.Definition{Flows: []domain.FlowDef{
				flowDef("f", "/a", nil, domain.StageDef{
					ID:       "x",
					Type:     domain.StageTypeFlow,
					Parallel: []domain.FlowRefDef{{ID: "f"}},
					Sequence: []domain.FlowRefDef{{ID: "f"}},
				}),
			}},
			wantErr: ErrInvalidStage,
		},
		{
			name: "iteration without entry",
			def: &domain.Definition{Flows: []domain.FlowDef{
				flowDef("f", "/a", nil, domain.StageDef{
					ID:     "x",
					Type:   domain.StageTypeForEach,
					Stages: []domain.StageDef{apiStage("inner", "/i")},
				}),
			}},
			wantErr: ErrInvalidStage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.def)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.def != nil {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Errorf("expected ValidationError, got %T", err)
				}
			}
		})
	}
}

func TestIsValidStageType(t *testing.T) {
	for _, typ := range GetValidStageTypes() {
		if !IsValidStageType(typ) {
			t.Errorf("%s should be valid", typ)
		}
	}
	if IsValidStageType("http") {
		t.Error("http should not be valid")
	}
	if len(GetValidStageTypes()) != 7 {
		t.Errorf("expected 7 stage types, got %d", len(GetValidStageTypes()))
	}
}
