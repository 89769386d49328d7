package api

import (
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/engine"
)

// Flow DTOs

// FlowResponse — ответ с описанием flow.
type FlowResponse struct {
	ID     string          `json:"id"`
	Name   string          `json:"name,omitempty"`
	App    string          `json:"app,omitempty"`
	Path   string          `json:"path,omitempty"`
	Stages []StageResponse `json:"stages"`

	// Plan — скомпилированный порядок обхода (только в GetFlow).
	Plan string `json:"plan,omitempty"`
}

// StageResponse — стадия flow.
type StageResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type"`
	Handler string `json:"handler"`
}

// FlowFromPipeline конвертирует engine.Pipeline в FlowResponse.
//
// Стадии перечисляются в порядке обхода; недостижимые стадии не входят.
func FlowFromPipeline(p *engine.Pipeline) FlowResponse {
	g := p.Graph()

	ids := p.Stages()
	stages := make([]StageResponse, len(ids))
	for i, id := range ids {
		s := g.Stage(id)
		stages[i] = StageResponse{
			ID:      s.ID,
			Name:    s.Name,
			Type:    s.Label(),
			Handler: domain.CamelCase(s.ID),
		}
	}

	return FlowResponse{
		ID:     g.ID,
		Name:   g.Name,
		App:    g.App,
		Path:   g.Path,
		Stages: stages,
	}
}
