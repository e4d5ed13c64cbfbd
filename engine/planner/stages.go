package planner

import (
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/search"
)

func encodeJourney(j search.Journey) (Journey, error) {
	stages, err := stagesOf(j.Path)
	if err != nil {
		return Journey{}, err
	}
	return Journey{
		Depart:          FormatClock(j.Departure),
		Arrive:          FormatClock(j.Arrival),
		DurationSeconds: int64((j.Arrival - j.Departure) / time.Second),
		Changes:         j.Changes,
		Stages:          stages,
		Diversions:      len(j.Diversions),
	}, nil
}

// stagesOf folds a path into stages. Consecutive service relationships of
// one service form a single ride; boarding, alighting and platform
// relationships only connect stages.
func stagesOf(p *graph.Path) ([]Stage, error) {
	nodes := p.Nodes()
	rels := p.Relationships()
	var out []Stage
	for i, rel := range rels {
		kind, ok := stageKind(rel.Type())
		if !ok {
			continue
		}
		cost, err := rel.Cost()
		if err != nil {
			return nil, err
		}
		to, err := place(nodes[i+1])
		if err != nil {
			return nil, err
		}

		if kind == KindRide {
			svc, err := rel.ServiceID()
			if err != nil {
				return nil, err
			}
			if n := len(out); n > 0 && out[n-1].Kind == KindRide && out[n-1].Service == svc && i > 0 && rels[i-1].Type() == graph.ToService {
				out[n-1].To = to
				out[n-1].DurationSeconds += int64(cost / time.Second)
				continue
			}
			mode, err := rel.TransportMode()
			if err != nil {
				return nil, err
			}
			dep, err := rel.Departure()
			if err != nil {
				return nil, err
			}
			from, err := place(nodes[i])
			if err != nil {
				return nil, err
			}
			out = append(out, Stage{
				Kind:            kind,
				Mode:            string(mode),
				Service:         svc,
				From:            from,
				To:              to,
				Depart:          dep.String(),
				DurationSeconds: int64(cost / time.Second),
			})
			continue
		}

		from, err := place(nodes[i])
		if err != nil {
			return nil, err
		}
		out = append(out, Stage{Kind: kind, From: from, To: to, DurationSeconds: int64(cost / time.Second)})
	}
	return out, nil
}

func stageKind(t graph.RelType) (string, bool) {
	switch t {
	case graph.ToService:
		return KindRide, true
	case graph.Walk:
		return KindWalk, true
	case graph.Linked:
		return KindLink, true
	case graph.Diversion:
		return KindDiversion, true
	}
	return "", false
}

func place(n graph.Node) (string, error) {
	if n.HasLabel(graph.LabelStation) || n.HasLabel(graph.LabelPlatform) || n.HasLabel(graph.LabelRouteStation) {
		return n.StationID()
	}
	return string(n.ID()), nil
}
