package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
)

type traceRepository struct {
	mu     sync.RWMutex
	traces map[types.TraceID]*model.ExecutionTrace
}

func newTraceRepository() *traceRepository {
	return &traceRepository{
		traces: make(map[types.TraceID]*model.ExecutionTrace),
	}
}

func copyTrace(t *model.ExecutionTrace) *model.ExecutionTrace {
	copied := *t
	copied.Request = copyAnyMap(t.Request)
	copied.Response = copyAnyMap(t.Response)
	return &copied
}

func (r *traceRepository) Append(ctx context.Context, trace *model.ExecutionTrace) (*model.ExecutionTrace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyTrace(trace)
	if created.ID == "" {
		created.ID = types.NewTraceID()
	}
	created.CreatedAt = time.Now().UTC()

	r.traces[created.ID] = created
	return copyTrace(created), nil
}

func (r *traceRepository) ListByProposal(ctx context.Context, proposalID types.ProposalID) ([]*model.ExecutionTrace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	traces := make([]*model.ExecutionTrace, 0)
	for _, trace := range r.traces {
		if trace.ProposalID == proposalID {
			traces = append(traces, copyTrace(trace))
		}
	}

	sort.Slice(traces, func(i, j int) bool {
		return traces[i].CreatedAt.Before(traces[j].CreatedAt)
	})

	return traces, nil
}
