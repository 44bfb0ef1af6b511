package friendship

import (
	"context"
	"fmt"
	"sync"

	"github.com/mvigil90/oc-friends/internal/db"
)

// call is one statement execution seen by fakeGateway.
type call struct {
	sql  string
	args []any
	exec bool
}

// step scripts the outcome of the next statement execution.
type step struct {
	rows     []db.Row
	affected int64
	err      error
}

// fakeGateway replays scripted results in order and records every execution.
type fakeGateway struct {
	mu    sync.Mutex
	steps []step
	calls []call
}

func newFakeGateway(steps ...step) *fakeGateway {
	return &fakeGateway{steps: steps}
}

func (g *fakeGateway) Prepare(query string) db.Statement {
	return &fakeStatement{gateway: g, sql: query}
}

func (g *fakeGateway) next(c call) (step, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, c)
	if len(g.steps) == 0 {
		return step{}, fmt.Errorf("unexpected statement %q", c.sql)
	}
	s := g.steps[0]
	g.steps = g.steps[1:]
	return s, nil
}

func (g *fakeGateway) recorded() []call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]call, len(g.calls))
	copy(out, g.calls)
	return out
}

type fakeStatement struct {
	gateway *fakeGateway
	sql     string
}

func (s *fakeStatement) Query(_ context.Context, args ...any) ([]db.Row, error) {
	st, err := s.gateway.next(call{sql: s.sql, args: args})
	if err != nil {
		return nil, err
	}
	return st.rows, st.err
}

func (s *fakeStatement) Exec(_ context.Context, args ...any) (int64, error) {
	st, err := s.gateway.next(call{sql: s.sql, args: args, exec: true})
	if err != nil {
		return 0, err
	}
	return st.affected, st.err
}
