package vehicle

import (
	"context"
	"sync"

	"github.com/evchargectl/evchargectl/pkg/types"
)

// Mock is an in-memory Client for tests. Each field is a
// canned response/error returned from the matching method; call counts are
// tracked for assertions.
type Mock struct {
	mu sync.Mutex

	WakeErr error
	WakeCalls int

	State     types.ChargeState
	StateErr  error
	StateCalls int

	StartResult types.CommandResult
	StartErr    error
	StartCalls  int

	StopResult types.CommandResult
	StopErr    error
	StopCalls  int
}

var _ Client = (*Mock)(nil)

func (m *Mock) Wake(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WakeCalls++
	return m.WakeErr
}

func (m *Mock) ChargeState(ctx context.Context) (types.ChargeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StateCalls++
	return m.State, m.StateErr
}

func (m *Mock) ChargeStart(ctx context.Context) (types.CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls++
	if m.StartErr != nil {
		return types.CommandResult{}, m.StartErr
	}
	return m.StartResult, nil
}

func (m *Mock) ChargeStop(ctx context.Context) (types.CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls++
	if m.StopErr != nil {
		return types.CommandResult{}, m.StopErr
	}
	return m.StopResult, nil
}
