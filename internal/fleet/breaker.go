package fleet

import (
	"context"
	"fmt"

	"exboard/pkg/circuitbreaker"
)

// BreakerAPI guards an API with a circuit breaker. Only transient failures
// count against it; API-level errors such as a bad search do not.
type BreakerAPI struct {
	api API
	cb  *circuitbreaker.Wrapper
}

func NewBreakerAPI(api API, cfg circuitbreaker.Config) *BreakerAPI {
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool { return !IsTransient(err) }
	}
	return &BreakerAPI{
		api: api,
		cb:  circuitbreaker.NewWrapper(cfg),
	}
}

func (b *BreakerAPI) GetRules(ctx context.Context) ([]Rule, error) {
	return execute(ctx, b, func() ([]Rule, error) { return b.api.GetRules(ctx) })
}

func (b *BreakerAPI) GetDevices(ctx context.Context) ([]Device, error) {
	return execute(ctx, b, func() ([]Device, error) { return b.api.GetDevices(ctx) })
}

func (b *BreakerAPI) GetExceptionEvents(ctx context.Context, search ExceptionEventSearch) ([]ExceptionEvent, error) {
	return execute(ctx, b, func() ([]ExceptionEvent, error) { return b.api.GetExceptionEvents(ctx, search) })
}

// Check fails while the breaker is open; used as a health probe.
func (b *BreakerAPI) Check(ctx context.Context) error {
	if b.cb.IsOpen() {
		return fmt.Errorf("circuit breaker %s is open", b.cb.Name())
	}
	return nil
}

func (b *BreakerAPI) State() string {
	return b.cb.State().String()
}

func execute[T any](ctx context.Context, b *BreakerAPI, fn func() ([]T, error)) ([]T, error) {
	result, err := b.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		items, err := fn()
		return items, err
	})
	if err != nil {
		if b.cb.IsOpen() {
			return nil, fmt.Errorf("circuit breaker is open for %s: %w", b.cb.Name(), err)
		}
		return nil, err
	}

	items, ok := result.([]T)
	if !ok && result != nil {
		return nil, fmt.Errorf("fleet api returned invalid result type %T", result)
	}
	return items, nil
}
