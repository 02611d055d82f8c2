package invoke

import (
	"context"
	"time"
)

// Policy retries transient failures a bounded number of times with a
// linearly increasing delay: Delay, 2*Delay, ...
type Policy struct {
	MaxRetries int
	Delay      time.Duration
	// Timeout bounds each attempt; zero leaves ctx as is
	Timeout time.Duration
	// Sleep waits between attempts; defaults to a context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// Attempt records one try.
type Attempt struct {
	Number int
	Kind   Kind
	Err    error
}

// Do calls inv until it succeeds, fails with a non-transient kind, or runs
// out of retries. It returns the completion, the failed attempts, and the
// last *Error when every attempt failed.
func (p Policy) Do(ctx context.Context, inv Invoker, req Request) (string, []Attempt, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var failed []Attempt
	for attempt := 1; ; attempt++ {
		text, err := p.once(ctx, inv, req)
		if err == nil {
			return text, failed, nil
		}

		ie := Classify(req.Provider.Name, err)
		if ctx.Err() != nil {
			// the caller gave up, not the provider
			ie = &Error{Kind: KindTimeout, Provider: req.Provider.Name, Err: ctx.Err()}
		}
		failed = append(failed, Attempt{Number: attempt, Kind: ie.Kind, Err: ie})

		if !ie.Kind.Transient() || attempt > p.MaxRetries || ctx.Err() != nil {
			return "", failed, ie
		}
		if err := sleep(ctx, p.Delay*time.Duration(attempt)); err != nil {
			return "", failed, ie
		}
	}
}

func (p Policy) once(ctx context.Context, inv Invoker, req Request) (string, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	text, err := inv.Invoke(ctx, req)
	if err != nil && ctx.Err() != nil {
		return "", &Error{Kind: KindTimeout, Provider: req.Provider.Name, Err: err}
	}
	return text, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
