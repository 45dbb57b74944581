package filament

// TrackMode controls whether an effect re-collects its dependencies on
// each run.
type TrackMode uint8

const (
	// TrackAuto re-tracks on every run, so conditionally read sources
	// are picked up and dropped as the effect's control flow changes.
	TrackAuto TrackMode = iota

	// TrackManual tracks only the establishing run; re-runs execute with
	// tracking suspended, keeping the original dependency set frozen.
	TrackManual

	// TrackOnce disposes the effect after its first re-run.
	TrackOnce
)

// effectConfig collects RunEffect options before the subscriber exists.
type effectConfig struct {
	mode    TrackMode
	subOpts []SubscriberOption
}

// EffectOption configures RunEffect, Watch, and WatchEffect.
type EffectOption interface {
	applyEffect(cfg *effectConfig)
}

type effectOptionFunc func(*effectConfig)

func (f effectOptionFunc) applyEffect(cfg *effectConfig) { f(cfg) }

// WithTrackMode selects how the effect re-collects dependencies.
func WithTrackMode(mode TrackMode) EffectOption {
	return effectOptionFunc(func(cfg *effectConfig) {
		cfg.mode = mode
	})
}

// EffectFlush selects the effect's flush mode; FlushSyncMode re-runs
// synchronously on the triggering write.
func EffectFlush(mode FlushMode) EffectOption {
	return effectOptionFunc(func(cfg *effectConfig) {
		cfg.subOpts = append(cfg.subOpts, WithFlush(mode))
	})
}

// EffectLimit caps the number of re-runs before auto-disposal.
func EffectLimit(limit int) EffectOption {
	return effectOptionFunc(func(cfg *effectConfig) {
		cfg.subOpts = append(cfg.subOpts, WithLimit(limit))
	})
}

// EffectScheduler routes the effect's re-runs through sched.
func EffectScheduler(sched *Scheduler) EffectOption {
	return effectOptionFunc(func(cfg *effectConfig) {
		cfg.subOpts = append(cfg.subOpts, WithScheduler(sched))
	})
}

// EffectOnError routes re-run panics to fn.
func EffectOnError(fn func(error)) EffectOption {
	return effectOptionFunc(func(cfg *effectConfig) {
		cfg.subOpts = append(cfg.subOpts, OnError(fn))
	})
}

// EffectOnTrack observes links the effect creates. DevMode only.
func EffectOnTrack(fn func(TrackEvent)) EffectOption {
	return effectOptionFunc(func(cfg *effectConfig) {
		cfg.subOpts = append(cfg.subOpts, OnTrackHook(fn))
	})
}

// EffectOnTrigger observes triggers delivered to the effect. DevMode only.
func EffectOnTrigger(fn func(TriggerEvent)) EffectOption {
	return effectOptionFunc(func(cfg *effectConfig) {
		cfg.subOpts = append(cfg.subOpts, OnTriggerHook(fn))
	})
}

// EffectUnscoped keeps the effect out of the current Scope; only its Stop
// disposes it.
func EffectUnscoped() EffectOption {
	return effectOptionFunc(func(cfg *effectConfig) {
		cfg.subOpts = append(cfg.subOpts, Unscoped())
	})
}

// Stop disposes a running effect. Calling it more than once is safe.
type Stop func()

// RunEffect runs fn once, tracking every source it reads, and re-runs it
// whenever any of them changes.
//
// Returns ErrNilEffect for a nil fn. Returns a nil Stop when the first run
// read no sources: such an effect can never re-run, so it is disposed on
// the spot and there is nothing to stop.
//
// Panics from the establishing run propagate to the caller; panics from
// re-runs are isolated per the subscriber's error handling.
func RunEffect(fn func(), opts ...EffectOption) (Stop, error) {
	if fn == nil {
		return nil, ErrNilEffect
	}

	cfg := effectConfig{}
	for _, opt := range opts {
		opt.applyEffect(&cfg)
	}
	if cfg.mode == TrackOnce {
		cfg.subOpts = append(cfg.subOpts, WithLimit(1))
	}

	sub := NewSubscriber(nil, cfg.subOpts...)
	sub.run = func([]any) {
		switch cfg.mode {
		case TrackManual:
			Untracked(fn)
		default:
			_ = runTracked(&sub.node, func() error {
				fn()
				return nil
			})
		}
	}

	// Establishing run: always tracked, never counted against the limit.
	err := runTracked(&sub.node, func() error {
		fn()
		return nil
	})
	if err != nil {
		sub.Dispose()
		return nil, err
	}

	graphMu.Lock()
	hasDeps := sub.node.depsHead != nil
	graphMu.Unlock()
	if !hasDeps {
		sub.Dispose()
		return nil, nil
	}

	return sub.Dispose, nil
}

// MustRunEffect is RunEffect for callers that treat a nil fn as a bug.
// The returned Stop is never nil; for a dependency-free effect it is a
// no-op.
func MustRunEffect(fn func(), opts ...EffectOption) Stop {
	stop, err := RunEffect(fn, opts...)
	if err != nil {
		panic(err)
	}
	if stop == nil {
		return func() {}
	}
	return stop
}
