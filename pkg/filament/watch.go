package filament

// WatchOption configures Watch beyond the shared effect options.
type WatchOption interface {
	applyWatch(cfg *watchConfig)
}

type watchConfig struct {
	immediate bool
	effect    effectConfig
}

type watchOptionFunc func(*watchConfig)

func (f watchOptionFunc) applyWatch(cfg *watchConfig) { f(cfg) }

// Immediate delivers the source's initial value to the callback right
// away, with the zero value as the old value.
func Immediate() WatchOption {
	return watchOptionFunc(func(cfg *watchConfig) {
		cfg.immediate = true
	})
}

// WatchWith applies a shared effect option to a watcher.
func WatchWith(opt EffectOption) WatchOption {
	return watchOptionFunc(func(cfg *watchConfig) {
		opt.applyEffect(&cfg.effect)
	})
}

// Watch evaluates source as a tracked run and invokes callback with the
// new and previous values whenever the result changes. The callback
// itself runs untracked, so its reads never extend the watcher's
// dependency set.
func Watch[T any](source func() T, callback func(newValue, oldValue T), opts ...WatchOption) (Stop, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if callback == nil {
		return nil, ErrNilEffect
	}

	cfg := watchConfig{}
	for _, opt := range opts {
		opt.applyWatch(&cfg)
	}

	var prev T
	first := true

	effectOpts := make([]EffectOption, 0, len(cfg.effect.subOpts)+1)
	effectOpts = append(effectOpts, WithTrackMode(cfg.effect.mode))
	for _, subOpt := range cfg.effect.subOpts {
		opt := subOpt
		effectOpts = append(effectOpts, effectOptionFunc(func(c *effectConfig) {
			c.subOpts = append(c.subOpts, opt)
		}))
	}

	return RunEffect(func() {
		value := source()
		if first {
			first = false
			prev = value
			if cfg.immediate {
				var zero T
				Untracked(func() { callback(value, zero) })
			}
			return
		}
		if defaultEquals(value, prev) {
			return
		}
		old := prev
		prev = value
		Untracked(func() { callback(value, old) })
	}, effectOpts...)
}

// WatchEffect is RunEffect under the name consumers coming from
// watch-style APIs expect.
func WatchEffect(fn func(), opts ...EffectOption) (Stop, error) {
	return RunEffect(fn, opts...)
}

// WatchSignal watches a signal directly, sparing the closure.
func WatchSignal[T any](s *Signal[T], callback func(newValue, oldValue T), opts ...WatchOption) (Stop, error) {
	return Watch(s.Get, callback, opts...)
}
