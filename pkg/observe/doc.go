// Package observe provides a property-key notify path for plain objects
// that are not wrapped in reactive containers.
//
// The signal graph tracks reads automatically; observe does not. Callers
// register interest in (target, property) pairs and report mutations
// explicitly:
//
//	state := &AppState{}
//	stop := observe.Subscribe(state, "title", func(props []string) {
//	    render(state)
//	})
//	state.Title = "hello"
//	observe.Notify(state, "title")
//	stop()
//
// Registrations run synchronously by default, once per Notify. With the
// Batch option they are queued on the engine scheduler instead, and
// repeated notifications of the same registration within one flush cycle
// collapse into a single invocation carrying the union of changed keys.
package observe
