// Package devtools serves a live inspector for the reactive engine
// during development: a WebSocket stream of track/trigger/flush/run
// events plus an HTTP stats snapshot.
//
//	srv := devtools.NewServer()
//	srv.Attach()
//	defer srv.Close()
//	http.ListenAndServe("localhost:6080", srv.Handler())
//
// The inspector has no authentication and accepts any origin; never
// expose it beyond localhost.
package devtools
