package loom

import (
	"net/http"
	"net/http/pprof"
)

// ServePprof registers the runtime profiling endpoints under prefix,
// "/debug/pprof" when empty. The handlers come from net/http/pprof and
// take over the connection, bypassing the staged response.
func (a *App) ServePprof(prefix string) {
	if prefix == "" {
		prefix = "/debug/pprof"
	}

	a.Get(prefix+"/", WrapHTTP(http.HandlerFunc(pprof.Index)))
	a.Get(prefix+"/cmdline", WrapHTTP(http.HandlerFunc(pprof.Cmdline)))
	a.Get(prefix+"/profile", WrapHTTP(http.HandlerFunc(pprof.Profile)))
	a.Get(prefix+"/symbol", WrapHTTP(http.HandlerFunc(pprof.Symbol)))
	a.Get(prefix+"/trace", WrapHTTP(http.HandlerFunc(pprof.Trace)))
	for _, profile := range []string{"goroutine", "heap", "allocs", "block", "mutex", "threadcreate"} {
		a.Get(prefix+"/"+profile, WrapHTTP(pprof.Handler(profile)))
	}
}
