package bridge

import (
	"fmt"
	"runtime/debug"

	"mcpbridge/internal/api"
	"mcpbridge/internal/config"
	"mcpbridge/internal/supervisor"
	"mcpbridge/pkg/logging"
)

const subsystem = "Bridge"

// Options configures a Bridge.
type Options struct {
	// ServerPrefix is prepended to server names returned by ActiveServerIDs.
	ServerPrefix string
}

// Bridge adapts the supervisor and the config store to the surface the host
// application consumes: plugin export and invocation for the agent runtime,
// and the management operations behind the HTTP API.
//
// Every exported method recovers panics and reports them as internal
// failures, so a fault in one request never takes down the host.
type Bridge struct {
	store      config.Store
	supervisor *supervisor.Supervisor
	prefix     string
	names      *NameTracker
}

// New creates a Bridge over store and sup.
func New(store config.Store, sup *supervisor.Supervisor, opts Options) *Bridge {
	prefix := opts.ServerPrefix
	if prefix == "" {
		prefix = config.DefaultServerPrefix
	}
	return &Bridge{
		store:      store,
		supervisor: sup,
		prefix:     prefix,
		names:      NewNameTracker(),
	}
}

// Supervisor returns the supervisor the bridge drives.
func (b *Bridge) Supervisor() *supervisor.Supervisor {
	return b.supervisor
}

// recoverResult converts a panic in op into a failed result.
func recoverResult[T any](op string, out *api.Result[T]) {
	if r := recover(); r != nil {
		err := fmt.Errorf("%v", r)
		logging.Error(subsystem, err, "Recovered from panic in %s\n%s", op, debug.Stack())
		*out = api.Fail[T](api.NewInternalError(err))
	}
}
