// Package api holds the types shared between the config store, the process
// supervisor, the bridge and the HTTP management surface.
//
// It has no dependencies on the other internal packages, so every component
// can speak in terms of ServerDescriptor, ServerStatus, Plugin and the typed
// Error without import cycles.
//
// # Errors
//
// Failures crossing a component boundary are *Error values tagged with an
// ErrorKind (ConfigError, DuplicateNameError, ParseError, ProcessStartError,
// ProcessTimeoutError, ToolExecutionError, NotFoundError, StorageError,
// InternalError). Use IsKind or AsError to inspect them:
//
//	if api.IsKind(err, api.KindDuplicateName) {
//	    // name already registered
//	}
//
// # Results
//
// Management operations return Result[T], a tagged success-or-failure value:
//
//	res := bridge.Toggle(ctx, "github")
//	if !res.OK() {
//	    fmt.Println(res.Kind(), res.Message())
//	}
package api
