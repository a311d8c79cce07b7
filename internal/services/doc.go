// Package services provides the service abstraction shared by the runtimes
// the supervisor manages.
//
// A Service has a name, a lifecycle (Start, Stop), and observable state:
// a ServiceState, a HealthStatus, and the last error. BaseService implements
// the bookkeeping and notifies a StateChangeCallback on transitions, outside
// of its lock.
//
// Registry is a typed, name-keyed set of services. Registration of a name
// that is already present fails, so at most one live runtime exists per name.
//
// # Thread Safety
//
// BaseService and Registry are safe for concurrent use.
package services
