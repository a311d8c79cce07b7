package supervisor

import (
	"time"

	"mcpbridge/internal/api"
	"mcpbridge/internal/services"
)

// StartObservation captures one start attempt.
type StartObservation struct {
	Server    string
	Transport api.TransportType
	Duration  time.Duration
	Success   bool
	ErrorKind api.ErrorKind
}

// StopObservation captures one runtime teardown.
type StopObservation struct {
	Server    string
	Transport api.TransportType
	// Reason is one of "stop", "prune", "unhealthy", "replaced", "shutdown".
	Reason string
}

// CallObservation captures one tool invocation.
type CallObservation struct {
	Server    string
	Tool      string
	Transport api.TransportType
	Duration  time.Duration
	Success   bool
	ErrorKind api.ErrorKind
}

// HealthObservation captures one ping.
type HealthObservation struct {
	Server    string
	Healthy   bool
	Duration  time.Duration
	ErrorKind api.ErrorKind
}

// StateObservation captures one runtime state or health transition, as
// reported by the runtime's state-change callback.
type StateObservation struct {
	Server    string
	Transport api.TransportType
	From      services.ServiceState
	To        services.ServiceState
	Health    services.HealthStatus
}

// Observer receives supervisor events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	ObserveStart(StartObservation)
	ObserveStop(StopObservation)
	ObserveCall(CallObservation)
	ObserveHealth(HealthObservation)
	ObserveState(StateObservation)
}

type noopObserver struct{}

func (noopObserver) ObserveStart(StartObservation)   {}
func (noopObserver) ObserveStop(StopObservation)     {}
func (noopObserver) ObserveCall(CallObservation)     {}
func (noopObserver) ObserveHealth(HealthObservation) {}
func (noopObserver) ObserveState(StateObservation)   {}

func errorKind(err error) api.ErrorKind {
	if err == nil {
		return ""
	}
	if kind := api.KindOf(err); kind != "" {
		return kind
	}
	return api.KindInternal
}
