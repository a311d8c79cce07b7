package services

import (
	"context"
)

// ServiceState is the lifecycle state of a service.
type ServiceState string

const (
	StateUnknown  ServiceState = "Unknown"
	StateStarting ServiceState = "Starting"
	StateRunning  ServiceState = "Running"
	StateStopping ServiceState = "Stopping"
	StateStopped  ServiceState = "Stopped"
	StateFailed   ServiceState = "Failed"
)

// HealthStatus is the last observed health of a service.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "Unknown"
	HealthHealthy   HealthStatus = "Healthy"
	HealthUnhealthy HealthStatus = "Unhealthy"
)

// ServiceType represents the type of service
type ServiceType string

const (
	TypeMCPServer ServiceType = "MCPServer"
)

// Service is the core interface that all services must implement
type Service interface {
	// Lifecycle management
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// State management
	GetState() ServiceState
	GetHealth() HealthStatus
	GetLastError() error

	// Service metadata
	GetName() string
	GetType() ServiceType

	// State change notifications
	// The service should call this callback when its state changes
	SetStateChangeCallback(callback StateChangeCallback)
}

// StateChangeCallback is called when a service's state changes
type StateChangeCallback func(name string, oldState, newState ServiceState, health HealthStatus, err error)
