package domain

// ServiceStatus values reported by the gateway for managed services.
const (
	ServiceStatusRunning = "running"
	ServiceStatusStopped = "stopped"
	ServiceStatusError   = "error"
)

// ServiceType distinguishes how a service is supervised on the host.
const (
	ServiceTypeDocker = "docker"
	ServiceTypeHost   = "host"
)

// Actions accepted by the per-service dispatch endpoints.
const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRestart = "restart"
	ActionEnable  = "enable"
	ActionDisable = "disable"
)

// Service describes one managed service inside an environment.
type Service struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Health    string `json:"health,omitempty"`
	Container string `json:"container,omitempty"`
	Type      string `json:"type"`
	Required  bool   `json:"required"`
}

// Running reports whether the service is currently in the running state.
func (s Service) Running() bool {
	return s.Status == ServiceStatusRunning
}

// ValidServiceAction reports whether action is one of the dispatchable verbs.
func ValidServiceAction(action string) bool {
	switch action {
	case ActionStart, ActionStop, ActionRestart, ActionEnable, ActionDisable:
		return true
	}
	return false
}

// ValidGlobalAction reports whether action may target every service at once.
// Enable and disable stay per-service.
func ValidGlobalAction(action string) bool {
	switch action {
	case ActionStart, ActionStop, ActionRestart:
		return true
	}
	return false
}
