package gateway

import (
	"fmt"
	"sort"

	"github.com/hardimpactdev/orbit-console/internal/domain"
)

// servicesEnvelope tolerates the three wrapper shapes gateway builds have
// shipped for GET /status: {success,data:{services}}, {services} and
// {data:{services}}. The tolerance is a migration shim; once every
// environment runs a current gateway only the first shape remains and this
// type collapses with it.
type servicesEnvelope struct {
	Success  *bool                   `json:"success"`
	Error    string                  `json:"error"`
	Services map[string]serviceAttrs `json:"services"`
	Data     *servicesData           `json:"data"`
}

type servicesData struct {
	Services map[string]serviceAttrs `json:"services"`
}

type serviceAttrs struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Health    string `json:"health"`
	Container string `json:"container"`
	Type      string `json:"type"`
	Required  bool   `json:"required"`
}

// normalizeServices converts whichever wrapper the gateway used into the
// canonical service list. Beyond this function no caller sees the raw shapes.
func normalizeServices(envelope servicesEnvelope) ([]domain.Service, error) {
	if envelope.Success != nil && !*envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = "status request rejected"
		}
		return nil, fmt.Errorf("gateway: %s", msg)
	}
	raw := envelope.Services
	if envelope.Data != nil && envelope.Data.Services != nil {
		raw = envelope.Data.Services
	}
	if raw == nil {
		return nil, fmt.Errorf("gateway: status response missing services")
	}

	services := make([]domain.Service, 0, len(raw))
	for name, attrs := range raw {
		svc := domain.Service{
			Name:      attrs.Name,
			Status:    attrs.Status,
			Health:    attrs.Health,
			Container: attrs.Container,
			Type:      attrs.Type,
			Required:  attrs.Required,
		}
		if svc.Name == "" {
			svc.Name = name
		}
		if svc.Type == "" {
			svc.Type = domain.ServiceTypeDocker
		}
		if svc.Status == "" {
			svc.Status = domain.ServiceStatusStopped
		}
		services = append(services, svc)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	return services, nil
}
