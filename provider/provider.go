// Package provider declares the external capabilities the router core
// consumes but does not implement: the booking provider's HTTP API and the
// outbound messaging channel. Concrete HTTP clients are out of scope per the
// specification's Non-goals; only the interfaces live here.
package provider

import "context"

// ServicePage is one page of the provider's catalog listing.
type ServicePage struct {
	Items    []ServiceItem
	HasMore  bool
	NextPage int
}

// ServiceItem is one provider-side catalog row as returned by
// GetServicesPage, prior to normalization.
type ServiceItem struct {
	ServiceID       string
	ProfessionalID  int64
	Name            string
	Category        string
	DurationMinutes int
	Price           *float64
	VisibleToClient bool
	Active          bool
	UpdatedAt       string // ISO-8601; parsed by the caller
}

// AvailabilityResult is the outcome of a provider availability check.
type AvailabilityResult struct {
	Available      bool
	Reason         string
	SuggestedTimes []string
	// Confidence is set to "categorical" when the provider is unreachable
	// but the caller should proceed to manual confirmation rather than
	// hard-failing (see the circuit-breaker soft-failure rule).
	Confidence string
}

// AppointmentRequest is the payload for CreateAppointment. Confirmed must be
// true; callers must reject a false value before invoking the adapter.
type AppointmentRequest struct {
	ServiceID      string
	ClientID       string
	StartISO       string
	DurationMin    int
	Price          *float64
	Confirmed      bool
	ProfessionalID *int64
	Notes          string
}

// AppointmentResult is the provider's response to CreateAppointment.
type AppointmentResult struct {
	ID     string
	Status string
}

// Client is a client record as resolved by FindClientByPhone.
type Client struct {
	ID    string
	Phone string
	Name  string
}

// BookingProvider is the external booking API ("Trinks") the router brokers
// into. No HTTP implementation of this interface ships in this module.
type BookingProvider interface {
	GetServicesPage(ctx context.Context, tenant string, updatedSince string, page, limit int) (ServicePage, error)
	ValidateAvailability(ctx context.Context, tenant, serviceID string, professionalID *int64, startISO string) (AvailabilityResult, error)
	CreateAppointment(ctx context.Context, tenant string, req AppointmentRequest) (AppointmentResult, error)
	FindClientByPhone(ctx context.Context, tenant, phone string) (*Client, error)
	AppendServiceToAppointment(ctx context.Context, tenant, appointmentID, addonID string) error
}

// Outbound is the WhatsApp send-text capability. No ordering guarantee is
// made across different phones.
type Outbound interface {
	SendText(ctx context.Context, phone string, text string) error
}
