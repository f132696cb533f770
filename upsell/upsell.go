// Package upsell implements C7: on booking confirmation, offer at most one
// add-on per conversation, split across copy/position variants, track
// conversion, and run the deferred DELAY10 dispatch through a periodic
// worker.
package upsell

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"time"

	"github.com/jonatasporto/trinks-router/catalog"
	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/provider"
	"github.com/jonatasporto/trinks-router/store"
)

// Config mirrors the specification's upsell tunables.
type Config struct {
	Enabled             bool
	DelayMin            time.Duration
	CopyAWeight         float64
	PosImmediateWeight  float64
	MaxAttempts         int
	RetryDelay          time.Duration
}

var (
	acceptPattern  = regexp.MustCompile(`(?i)^1$|sim|quero|aceito|adicionar|pode sim`)
	declinePattern = regexp.MustCompile(`(?i)nao|não|talvez depois|agora não`)

	errNoAddon = fmt.Errorf("upsell: no recommended addon for service")
)

// Service is C7's public operations.
type Service struct {
	cfg      Config
	catalog  *catalog.Service
	store    store.UpsellStore
	provider provider.BookingProvider
	outbound provider.Outbound
	rng      *rand.Rand
}

// New wires an upsell Service. rng is injected so variant assignment stays
// pure and testable; callers should seed it from a real entropy source in
// production.
func New(cfg Config, catalogSvc *catalog.Service, backing store.UpsellStore, bookingProvider provider.BookingProvider, outbound provider.Outbound, rng *rand.Rand) *Service {
	return &Service{cfg: cfg, catalog: catalogSvc, store: backing, provider: bookingProvider, outbound: outbound, rng: rng}
}

// AssignVariant performs the deterministic-from-draw variant pick: a single
// uniform float decides copy, a second decides position, each against its
// configured weight.
func (s *Service) AssignVariant() domain.Variant {
	v := domain.Variant{Copy: domain.VariantCopyB, Position: domain.VariantDelay10}
	if s.rng.Float64() < s.cfg.CopyAWeight {
		v.Copy = domain.VariantCopyA
	}
	if s.rng.Float64() < s.cfg.PosImmediateWeight {
		v.Position = domain.VariantImmediate
	}
	return v
}

// OnBookingConfirmed is the hook the conversation controller invokes the
// moment a ConversationContext enters SCHEDULING_CONFIRMED. forced, when
// non-nil, overrides variant assignment (admin test endpoint).
func (s *Service) OnBookingConfirmed(ctx context.Context, tenant domain.Tenant, conversationID string, phone domain.Phone, appointmentID, primaryServiceID string, forced *domain.Variant) error {
	if !s.cfg.Enabled {
		return nil
	}

	state, err := s.store.GetConversationState(ctx, conversationID)
	if err != nil {
		return err
	}
	if state != nil && state.HasShown {
		return s.store.AppendEvent(ctx, domain.UpsellEvent{
			Tenant: tenant, ConversationID: conversationID, Phone: phone,
			Event: domain.UpsellAlreadyOffered, AppointmentID: appointmentID,
			PrimaryServiceID: primaryServiceID, CreatedAt: time.Now(),
		})
	}

	addon, err := s.catalog.RecommendedAddon(ctx, tenant, primaryServiceID)
	if err != nil {
		return err
	}
	if addon == nil {
		return s.store.AppendEvent(ctx, domain.UpsellEvent{
			Tenant: tenant, ConversationID: conversationID, Phone: phone,
			Event: domain.UpsellNothingToOffer, AppointmentID: appointmentID,
			PrimaryServiceID: primaryServiceID, CreatedAt: time.Now(),
		})
	}

	variant := s.AssignVariant()
	if forced != nil {
		variant = *forced
	}

	if variant.Position == domain.VariantImmediate {
		return s.dispatch(ctx, tenant, conversationID, phone, appointmentID, primaryServiceID, *addon, variant)
	}

	job := domain.ScheduledUpsellJob{
		ID:               jobID(conversationID, appointmentID, time.Now()),
		Tenant:           tenant,
		ConversationID:   conversationID,
		Phone:            phone,
		AppointmentID:    appointmentID,
		PrimaryServiceID: primaryServiceID,
		ScheduledFor:     time.Now().Add(s.cfg.DelayMin),
		Variant:          variant,
		MaxAttempts:      s.cfg.MaxAttempts,
		Status:           domain.JobPending,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return err
	}
	return s.store.AppendEvent(ctx, domain.UpsellEvent{
		Tenant: tenant, ConversationID: conversationID, Phone: phone,
		Event: domain.UpsellScheduled, AddonID: addon.ServiceID, AddonPrice: addon.Price,
		VariantCopy: &variant.Copy, VariantPosition: &variant.Position,
		AppointmentID: appointmentID, PrimaryServiceID: primaryServiceID, CreatedAt: time.Now(),
	})
}

// dispatch renders and sends the offer, records "shown", and sets the
// at-most-once guard. Called both for the IMMEDIATE path and, later, by the
// periodic worker's DELAY10 path.
func (s *Service) dispatch(ctx context.Context, tenant domain.Tenant, conversationID string, phone domain.Phone, appointmentID, primaryServiceID string, addon domain.CatalogSuggestion, variant domain.Variant) error {
	text := renderOfferTemplate(variant.Copy, addon)
	start := time.Now()
	sendErr := s.outbound.SendText(ctx, string(phone), text)
	elapsed := time.Since(start).Milliseconds()

	if sendErr != nil {
		return s.store.AppendEvent(ctx, domain.UpsellEvent{
			Tenant: tenant, ConversationID: conversationID, Phone: phone,
			Event: domain.UpsellError, AddonID: addon.ServiceID, AddonPrice: addon.Price,
			VariantCopy: &variant.Copy, VariantPosition: &variant.Position,
			AppointmentID: appointmentID, PrimaryServiceID: primaryServiceID,
			ProcessingMS: &elapsed, ErrorMessage: sendErr.Error(), CreatedAt: time.Now(),
		})
	}

	if err := s.store.PutConversationState(ctx, domain.UpsellConversationState{
		ConversationID: conversationID, AppointmentID: appointmentID, HasShown: true,
		LastEvent: domain.UpsellShown, LastEventAt: time.Now(),
		LastAddonID: addon.ServiceID, LastVariant: &variant,
	}); err != nil {
		return err
	}
	return s.store.AppendEvent(ctx, domain.UpsellEvent{
		Tenant: tenant, ConversationID: conversationID, Phone: phone,
		Event: domain.UpsellShown, AddonID: addon.ServiceID, AddonPrice: addon.Price,
		VariantCopy: &variant.Copy, VariantPosition: &variant.Position,
		AppointmentID: appointmentID, PrimaryServiceID: primaryServiceID,
		ProcessingMS: &elapsed, CreatedAt: time.Now(),
	})
}

func renderOfferTemplate(copy domain.VariantCopy, addon domain.CatalogSuggestion) string {
	price := "valor a confirmar"
	if addon.Price != nil {
		price = fmt.Sprintf("R$ %.2f", *addon.Price)
	}
	if copy == domain.VariantCopyA {
		return fmt.Sprintf("Aproveite e adicione %s (%d min) por %s ao seu horario!", addon.Name, addon.Duration, price)
	}
	return fmt.Sprintf("Que tal incluir %s no seu atendimento? Leva %d min e sai por %s.", addon.Name, addon.Duration, price)
}

// InterceptResponse is called by the conversation controller before normal
// state-machine processing whenever the conversation's upsell state has
// has_shown=true. It reports whether it consumed the message.
func (s *Service) InterceptResponse(ctx context.Context, tenant domain.Tenant, conversationID string, phone domain.Phone, text string) (consumed bool, err error) {
	state, err := s.store.GetConversationState(ctx, conversationID)
	if err != nil || state == nil || !state.HasShown {
		return false, err
	}

	switch {
	case acceptPattern.MatchString(text):
		if err := s.outbound.SendText(ctx, string(phone), "Perfeito, ja adicionei ao seu agendamento."); err != nil {
			slog.Warn("upsell: failed to send confirm_added", "error", err)
		}
		appointmentID := state.AppointmentID
		addonID := ""
		if state.LastAddonID != "" {
			addonID = state.LastAddonID
		}
		appendErr := s.provider.AppendServiceToAppointment(ctx, string(tenant), appointmentID, addonID)
		if appendErr == nil {
			_ = s.outbound.SendText(ctx, string(phone), "Adicionei o servico adicional com sucesso.")
		}
		return true, s.store.AppendEvent(ctx, domain.UpsellEvent{
			Tenant: tenant, ConversationID: conversationID, Phone: phone,
			Event: domain.UpsellAccepted, AddonID: addonID, CreatedAt: time.Now(),
		})
	case declinePattern.MatchString(text):
		if err := s.outbound.SendText(ctx, string(phone), "Sem problemas, obrigado!"); err != nil {
			slog.Warn("upsell: failed to send decline ack", "error", err)
		}
		return true, s.store.AppendEvent(ctx, domain.UpsellEvent{
			Tenant: tenant, ConversationID: conversationID, Phone: phone,
			Event: domain.UpsellDeclined, CreatedAt: time.Now(),
		})
	default:
		return false, nil
	}
}

func jobID(conversationID, appointmentID string, createdAt time.Time) string {
	h := sha256.New()
	h.Write([]byte(conversationID))
	h.Write([]byte{0})
	h.Write([]byte(appointmentID))
	h.Write([]byte{0})
	h.Write([]byte(createdAt.Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

