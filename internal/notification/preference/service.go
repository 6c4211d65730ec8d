package preference

import (
	"context"
	"strings"

	"freelancer_ops_backend/internal/notification/channel"
	"freelancer_ops_backend/internal/notification/transport"
	"freelancer_ops_backend/platform/apperr"
	"freelancer_ops_backend/platform/logger"
	"freelancer_ops_backend/platform/phone"
	"freelancer_ops_backend/platform/validator"

	"github.com/google/uuid"
)

const (
	opUpdate          = "notification.preference.service.update"
	opSetSubscription = "notification.preference.service.set_push_subscription"
)

// Store is implemented by Repository.
type Store interface {
	Find(ctx context.Context, tenantID, userID uuid.UUID) (Preference, error)
	Ensure(ctx context.Context, tenantID, userID uuid.UUID) (Preference, error)
	Upsert(ctx context.Context, p Preference) (Preference, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Preference, error)
	MarkPushSubscriptionStale(ctx context.Context, tenantID, userID uuid.UUID, endpoint string) error
}

type Service struct {
	store Store
	val   *validator.Validator
	log   *logger.Logger
}

func NewService(store Store, val *validator.Validator, log *logger.Logger) *Service {
	return &Service{store: store, val: val, log: log}
}

// Get returns the user's preferences, creating the default row on first use.
func (s *Service) Get(ctx context.Context, tenantID, userID uuid.UUID) (Preference, error) {
	return s.store.Ensure(ctx, tenantID, userID)
}

// Find reads without creating. found is false when the user never saved
// preferences.
func (s *Service) Find(ctx context.Context, tenantID, userID uuid.UUID) (Preference, bool, error) {
	p, err := s.store.Find(ctx, tenantID, userID)
	if apperr.Is(err, apperr.KindNotFound) {
		return Preference{}, false, nil
	}
	if err != nil {
		return Preference{}, false, err
	}
	return p, true, nil
}

func (s *Service) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]Preference, error) {
	return s.store.ListByTenant(ctx, tenantID)
}

// Update applies a partial update. Invalid input is rejected before anything
// is written.
func (s *Service) Update(ctx context.Context, tenantID, userID uuid.UUID, req transport.UpdatePreferencesRequest) (Preference, error) {
	if err := s.val.Struct(req); err != nil {
		return Preference{}, apperr.Validation("invalid notification preferences").
			WithOp(opUpdate).
			WithDetails(validator.FieldErrors(err))
	}

	p, err := s.store.Ensure(ctx, tenantID, userID)
	if err != nil {
		return Preference{}, err
	}

	if req.IsEnabled != nil {
		p.IsEnabled = *req.IsEnabled
	}
	if req.AutoScanEnabled != nil {
		p.AutoScanEnabled = *req.AutoScanEnabled
	}
	if req.ScanIntervalMinutes != nil {
		p.ScanIntervalMinutes = *req.ScanIntervalMinutes
	}
	if req.MinMatchPercentage != nil {
		p.MinMatchPercentage = *req.MinMatchPercentage
	}
	if req.Categories != nil {
		p.Categories = cleanList(req.Categories)
	}
	if req.TargetSkills != nil {
		p.TargetSkills = cleanList(req.TargetSkills)
	}
	if req.DesktopEnabled != nil {
		p.DesktopEnabled = *req.DesktopEnabled
	}
	if req.SMSEnabled != nil {
		p.SMSEnabled = *req.SMSEnabled
	}
	if req.WhatsAppEnabled != nil {
		p.WhatsAppEnabled = *req.WhatsAppEnabled
	}

	details := map[string]string{}
	p.SMSCountryCode = pick(req.SMSCountryCode, p.SMSCountryCode)
	p.SMSPhoneNumber = normalizePhone(req.SMSPhoneNumber, p.SMSPhoneNumber, p.SMSCountryCode, "smsPhoneNumber", details)
	p.WhatsAppCountryCode = pick(req.WhatsAppCountryCode, p.WhatsAppCountryCode)
	p.WhatsAppPhoneNumber = normalizePhone(req.WhatsAppPhoneNumber, p.WhatsAppPhoneNumber, p.WhatsAppCountryCode, "whatsappPhoneNumber", details)
	if len(details) > 0 {
		return Preference{}, apperr.Validation("invalid phone number").WithOp(opUpdate).WithDetails(details)
	}

	clearDisabled(&p)
	return s.store.Upsert(ctx, p)
}

// SetPushSubscription registers a browser subscription and switches desktop
// delivery on. A previous stale flag is cleared.
func (s *Service) SetPushSubscription(ctx context.Context, tenantID, userID uuid.UUID, req transport.PushSubscriptionRequest) (Preference, error) {
	if err := s.val.Struct(req); err != nil {
		return Preference{}, apperr.Validation("invalid push subscription").
			WithOp(opSetSubscription).
			WithDetails(validator.FieldErrors(err))
	}

	p, err := s.store.Ensure(ctx, tenantID, userID)
	if err != nil {
		return Preference{}, err
	}
	p.PushSubscription = &channel.PushSubscription{
		Endpoint: strings.TrimSpace(req.Endpoint),
		Keys: channel.PushKeys{
			P256dh: req.Keys.P256dh,
			Auth:   req.Keys.Auth,
		},
	}
	p.PushSubscriptionStale = false
	p.DesktopEnabled = true
	return s.store.Upsert(ctx, p)
}

// RemovePushSubscription forgets the browser subscription and disables
// desktop delivery.
func (s *Service) RemovePushSubscription(ctx context.Context, tenantID, userID uuid.UUID) (Preference, error) {
	p, err := s.store.Ensure(ctx, tenantID, userID)
	if err != nil {
		return Preference{}, err
	}
	p.DesktopEnabled = false
	clearDisabled(&p)
	return s.store.Upsert(ctx, p)
}

// MarkPushSubscriptionStale records that the push service rejected endpoint.
func (s *Service) MarkPushSubscriptionStale(ctx context.Context, tenantID, userID uuid.UUID, endpoint string) error {
	if err := s.store.MarkPushSubscriptionStale(ctx, tenantID, userID, endpoint); err != nil {
		return err
	}
	s.log.Info("push subscription marked stale",
		"tenant_id", tenantID.String(),
		"user_id", userID.String(),
	)
	return nil
}

// ExtensionConfig is polled by the browser extension. It never creates a row.
func (s *Service) ExtensionConfig(ctx context.Context, tenantID, userID uuid.UUID) (transport.ExtensionConfigResponse, error) {
	p, found, err := s.Find(ctx, tenantID, userID)
	if err != nil {
		return transport.ExtensionConfigResponse{}, err
	}
	if !found {
		p = Defaults(tenantID, userID)
	}
	return transport.ExtensionConfigResponse{
		Enabled:            p.IsEnabled && p.AutoScanEnabled,
		IntervalMinutes:    p.ScanIntervalMinutes,
		Categories:         nonNil(p.Categories),
		TargetSkills:       nonNil(p.TargetSkills),
		MinMatchPercentage: p.MinMatchPercentage,
	}, nil
}

func clearDisabled(p *Preference) {
	if !p.DesktopEnabled {
		p.PushSubscription = nil
		p.PushSubscriptionStale = false
	}
	if !p.SMSEnabled {
		p.SMSPhoneNumber = nil
		p.SMSCountryCode = nil
	}
	if !p.WhatsAppEnabled {
		p.WhatsAppPhoneNumber = nil
		p.WhatsAppCountryCode = nil
	}
}

// pick returns the trimmed update when one was sent; an empty string clears.
func pick(update, current *string) *string {
	if update == nil {
		return current
	}
	trimmed := strings.TrimSpace(*update)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizePhone(update, current, countryCode *string, field string, details map[string]string) *string {
	value := pick(update, current)
	if value == nil {
		return nil
	}
	code := ""
	if countryCode != nil {
		code = *countryCode
	}
	normalized, err := phone.NormalizeE164(*value, code)
	if err != nil {
		details[field] = err.Error()
		return value
	}
	return &normalized
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
