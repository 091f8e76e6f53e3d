package audit

import (
	"context"
	"time"

	id "landledger/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so stores
// and downstream consumers can route and retain them differently.
type EventCategory string

const (
	// CategoryCompliance covers ownership and registry changes with legal
	// significance. Written fail-closed inside the unit of work.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers integrity violations, authorization failures and
	// OTP abuse. Written asynchronously so a failing transition can still be
	// recorded after its unit of work rolled back.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine marketplace activity.
	CategoryOperations EventCategory = "operations"
)

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is the stored form of every audit record.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// UserID is the user the event is about (owner, buyer, verified user).
	UserID id.UserID
	// Subject is the aggregate the event concerns, usually a land or buy request id.
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
	// ActorID is who performed the action when different from UserID, e.g.
	// the admin approving a transfer.
	ActorID  string
	IP       string
	// Device summarises the caller's user agent, e.g. "Chrome on Linux".
	Device   string
	Severity Severity
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

type AuditEvent string

const (
	EventLandRegistered      AuditEvent = "land_registered"
	EventLandClaimed         AuditEvent = "land_claimed"
	EventLandVerified        AuditEvent = "land_verification_recorded"
	EventLandRecordCorrected AuditEvent = "land_record_corrected"
	EventLandDigitalized     AuditEvent = "land_digitalized"
	EventLandDisputed        AuditEvent = "land_disputed"
	EventLandDisputeResolved AuditEvent = "land_dispute_resolved"

	EventListingCreated AuditEvent = "listing_created"
	EventListingUpdated AuditEvent = "listing_updated"
	EventListingRemoved AuditEvent = "listing_removed"

	EventBuyRequestCreated   AuditEvent = "buy_request_created"
	EventBuyRequestConfirmed AuditEvent = "buy_request_confirmed"
	EventBuyRequestDeclined  AuditEvent = "buy_request_declined"
	EventBuyRequestCancelled AuditEvent = "buy_request_cancelled"

	EventOwnershipTransferred AuditEvent = "ownership_transferred"
	EventTransferRejected     AuditEvent = "transfer_rejected"

	EventUserVerificationChanged AuditEvent = "user_verification_changed"

	EventIntegrityViolation AuditEvent = "integrity_violation"
	EventOTPLockout         AuditEvent = "otp_lockout"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventLandRegistered:          CategoryCompliance,
	EventLandClaimed:             CategoryCompliance,
	EventLandVerified:            CategoryCompliance,
	EventLandRecordCorrected:     CategoryCompliance,
	EventLandDigitalized:         CategoryCompliance,
	EventLandDisputed:            CategoryCompliance,
	EventLandDisputeResolved:     CategoryCompliance,
	EventOwnershipTransferred:    CategoryCompliance,
	EventTransferRejected:        CategoryCompliance,
	EventUserVerificationChanged: CategoryCompliance,

	EventIntegrityViolation: CategorySecurity,
	EventOTPLockout:         CategorySecurity,

	EventListingCreated:      CategoryOperations,
	EventListingUpdated:      CategoryOperations,
	EventListingRemoved:      CategoryOperations,
	EventBuyRequestCreated:   CategoryOperations,
	EventBuyRequestConfirmed: CategoryOperations,
	EventBuyRequestDeclined:  CategoryOperations,
	EventBuyRequestCancelled: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ComplianceEvent is a registry or ownership change that must be persisted
// before the operation that caused it commits.
type ComplianceEvent struct {
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    AuditEvent
	Decision  string
	Reason    string
	RequestID string
	ActorID   string
}

func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:  e.Action.Category(),
		Timestamp: e.Timestamp,
		UserID:    e.UserID,
		Subject:   e.Subject,
		Action:    string(e.Action),
		Decision:  e.Decision,
		Reason:    e.Reason,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
	}
}

// SecurityEvent is emitted without blocking the caller.
type SecurityEvent struct {
	Timestamp time.Time
	Subject   string
	Action    AuditEvent
	Reason    string
	IP        string
	Device    string
	RequestID string
	ActorID   string
	Severity  Severity
}

func (e SecurityEvent) ToEvent() Event {
	return Event{
		Category:  CategorySecurity,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    string(e.Action),
		Reason:    e.Reason,
		IP:        e.IP,
		Device:    e.Device,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
		Severity:  e.Severity,
	}
}
