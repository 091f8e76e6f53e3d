package models

import (
	"strings"
	"time"

	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

type Status string

const (
	StatusPendingSellerConfirmation Status = "PENDING_SELLER_CONFIRMATION"
	StatusPendingAdminApproval      Status = "PENDING_ADMIN_APPROVAL"
	StatusApproved                  Status = "APPROVED"
	StatusRejected                  Status = "REJECTED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPendingSellerConfirmation, StatusPendingAdminApproval, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsActive reports whether a request in this status holds the parcel's
// single active-request slot.
func (s Status) IsActive() bool {
	return s == StatusPendingSellerConfirmation || s == StatusPendingAdminApproval
}

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ActiveStatuses lists the statuses that occupy a parcel.
var ActiveStatuses = []Status{StatusPendingSellerConfirmation, StatusPendingAdminApproval}

type TimelineEvent string

const (
	EventCreated         TimelineEvent = "CREATED"
	EventSellerConfirmed TimelineEvent = "SELLER_CONFIRMED"
	EventSellerDeclined  TimelineEvent = "SELLER_DECLINED"
	EventBuyerCancelled  TimelineEvent = "BUYER_CANCELLED"
	EventAdminApproved   TimelineEvent = "ADMIN_APPROVED"
	EventAdminRejected   TimelineEvent = "ADMIN_REJECTED"
	EventDisputeClosed   TimelineEvent = "CLOSED_BY_DISPUTE"
)

type TimelineEntry struct {
	Event       TimelineEvent `json:"event"`
	Timestamp   time.Time     `json:"timestamp"`
	PerformedBy id.UserID     `json:"performed_by"`
	Description string        `json:"description,omitempty"`
}

// BuyRequest is one negotiation from a buyer's offer to the admin's decision.
//
// Invariants:
//   - Status moves PENDING_SELLER_CONFIRMATION -> PENDING_ADMIN_APPROVAL ->
//     APPROVED|REJECTED, or PENDING_SELLER_CONFIRMATION -> REJECTED
//   - APPROVED and REJECTED are terminal
//   - every status change appends exactly one timeline entry
//   - requests are never deleted
type BuyRequest struct {
	ID              id.BuyRequestID `json:"id"`
	LandID          id.LandID       `json:"land_id"`
	Seller          id.UserID       `json:"seller"`
	Buyer           id.UserID       `json:"buyer"`
	AgreedPrice     int64           `json:"agreed_price"`
	Message         string          `json:"message,omitempty"`
	Status          Status          `json:"status"`
	Timeline        []TimelineEntry `json:"timeline"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	AdminComments   string          `json:"admin_comments,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int64           `json:"version"`
}

// NewBuyRequest opens a request in PENDING_SELLER_CONFIRMATION.
func NewBuyRequest(requestID id.BuyRequestID, landID id.LandID, seller, buyer id.UserID, price int64, message string, now time.Time) (*BuyRequest, error) {
	if price <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "agreed price must be positive")
	}
	if seller.IsNil() || buyer.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "seller and buyer are required")
	}
	if seller == buyer {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "buyer cannot be the seller")
	}
	r := &BuyRequest{
		ID:          requestID,
		LandID:      landID,
		Seller:      seller,
		Buyer:       buyer,
		AgreedPrice: price,
		Message:     strings.TrimSpace(message),
		Status:      StatusPendingSellerConfirmation,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.record(EventCreated, buyer, "buy request created", now)
	return r, nil
}

func (r *BuyRequest) record(event TimelineEvent, by id.UserID, description string, now time.Time) {
	r.Timeline = append(r.Timeline, TimelineEntry{
		Event:       event,
		Timestamp:   now,
		PerformedBy: by,
		Description: description,
	})
	r.UpdatedAt = now
}

func (r *BuyRequest) IsParty(userID id.UserID) bool {
	return userID == r.Seller || userID == r.Buyer
}

func (r *BuyRequest) requireStatus(want Status) error {
	if r.Status != want {
		return dErrors.New(dErrors.CodeInvalidState,
			"buy request is "+string(r.Status)+", expected "+string(want))
	}
	return nil
}

// CanConfirm checks the seller may accept the offer.
func (r *BuyRequest) CanConfirm(actor id.UserID) error {
	if actor != r.Seller {
		return dErrors.New(dErrors.CodeNotOwner, "only the seller may confirm")
	}
	return r.requireStatus(StatusPendingSellerConfirmation)
}

func (r *BuyRequest) ApplyConfirm(now time.Time) {
	r.Status = StatusPendingAdminApproval
	r.record(EventSellerConfirmed, r.Seller, "seller confirmed; awaiting admin approval", now)
}

func (r *BuyRequest) CanDecline(actor id.UserID) error {
	if actor != r.Seller {
		return dErrors.New(dErrors.CodeNotOwner, "only the seller may decline")
	}
	return r.requireStatus(StatusPendingSellerConfirmation)
}

func (r *BuyRequest) ApplyDecline(reason string, now time.Time) {
	reason = strings.TrimSpace(reason)
	r.Status = StatusRejected
	r.RejectionReason = reason
	r.record(EventSellerDeclined, r.Seller, describe("seller declined", reason), now)
}

// CanCancel allows the buyer to withdraw only before the seller confirms.
func (r *BuyRequest) CanCancel(actor id.UserID) error {
	if actor != r.Buyer {
		return dErrors.New(dErrors.CodeForbidden, "only the buyer may cancel")
	}
	return r.requireStatus(StatusPendingSellerConfirmation)
}

func (r *BuyRequest) ApplyCancel(now time.Time) {
	r.Status = StatusRejected
	r.RejectionReason = "cancelled by buyer"
	r.record(EventBuyerCancelled, r.Buyer, "buyer cancelled", now)
}

// CanDecide checks the request awaits an admin decision.
func (r *BuyRequest) CanDecide() error {
	return r.requireStatus(StatusPendingAdminApproval)
}

func (r *BuyRequest) ApplyApproval(admin id.UserID, comments string, now time.Time) {
	comments = strings.TrimSpace(comments)
	r.Status = StatusApproved
	r.AdminComments = comments
	r.record(EventAdminApproved, admin, describe("ownership transferred", comments), now)
}

func (r *BuyRequest) ApplyRejection(admin id.UserID, reason string, now time.Time) {
	reason = strings.TrimSpace(reason)
	r.Status = StatusRejected
	r.RejectionReason = reason
	r.AdminComments = reason
	r.record(EventAdminRejected, admin, describe("transfer rejected", reason), now)
}

// ApplyDisputeClosure rejects an active request because its parcel's
// dispute was resolved.
func (r *BuyRequest) ApplyDisputeClosure(admin id.UserID, reason string, now time.Time) error {
	if !r.Status.IsActive() {
		return dErrors.New(dErrors.CodeInvalidState, "buy request is not active")
	}
	r.Status = StatusRejected
	r.RejectionReason = reason
	r.record(EventDisputeClosed, admin, reason, now)
	return nil
}

// Clone returns a deep copy.
func (r *BuyRequest) Clone() *BuyRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.Timeline = append([]TimelineEntry(nil), r.Timeline...)
	return &c
}

func describe(base, detail string) string {
	if detail == "" {
		return base
	}
	return base + ": " + detail
}
