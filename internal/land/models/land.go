package models

import (
	"strings"
	"time"

	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

const (
	sqftPerAcre  = 43560.0
	sqftPerGunta = 1089.0
)

// Location identifies a parcel in the administrative hierarchy.
// Immutable once the parcel's verificationStatus is VERIFIED.
type Location struct {
	State        string `json:"state"`
	District     string `json:"district"`
	Taluka       string `json:"taluka"`
	Village      string `json:"village"`
	SurveyNumber string `json:"survey_number"`
	SubDivision  string `json:"sub_division"`
	Pincode      string `json:"pincode"`
}

func (l Location) Normalize() Location {
	return Location{
		State:        strings.TrimSpace(l.State),
		District:     strings.TrimSpace(l.District),
		Taluka:       strings.TrimSpace(l.Taluka),
		Village:      strings.TrimSpace(l.Village),
		SurveyNumber: strings.TrimSpace(l.SurveyNumber),
		SubDivision:  strings.TrimSpace(l.SubDivision),
		Pincode:      strings.TrimSpace(l.Pincode),
	}
}

func (l Location) Validate() error {
	required := []struct{ name, value string }{
		{"state", l.State},
		{"district", l.District},
		{"taluka", l.Taluka},
		{"village", l.Village},
		{"survey_number", l.SurveyNumber},
		{"sub_division", l.SubDivision},
		{"pincode", l.Pincode},
	}
	for _, f := range required {
		if f.value == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, f.name+" is required")
		}
	}
	return nil
}

type Area struct {
	Acres  float64 `json:"acres"`
	Guntas float64 `json:"guntas"`
	Sqft   float64 `json:"sqft"`
}

func (a Area) Validate() error {
	if a.Acres < 0 || a.Guntas < 0 || a.Sqft < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "area values must be non-negative")
	}
	if a.Acres == 0 && a.Guntas == 0 && a.Sqft == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "area must be greater than zero")
	}
	return nil
}

// TotalSqft prefers the surveyed square footage and falls back to acres and guntas.
func (a Area) TotalSqft() float64 {
	if a.Sqft > 0 {
		return a.Sqft
	}
	return a.Acres*sqftPerAcre + a.Guntas*sqftPerGunta
}

type Boundaries struct {
	North string `json:"north,omitempty"`
	South string `json:"south,omitempty"`
	East  string `json:"east,omitempty"`
	West  string `json:"west,omitempty"`
}

// OwnershipRecord is one tenure in the append-only ownership history.
// ToDate is nil for the current tenure.
type OwnershipRecord struct {
	Owner             id.UserID  `json:"owner"`
	OwnerName         string     `json:"owner_name"`
	FromDate          time.Time  `json:"from_date"`
	ToDate            *time.Time `json:"to_date,omitempty"`
	DocumentReference string     `json:"document_reference,omitempty"`
}

func (r OwnershipRecord) IsOpen() bool {
	return r.ToDate == nil
}

// SourceDocument is a pointer to a paper record held in the document store.
type SourceDocument struct {
	Type               DocumentType `json:"type"`
	DocumentNumber     string       `json:"document_number,omitempty"`
	Date               time.Time    `json:"date"`
	RegistrationOffice string       `json:"registration_office,omitempty"`
	DocumentURL        string       `json:"document_url,omitempty"`
	DocumentHash       string       `json:"document_hash,omitempty"`
}

// MarketInfo is only present while the parcel is FOR_SALE or locked in a
// transaction that may still revert to FOR_SALE.
type MarketInfo struct {
	IsForSale    bool      `json:"is_for_sale"`
	AskingPrice  int64     `json:"asking_price"`
	PricePerSqft float64   `json:"price_per_sqft"`
	ListedDate   time.Time `json:"listed_date"`
	Description  string    `json:"description"`
	Images       []string  `json:"images"`
}

func (m *MarketInfo) clone() *MarketInfo {
	if m == nil {
		return nil
	}
	c := *m
	c.Images = append([]string(nil), m.Images...)
	return &c
}

// DigitalDocument is set once by an admin and never reset.
type DigitalDocument struct {
	IsDigitalized   bool       `json:"is_digitalized"`
	CertificateURL  string     `json:"certificate_url,omitempty"`
	CertificateHash string     `json:"certificate_hash,omitempty"`
	QRCode          string     `json:"qr_code,omitempty"`
	GeneratedDate   *time.Time `json:"generated_date,omitempty"`
}

// Land is the aggregate root for a physical parcel.
//
// Invariants:
//   - AssetID is set at creation and never changes
//   - Status changes only along statusTransitions
//   - OwnershipHistory is append-only; at most one entry is open and it
//     belongs to CurrentOwner
//   - MarketInfo is nil unless the parcel is listed
//   - DigitalDocument.IsDigitalized never reverts to false
//   - Version increases by one on every persisted write
type Land struct {
	ID                 id.LandID          `json:"land_id"`
	AssetID            string             `json:"asset_id"`
	Location           Location           `json:"location"`
	Boundaries         Boundaries         `json:"boundaries"`
	Area               Area               `json:"area"`
	LandType           LandType           `json:"land_type"`
	Classification     Classification     `json:"classification,omitempty"`
	CurrentOwner       id.UserID          `json:"current_owner,omitzero"`
	OwnershipHistory   []OwnershipRecord  `json:"ownership_history"`
	OriginalDocuments  []SourceDocument   `json:"original_documents"`
	MarketInfo         *MarketInfo        `json:"market_info,omitempty"`
	Status             Status             `json:"status"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	VerifiedBy         id.UserID          `json:"verified_by,omitzero"`
	DigitalDocument    DigitalDocument    `json:"digital_document"`
	AddedBy            id.UserID          `json:"added_by"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	Version            int64              `json:"version"`
}

// RegistrationParams are the admin-supplied facts of a new parcel record.
type RegistrationParams struct {
	Location          Location
	Boundaries        Boundaries
	Area              Area
	LandType          LandType
	Classification    Classification
	OriginalDocuments []SourceDocument
}

// NewLand builds an unclaimed, unverified, AVAILABLE parcel.
func NewLand(landID id.LandID, assetID string, p RegistrationParams, addedBy id.UserID, now time.Time) (*Land, error) {
	if assetID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "asset id is required")
	}
	loc := p.Location.Normalize()
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if err := p.Area.Validate(); err != nil {
		return nil, err
	}
	if !p.LandType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid land type")
	}
	if !p.Classification.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid classification")
	}
	for _, doc := range p.OriginalDocuments {
		if !doc.Type.IsValid() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid document type")
		}
	}
	return &Land{
		ID:                 landID,
		AssetID:            assetID,
		Location:           loc,
		Boundaries:         p.Boundaries,
		Area:               p.Area,
		LandType:           p.LandType,
		Classification:     p.Classification,
		OwnershipHistory:   []OwnershipRecord{},
		OriginalDocuments:  append([]SourceDocument{}, p.OriginalDocuments...),
		Status:             StatusAvailable,
		VerificationStatus: VerificationPending,
		AddedBy:            addedBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (l *Land) IsClaimed() bool {
	return !l.CurrentOwner.IsNil()
}

func (l *Land) IsOwnedBy(userID id.UserID) bool {
	return l.IsClaimed() && l.CurrentOwner == userID
}

// transition moves the parcel along statusTransitions or fails with
// CodeInvalidTransition. Every status change goes through here.
func (l *Land) transition(next Status, now time.Time) error {
	if !l.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"land cannot move from "+string(l.Status)+" to "+string(next))
	}
	l.Status = next
	l.UpdatedAt = now
	return nil
}

// CanClaim checks an unclaimed, AVAILABLE parcel.
func (l *Land) CanClaim() error {
	if l.IsClaimed() {
		return dErrors.New(dErrors.CodeAlreadyOwned, "land already has an owner")
	}
	if l.Status != StatusAvailable {
		return dErrors.New(dErrors.CodeInvalidState, "land is not available to claim")
	}
	return nil
}

// ApplyClaim records the first owner. Status is unchanged.
func (l *Land) ApplyClaim(owner id.UserID, ownerName, documentRef string, now time.Time) {
	l.CurrentOwner = owner
	l.OwnershipHistory = append(l.OwnershipHistory, OwnershipRecord{
		Owner:             owner,
		OwnerName:         ownerName,
		FromDate:          now,
		DocumentReference: documentRef,
	})
	l.UpdatedAt = now
}

func (l *Land) requireOwner(actor id.UserID) error {
	if !l.IsOwnedBy(actor) {
		return dErrors.New(dErrors.CodeNotOwner, "caller does not own this land")
	}
	return nil
}

func (l *Land) CanList(actor id.UserID) error {
	if err := l.requireOwner(actor); err != nil {
		return err
	}
	if l.Status != StatusAvailable {
		return dErrors.New(dErrors.CodeInvalidState, "land must be AVAILABLE to list")
	}
	return nil
}

// ApplyListing opens a marketplace listing and moves the parcel to FOR_SALE.
func (l *Land) ApplyListing(askingPrice int64, description string, images []string, now time.Time) error {
	if err := l.transition(StatusForSale, now); err != nil {
		return err
	}
	l.MarketInfo = &MarketInfo{
		IsForSale:    true,
		AskingPrice:  askingPrice,
		PricePerSqft: pricePerSqft(askingPrice, l.Area),
		ListedDate:   now,
		Description:  description,
		Images:       append([]string{}, images...),
	}
	return nil
}

func (l *Land) CanEditListing(actor id.UserID) error {
	if err := l.requireOwner(actor); err != nil {
		return err
	}
	if l.Status != StatusForSale || l.MarketInfo == nil {
		return dErrors.New(dErrors.CodeInvalidState, "land is not listed for sale")
	}
	return nil
}

// ListingUpdate carries optional marketInfo changes. Nil fields are untouched.
type ListingUpdate struct {
	AskingPrice *int64
	Description *string
	Images      *[]string
}

// ApplyListingEdit changes marketInfo only; location, area and type are never touched.
func (l *Land) ApplyListingEdit(u ListingUpdate, now time.Time) {
	if u.AskingPrice != nil {
		l.MarketInfo.AskingPrice = *u.AskingPrice
		l.MarketInfo.PricePerSqft = pricePerSqft(*u.AskingPrice, l.Area)
	}
	if u.Description != nil {
		l.MarketInfo.Description = *u.Description
	}
	if u.Images != nil {
		l.MarketInfo.Images = append([]string{}, (*u.Images)...)
	}
	l.UpdatedAt = now
}

func (l *Land) CanRemoveListing(actor id.UserID) error {
	return l.CanEditListing(actor)
}

// ApplyListingRemoval clears marketInfo and returns the parcel to AVAILABLE.
// The caller must have confirmed no active buy request exists.
func (l *Land) ApplyListingRemoval(now time.Time) error {
	if err := l.transition(StatusAvailable, now); err != nil {
		return err
	}
	l.MarketInfo = nil
	return nil
}

// CanLock checks the parcel can be locked for a buy request raised against seller.
func (l *Land) CanLock(seller id.UserID) error {
	if l.Status != StatusForSale {
		return dErrors.New(dErrors.CodeInvalidState, "land is not listed for sale")
	}
	if !l.IsOwnedBy(seller) {
		return dErrors.New(dErrors.CodeIntegrityViolation, "buy request seller is not the current owner")
	}
	return nil
}

// ApplyLock moves a listed parcel into UNDER_TRANSACTION.
func (l *Land) ApplyLock(now time.Time) error {
	return l.transition(StatusUnderTransaction, now)
}

// ApplyTransfer hands the parcel to buyer: the open tenure is closed, a new
// one is appended, the listing is cleared, and the parcel passes through SOLD
// back to AVAILABLE.
func (l *Land) ApplyTransfer(buyer id.UserID, buyerName, documentRef string, now time.Time) error {
	if err := l.transition(StatusSold, now); err != nil {
		return err
	}
	for i := range l.OwnershipHistory {
		if l.OwnershipHistory[i].IsOpen() {
			closedAt := now
			l.OwnershipHistory[i].ToDate = &closedAt
		}
	}
	l.OwnershipHistory = append(l.OwnershipHistory, OwnershipRecord{
		Owner:             buyer,
		OwnerName:         buyerName,
		FromDate:          now,
		DocumentReference: documentRef,
	})
	l.CurrentOwner = buyer
	l.MarketInfo = nil
	return l.transition(StatusAvailable, now)
}

// ApplyRevertToListing unlocks the parcel after a rejected transfer. The
// listing is restored exactly as it was.
func (l *Land) ApplyRevertToListing(now time.Time) error {
	return l.transition(StatusForSale, now)
}

func (l *Land) CanDispute() error {
	if l.Status == StatusDisputed {
		return dErrors.New(dErrors.CodeInvalidState, "land is already disputed")
	}
	return nil
}

func (l *Land) ApplyDispute(now time.Time) error {
	return l.transition(StatusDisputed, now)
}

func (l *Land) CanResolveDispute() error {
	if l.Status != StatusDisputed {
		return dErrors.New(dErrors.CodeInvalidState, "land is not disputed")
	}
	return nil
}

// ApplyDisputeResolution returns the parcel to AVAILABLE without a listing.
func (l *Land) ApplyDisputeResolution(now time.Time) error {
	if err := l.transition(StatusAvailable, now); err != nil {
		return err
	}
	l.MarketInfo = nil
	return nil
}

// ApplyDigitalization records the certificate. It reports false when the
// parcel was already digitalized, in which case nothing changes.
func (l *Land) ApplyDigitalization(doc DigitalDocument, now time.Time) bool {
	if l.DigitalDocument.IsDigitalized {
		return false
	}
	generated := now
	doc.IsDigitalized = true
	doc.GeneratedDate = &generated
	l.DigitalDocument = doc
	l.UpdatedAt = now
	return true
}

func (l *Land) CanVerify(decision VerificationStatus) error {
	if decision != VerificationVerified && decision != VerificationRejected {
		return dErrors.New(dErrors.CodeInvariantViolation, "decision must be VERIFIED or REJECTED")
	}
	if l.VerificationStatus != VerificationPending {
		return dErrors.New(dErrors.CodeInvalidState, "land verification is not pending")
	}
	return nil
}

func (l *Land) ApplyVerification(decision VerificationStatus, admin id.UserID, now time.Time) {
	l.VerificationStatus = decision
	l.VerifiedBy = admin
	l.UpdatedAt = now
}

func (l *Land) CanUpdateRecord() error {
	if l.VerificationStatus == VerificationVerified {
		return dErrors.New(dErrors.CodeInvalidState, "verified land records are immutable")
	}
	return nil
}

// RecordUpdate carries admin corrections to an unverified record.
type RecordUpdate struct {
	Location       *Location
	Boundaries     *Boundaries
	Area           *Area
	LandType       *LandType
	Classification *Classification
}

// ApplyRecordUpdate validates and applies corrections. A rejected record goes
// back to PENDING review.
func (l *Land) ApplyRecordUpdate(u RecordUpdate, now time.Time) error {
	next := *l
	if u.Location != nil {
		loc := u.Location.Normalize()
		if err := loc.Validate(); err != nil {
			return err
		}
		next.Location = loc
	}
	if u.Area != nil {
		if err := u.Area.Validate(); err != nil {
			return err
		}
		next.Area = *u.Area
	}
	if u.LandType != nil {
		if !u.LandType.IsValid() {
			return dErrors.New(dErrors.CodeInvariantViolation, "invalid land type")
		}
		next.LandType = *u.LandType
	}
	if u.Classification != nil {
		if !u.Classification.IsValid() {
			return dErrors.New(dErrors.CodeInvariantViolation, "invalid classification")
		}
		next.Classification = *u.Classification
	}
	if u.Boundaries != nil {
		next.Boundaries = *u.Boundaries
	}
	l.Location = next.Location
	l.Area = next.Area
	l.LandType = next.LandType
	l.Classification = next.Classification
	l.Boundaries = next.Boundaries
	if l.MarketInfo != nil {
		l.MarketInfo.PricePerSqft = pricePerSqft(l.MarketInfo.AskingPrice, l.Area)
	}
	if l.VerificationStatus == VerificationRejected {
		l.VerificationStatus = VerificationPending
		l.VerifiedBy = id.UserID{}
	}
	l.UpdatedAt = now
	return nil
}

// CheckOwnership verifies the history invariant: at most one open tenure and,
// if the parcel is claimed, it belongs to CurrentOwner.
func (l *Land) CheckOwnership() error {
	var open []OwnershipRecord
	for _, r := range l.OwnershipHistory {
		if r.IsOpen() {
			open = append(open, r)
		}
	}
	switch {
	case len(open) > 1:
		return dErrors.New(dErrors.CodeIntegrityViolation, "ownership history has more than one open tenure")
	case !l.IsClaimed() && len(open) == 1:
		return dErrors.New(dErrors.CodeIntegrityViolation, "unclaimed land has an open tenure")
	case l.IsClaimed() && (len(open) == 0 || open[0].Owner != l.CurrentOwner):
		return dErrors.New(dErrors.CodeIntegrityViolation, "open tenure does not match current owner")
	}
	return nil
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (l *Land) Clone() *Land {
	if l == nil {
		return nil
	}
	c := *l
	c.OwnershipHistory = make([]OwnershipRecord, len(l.OwnershipHistory))
	for i, r := range l.OwnershipHistory {
		if r.ToDate != nil {
			to := *r.ToDate
			r.ToDate = &to
		}
		c.OwnershipHistory[i] = r
	}
	c.OriginalDocuments = append([]SourceDocument{}, l.OriginalDocuments...)
	c.MarketInfo = l.MarketInfo.clone()
	if l.DigitalDocument.GeneratedDate != nil {
		g := *l.DigitalDocument.GeneratedDate
		c.DigitalDocument.GeneratedDate = &g
	}
	return &c
}

func pricePerSqft(askingPrice int64, area Area) float64 {
	sqft := area.TotalSqft()
	if sqft <= 0 {
		return 0
	}
	return float64(askingPrice) / sqft
}
