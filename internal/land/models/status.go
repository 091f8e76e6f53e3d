package models

// Status is the marketplace lifecycle state of a parcel.
type Status string

const (
	StatusAvailable        Status = "AVAILABLE"
	StatusForSale          Status = "FOR_SALE"
	StatusUnderTransaction Status = "UNDER_TRANSACTION"
	StatusSold             Status = "SOLD"
	StatusDisputed         Status = "DISPUTED"
)

// statusTransitions is the single source of truth for legal Status changes.
//
//	AVAILABLE         -> FOR_SALE            listing created
//	FOR_SALE          -> UNDER_TRANSACTION   seller confirmed a buy request
//	FOR_SALE          -> AVAILABLE           listing withdrawn
//	UNDER_TRANSACTION -> SOLD                admin approved transfer
//	UNDER_TRANSACTION -> FOR_SALE            admin rejected transfer
//	SOLD              -> AVAILABLE           new owner holds an unlisted parcel
//	any other         -> DISPUTED            admin override
//	DISPUTED          -> AVAILABLE           admin resolution
var statusTransitions = map[Status][]Status{
	StatusAvailable:        {StatusForSale, StatusDisputed},
	StatusForSale:          {StatusUnderTransaction, StatusAvailable, StatusDisputed},
	StatusUnderTransaction: {StatusSold, StatusForSale, StatusDisputed},
	StatusSold:             {StatusAvailable, StatusDisputed},
	StatusDisputed:         {StatusAvailable},
}

func (s Status) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransitionTo reports whether s -> next is in the transition table.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// VerificationStatus records administrative confidence in the paper record.
// It is independent of Status.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

func (v VerificationStatus) IsValid() bool {
	switch v {
	case VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

type LandType string

const (
	LandTypeAgricultural LandType = "AGRICULTURAL"
	LandTypeResidential  LandType = "RESIDENTIAL"
	LandTypeCommercial   LandType = "COMMERCIAL"
	LandTypeIndustrial   LandType = "INDUSTRIAL"
	LandTypeGovernment   LandType = "GOVERNMENT"
)

func (t LandType) IsValid() bool {
	switch t {
	case LandTypeAgricultural, LandTypeResidential, LandTypeCommercial, LandTypeIndustrial, LandTypeGovernment:
		return true
	}
	return false
}

type Classification string

const (
	ClassificationDry    Classification = "DRY"
	ClassificationWet    Classification = "WET"
	ClassificationGarden Classification = "GARDEN"
	ClassificationInam   Classification = "INAM"
	ClassificationSarkar Classification = "SARKAR"
)

// IsValid accepts the empty value; classification is optional.
func (c Classification) IsValid() bool {
	switch c {
	case "", ClassificationDry, ClassificationWet, ClassificationGarden, ClassificationInam, ClassificationSarkar:
		return true
	}
	return false
}

type DocumentType string

const (
	DocumentSaleDeed         DocumentType = "SALE_DEED"
	DocumentPatta            DocumentType = "PATTA"
	DocumentKhata            DocumentType = "KHATA"
	DocumentSurveySettlement DocumentType = "SURVEY_SETTLEMENT"
	DocumentMutation         DocumentType = "MUTATION"
	DocumentOther            DocumentType = "OTHER"
)

func (d DocumentType) IsValid() bool {
	switch d {
	case DocumentSaleDeed, DocumentPatta, DocumentKhata, DocumentSurveySettlement, DocumentMutation, DocumentOther:
		return true
	}
	return false
}
