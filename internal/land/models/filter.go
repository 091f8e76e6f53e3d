package models

import (
	"strings"

	id "landledger/pkg/domain"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// LandFilter narrows registry searches and marketplace browsing. Zero fields
// match everything. Price bounds only match listed parcels.
type LandFilter struct {
	State              string
	District           string
	Taluka             string
	Village            string
	SurveyNumber       string
	LandType           LandType
	Status             Status
	VerificationStatus VerificationStatus
	Owner              id.UserID
	MinPrice           int64
	MaxPrice           int64
	Limit              int
	Offset             int
}

// Normalize trims text fields and clamps paging.
func (f *LandFilter) Normalize() {
	f.State = strings.TrimSpace(f.State)
	f.District = strings.TrimSpace(f.District)
	f.Taluka = strings.TrimSpace(f.Taluka)
	f.Village = strings.TrimSpace(f.Village)
	f.SurveyNumber = strings.TrimSpace(f.SurveyNumber)
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

func (f LandFilter) hasPriceBounds() bool {
	return f.MinPrice > 0 || f.MaxPrice > 0
}

// Matches applies the filter in memory. Location fields compare
// case-insensitively, matching the lower() comparisons in the Postgres store.
func (f LandFilter) Matches(l *Land) bool {
	if !equalFold(f.State, l.Location.State) ||
		!equalFold(f.District, l.Location.District) ||
		!equalFold(f.Taluka, l.Location.Taluka) ||
		!equalFold(f.Village, l.Location.Village) ||
		!equalFold(f.SurveyNumber, l.Location.SurveyNumber) {
		return false
	}
	if f.LandType != "" && f.LandType != l.LandType {
		return false
	}
	if f.Status != "" && f.Status != l.Status {
		return false
	}
	if f.VerificationStatus != "" && f.VerificationStatus != l.VerificationStatus {
		return false
	}
	if !f.Owner.IsNil() && f.Owner != l.CurrentOwner {
		return false
	}
	if f.hasPriceBounds() {
		if l.MarketInfo == nil {
			return false
		}
		if f.MinPrice > 0 && l.MarketInfo.AskingPrice < f.MinPrice {
			return false
		}
		if f.MaxPrice > 0 && l.MarketInfo.AskingPrice > f.MaxPrice {
			return false
		}
	}
	return true
}

func equalFold(want, got string) bool {
	return want == "" || strings.EqualFold(want, got)
}
