package handler

import (
	"net/http"
	"strconv"

	"landledger/internal/land/models"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

// ParseFilter reads registry and marketplace search parameters from the
// query string. Enum values are checked by the services.
func ParseFilter(r *http.Request) (models.LandFilter, error) {
	q := r.URL.Query()
	f := models.LandFilter{
		State:              q.Get("state"),
		District:           q.Get("district"),
		Taluka:             q.Get("taluka"),
		Village:            q.Get("village"),
		SurveyNumber:       q.Get("survey_number"),
		LandType:           models.LandType(q.Get("land_type")),
		Status:             models.Status(q.Get("status")),
		VerificationStatus: models.VerificationStatus(q.Get("verification_status")),
	}
	if owner := q.Get("owner"); owner != "" {
		ownerID, err := id.ParseUserID(owner)
		if err != nil {
			return f, err
		}
		f.Owner = ownerID
	}

	ints := []struct {
		name   string
		target *int64
	}{
		{"min_price", &f.MinPrice},
		{"max_price", &f.MaxPrice},
	}
	for _, p := range ints {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return f, dErrors.New(dErrors.CodeValidation, "invalid "+p.name)
			}
			*p.target = n
		}
	}
	for name, target := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, dErrors.New(dErrors.CodeValidation, "invalid "+name)
			}
			*target = n
		}
	}
	return f, nil
}
