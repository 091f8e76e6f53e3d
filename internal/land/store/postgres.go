package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"landledger/internal/land/models"
	"landledger/internal/platform/postgres"
	id "landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/platform/tx"
)

const landColumns = `
	id, asset_id, state, district, taluka, village, survey_number, sub_division, pincode,
	boundaries, area_acres, area_guntas, area_sqft, land_type, classification,
	current_owner, ownership_history, original_documents,
	listed, asking_price, price_per_sqft, listed_date, listing_description, listing_images,
	status, verification_status, verified_by, digital_document, added_by,
	created_at, updated_at, version`

// PostgresStore persists lands in PostgreSQL. It joins the unit of work carried
// in ctx, if any.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, land *models.Land) error {
	row, err := toRow(land)
	if err != nil {
		return err
	}
	query := `INSERT INTO lands (` + landColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, 1)`
	_, err = tx.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		land.ID.String(), land.AssetID,
		land.Location.State, land.Location.District, land.Location.Taluka, land.Location.Village,
		land.Location.SurveyNumber, land.Location.SubDivision, land.Location.Pincode,
		row.boundaries, land.Area.Acres, land.Area.Guntas, land.Area.Sqft,
		string(land.LandType), string(land.Classification),
		nullableUser(land.CurrentOwner), row.history, row.documents,
		row.listed, row.askingPrice, row.pricePerSqft, row.listedDate, row.description, row.images,
		string(land.Status), string(land.VerificationStatus), nullableUser(land.VerifiedBy),
		row.digital, nullableUser(land.AddedBy),
		land.CreatedAt, land.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert land: %w", err)
	}
	land.Version = 1
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, landID id.LandID) (*models.Land, error) {
	query := `SELECT ` + landColumns + ` FROM lands WHERE id = $1`
	return s.findOne(ctx, query, landID.String())
}

// FindByIDForUpdate locks the land row until the surrounding transaction ends.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, landID id.LandID) (*models.Land, error) {
	query := `SELECT ` + landColumns + ` FROM lands WHERE id = $1 FOR UPDATE`
	return s.findOne(ctx, query, landID.String())
}

func (s *PostgresStore) FindByAssetID(ctx context.Context, assetID string) (*models.Land, error) {
	query := `SELECT ` + landColumns + ` FROM lands WHERE asset_id = $1`
	return s.findOne(ctx, query, assetID)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Land, error) {
	land, err := scanLand(tx.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find land: %w", err)
	}
	return land, nil
}

// Update writes every mutable column when the stored version still equals
// land.Version, then bumps land.Version.
func (s *PostgresStore) Update(ctx context.Context, land *models.Land) error {
	row, err := toRow(land)
	if err != nil {
		return err
	}
	query := `
		UPDATE lands SET
			state = $3, district = $4, taluka = $5, village = $6, survey_number = $7,
			sub_division = $8, pincode = $9, boundaries = $10,
			area_acres = $11, area_guntas = $12, area_sqft = $13,
			land_type = $14, classification = $15, current_owner = $16,
			ownership_history = $17, original_documents = $18,
			listed = $19, asking_price = $20, price_per_sqft = $21, listed_date = $22,
			listing_description = $23, listing_images = $24,
			status = $25, verification_status = $26, verified_by = $27,
			digital_document = $28, updated_at = $29, version = version + 1
		WHERE id = $1 AND version = $2
	`
	exec := tx.ExecutorFor(ctx, s.db)
	res, err := exec.ExecContext(ctx, query,
		land.ID.String(), land.Version,
		land.Location.State, land.Location.District, land.Location.Taluka, land.Location.Village,
		land.Location.SurveyNumber, land.Location.SubDivision, land.Location.Pincode, row.boundaries,
		land.Area.Acres, land.Area.Guntas, land.Area.Sqft,
		string(land.LandType), string(land.Classification), nullableUser(land.CurrentOwner),
		row.history, row.documents,
		row.listed, row.askingPrice, row.pricePerSqft, row.listedDate,
		row.description, row.images,
		string(land.Status), string(land.VerificationStatus), nullableUser(land.VerifiedBy),
		row.digital, land.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update land: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update land rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM lands WHERE id = $1)`, land.ID.String()).Scan(&exists); err != nil {
			return fmt.Errorf("check land exists: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	land.Version++
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, filter models.LandFilter) ([]*models.Land, error) {
	filter.Normalize()

	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.State != "" {
		add("lower(state) = lower($%d)", filter.State)
	}
	if filter.District != "" {
		add("lower(district) = lower($%d)", filter.District)
	}
	if filter.Taluka != "" {
		add("lower(taluka) = lower($%d)", filter.Taluka)
	}
	if filter.Village != "" {
		add("lower(village) = lower($%d)", filter.Village)
	}
	if filter.SurveyNumber != "" {
		add("lower(survey_number) = lower($%d)", filter.SurveyNumber)
	}
	if filter.LandType != "" {
		add("land_type = $%d", string(filter.LandType))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.VerificationStatus != "" {
		add("verification_status = $%d", string(filter.VerificationStatus))
	}
	if !filter.Owner.IsNil() {
		add("current_owner = $%d", filter.Owner.String())
	}
	if filter.MinPrice > 0 || filter.MaxPrice > 0 {
		where = append(where, "listed")
	}
	if filter.MinPrice > 0 {
		add("asking_price >= $%d", filter.MinPrice)
	}
	if filter.MaxPrice > 0 {
		add("asking_price <= $%d", filter.MaxPrice)
	}

	query := `SELECT ` + landColumns + ` FROM lands`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, asset_id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return s.queryLands(ctx, query, args...)
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []id.LandID) ([]*models.Land, error) {
	if len(ids) == 0 {
		return []*models.Land{}, nil
	}
	raw := make([]string, len(ids))
	for i, landID := range ids {
		raw[i] = landID.String()
	}
	lands, err := s.queryLands(ctx, `SELECT `+landColumns+` FROM lands WHERE id = ANY($1::uuid[])`, pq.Array(raw))
	if err != nil {
		return nil, err
	}
	byID := make(map[id.LandID]*models.Land, len(lands))
	for _, l := range lands {
		byID[l.ID] = l
	}
	out := make([]*models.Land, 0, len(lands))
	for _, landID := range ids {
		if l, ok := byID[landID]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *PostgresStore) queryLands(ctx context.Context, query string, args ...any) ([]*models.Land, error) {
	rows, err := tx.ExecutorFor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lands: %w", err)
	}
	defer rows.Close()

	lands := make([]*models.Land, 0)
	for rows.Next() {
		land, err := scanLand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan land: %w", err)
		}
		lands = append(lands, land)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lands: %w", err)
	}
	return lands, nil
}

type landRow struct {
	boundaries   []byte
	history      []byte
	documents    []byte
	digital      []byte
	listed       bool
	askingPrice  sql.NullInt64
	pricePerSqft sql.NullFloat64
	listedDate   sql.NullTime
	description  sql.NullString
	images       pq.StringArray
}

func toRow(land *models.Land) (*landRow, error) {
	var (
		row landRow
		err error
	)
	if row.boundaries, err = json.Marshal(land.Boundaries); err != nil {
		return nil, fmt.Errorf("marshal boundaries: %w", err)
	}
	if row.history, err = json.Marshal(land.OwnershipHistory); err != nil {
		return nil, fmt.Errorf("marshal ownership history: %w", err)
	}
	if row.documents, err = json.Marshal(land.OriginalDocuments); err != nil {
		return nil, fmt.Errorf("marshal documents: %w", err)
	}
	if row.digital, err = json.Marshal(land.DigitalDocument); err != nil {
		return nil, fmt.Errorf("marshal digital document: %w", err)
	}
	if m := land.MarketInfo; m != nil {
		row.listed = m.IsForSale
		row.askingPrice = sql.NullInt64{Int64: m.AskingPrice, Valid: true}
		row.pricePerSqft = sql.NullFloat64{Float64: m.PricePerSqft, Valid: true}
		row.listedDate = sql.NullTime{Time: m.ListedDate, Valid: true}
		row.description = sql.NullString{String: m.Description, Valid: true}
		row.images = pq.StringArray(m.Images)
		if row.images == nil {
			row.images = pq.StringArray{}
		}
	}
	return &row, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLand(sc rowScanner) (*models.Land, error) {
	var (
		land                       models.Land
		landID                     uuid.UUID
		landType, classification   string
		status, verification       string
		owner, verifiedBy, addedBy uuid.NullUUID
		row                        landRow
	)
	err := sc.Scan(
		&landID, &land.AssetID,
		&land.Location.State, &land.Location.District, &land.Location.Taluka, &land.Location.Village,
		&land.Location.SurveyNumber, &land.Location.SubDivision, &land.Location.Pincode,
		&row.boundaries, &land.Area.Acres, &land.Area.Guntas, &land.Area.Sqft,
		&landType, &classification,
		&owner, &row.history, &row.documents,
		&row.listed, &row.askingPrice, &row.pricePerSqft, &row.listedDate, &row.description, &row.images,
		&status, &verification, &verifiedBy, &row.digital, &addedBy,
		&land.CreatedAt, &land.UpdatedAt, &land.Version,
	)
	if err != nil {
		return nil, err
	}
	land.ID = id.LandID(landID)
	land.LandType = models.LandType(landType)
	land.Classification = models.Classification(classification)
	land.Status = models.Status(status)
	land.VerificationStatus = models.VerificationStatus(verification)
	if owner.Valid {
		land.CurrentOwner = id.UserID(owner.UUID)
	}
	if verifiedBy.Valid {
		land.VerifiedBy = id.UserID(verifiedBy.UUID)
	}
	if addedBy.Valid {
		land.AddedBy = id.UserID(addedBy.UUID)
	}
	if err := json.Unmarshal(row.boundaries, &land.Boundaries); err != nil {
		return nil, fmt.Errorf("unmarshal boundaries: %w", err)
	}
	if err := json.Unmarshal(row.history, &land.OwnershipHistory); err != nil {
		return nil, fmt.Errorf("unmarshal ownership history: %w", err)
	}
	if err := json.Unmarshal(row.documents, &land.OriginalDocuments); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	if err := json.Unmarshal(row.digital, &land.DigitalDocument); err != nil {
		return nil, fmt.Errorf("unmarshal digital document: %w", err)
	}
	if row.askingPrice.Valid {
		land.MarketInfo = &models.MarketInfo{
			IsForSale:    row.listed,
			AskingPrice:  row.askingPrice.Int64,
			PricePerSqft: row.pricePerSqft.Float64,
			ListedDate:   row.listedDate.Time,
			Description:  row.description.String,
			Images:       []string(row.images),
		}
		if land.MarketInfo.Images == nil {
			land.MarketInfo.Images = []string{}
		}
	}
	return &land, nil
}

func nullableUser(userID id.UserID) any {
	if userID.IsNil() {
		return nil
	}
	return userID.String()
}
