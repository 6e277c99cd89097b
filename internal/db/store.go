package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/junho/bunyang-finder/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type ListParams struct {
	Type          string // "lease", "sale", "unsold", or "" for all
	Region        string
	Query         string // matched against title and full_address
	MinHouseholds int
	MinArea       float64
	MaxArea       float64
	IncludeDeleted bool // admin trash view
	DeletedOnly    bool
	Limit          int // 0 means no limit; deadline ordering happens after load
	Offset         int
}

type ListResult struct {
	Listings []models.Listing `json:"listings"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// selectCols is the comprehensive column list for all queries.
const selectCols = `id, type, title, location, full_address, region, builder,
	household_count, area_range, area_size, contact_number,
	price_label, price_text, sale_price_min, sale_price_max,
	deadline, announce_date,
	apartment_name, sigungu_code, original_price, sale_price_date,
	recent_trade_price, recent_trade_date, expected_margin, margin_rate, last_price_update,
	extended_data, source_id, pdf_url, deleted_at, created_at, updated_at`

func scanListing(scan func(dest ...interface{}) error) (models.Listing, error) {
	var l models.Listing
	var sourceID *string
	var extendedRaw []byte

	err := scan(
		&l.ID, &l.Type, &l.Title, &l.Location, &l.FullAddress, &l.Region, &l.Builder,
		&l.HouseholdCount, &l.AreaRange, &l.AreaSize, &l.ContactNumber,
		&l.PriceLabel, &l.PriceText, &l.SalePriceMin, &l.SalePriceMax,
		&l.Deadline, &l.AnnounceDate,
		&l.ApartmentName, &l.SigunguCode, &l.OriginalPrice, &l.SalePriceDate,
		&l.RecentTradePrice, &l.RecentTradeDate, &l.ExpectedMargin, &l.MarginRate, &l.LastPriceUpdate,
		&extendedRaw, &sourceID, &l.PDFURL, &l.DeletedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return l, err
	}

	if sourceID != nil {
		l.SourceID = *sourceID
	}
	if len(extendedRaw) > 0 {
		_ = json.Unmarshal(extendedRaw, &l.Extended)
	}
	fillExtendedDefaults(&l.Extended)

	return l, nil
}

// fillExtendedDefaults replaces nil slices with empty ones so every
// consumer (and every JSON response) sees arrays, never null. Done once
// here at the scan boundary.
func fillExtendedDefaults(e *models.ExtendedData) {
	if e.TargetAudience == nil {
		e.TargetAudience = []string{}
	}
	if e.Steps == nil {
		e.Steps = []models.TimelineStep{}
	}
	if e.SupplyRows == nil {
		e.SupplyRows = []models.SupplyRow{}
	}
	if e.Sections == nil {
		e.Sections = []models.DetailSection{}
	}
	if e.Nearby == nil {
		e.Nearby = []models.NearbyApartment{}
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
}

func (s *Store) ListListings(ctx context.Context, params ListParams) (*ListResult, error) {
	where, args := buildListWhere(params)
	argIdx := len(args) + 1

	var total int
	countSQL := "SELECT COUNT(*) FROM listings " + where
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	// Deadline ordering is a derived notion (stage end falls back through
	// stored deadline and announce date), so it is applied by the caller
	// after resolution. The database only provides a stable base order.
	selectSQL := fmt.Sprintf("SELECT %s FROM listings %s ORDER BY created_at DESC, id", selectCols, where)

	if params.Limit > 0 {
		selectSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, params.Limit, params.Offset)
	}

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	if listings == nil {
		listings = []models.Listing{}
	}

	return &ListResult{
		Listings: listings,
		Total:    total,
		Limit:    params.Limit,
		Offset:   params.Offset,
	}, nil
}

func buildListWhere(params ListParams) (string, []interface{}) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if params.DeletedOnly {
		where += " AND deleted_at IS NOT NULL"
	} else if !params.IncludeDeleted {
		where += " AND deleted_at IS NULL"
	}

	if params.Type != "" {
		where += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, params.Type)
		argIdx++
	}
	if params.Region != "" {
		where += fmt.Sprintf(" AND region = $%d", argIdx)
		args = append(args, params.Region)
		argIdx++
	}
	if params.Query != "" {
		where += fmt.Sprintf(" AND (title ILIKE '%%' || $%d || '%%' OR full_address ILIKE '%%' || $%d || '%%')", argIdx, argIdx)
		args = append(args, strings.TrimSpace(params.Query))
		argIdx++
	}
	if params.MinHouseholds > 0 {
		where += fmt.Sprintf(" AND household_count >= $%d", argIdx)
		args = append(args, params.MinHouseholds)
		argIdx++
	}
	if params.MinArea > 0 {
		where += fmt.Sprintf(" AND area_size >= $%d", argIdx)
		args = append(args, params.MinArea)
		argIdx++
	}
	if params.MaxArea > 0 {
		where += fmt.Sprintf(" AND area_size <= $%d", argIdx)
		args = append(args, params.MaxArea)
		argIdx++
	}

	return where, args
}

func (s *Store) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	sql := fmt.Sprintf("SELECT %s FROM listings WHERE id = $1", selectCols)
	row := s.pool.QueryRow(ctx, sql, id)

	l, err := scanListing(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}
	return &l, nil
}

func (s *Store) GetListingBySourceID(ctx context.Context, sourceID string) (*models.Listing, error) {
	sql := fmt.Sprintf("SELECT %s FROM listings WHERE source_id = $1", selectCols)
	row := s.pool.QueryRow(ctx, sql, sourceID)

	l, err := scanListing(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}
	return &l, nil
}

const upsertSQL = `
	INSERT INTO listings (
		type, title, location, full_address, region, builder,
		household_count, area_range, area_size, contact_number,
		price_label, price_text, sale_price_min, sale_price_max,
		deadline, announce_date,
		apartment_name, sigungu_code, original_price, sale_price_date,
		extended_data, source_id, pdf_url
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10,
		$11, $12, $13, $14,
		$15, $16,
		$17, $18, $19, $20,
		$21::jsonb, $22, $23
	)
	ON CONFLICT (source_id) WHERE source_id IS NOT NULL DO UPDATE SET
		updated_at = NOW(),
		title = EXCLUDED.title,
		location = EXCLUDED.location,
		full_address = COALESCE(NULLIF(EXCLUDED.full_address, ''), listings.full_address),
		region = COALESCE(NULLIF(EXCLUDED.region, ''), listings.region),
		builder = COALESCE(NULLIF(EXCLUDED.builder, ''), listings.builder),
		household_count = CASE WHEN EXCLUDED.household_count > 0 THEN EXCLUDED.household_count ELSE listings.household_count END,
		area_range = COALESCE(NULLIF(EXCLUDED.area_range, ''), listings.area_range),
		price_label = COALESCE(NULLIF(EXCLUDED.price_label, ''), listings.price_label),
		price_text = COALESCE(NULLIF(EXCLUDED.price_text, ''), listings.price_text),
		sale_price_min = CASE WHEN EXCLUDED.sale_price_min > 0 THEN EXCLUDED.sale_price_min ELSE listings.sale_price_min END,
		sale_price_max = CASE WHEN EXCLUDED.sale_price_max > 0 THEN EXCLUDED.sale_price_max ELSE listings.sale_price_max END,
		deadline = COALESCE(EXCLUDED.deadline, listings.deadline),
		announce_date = COALESCE(EXCLUDED.announce_date, listings.announce_date),
		extended_data = EXCLUDED.extended_data,
		pdf_url = COALESCE(NULLIF(EXCLUDED.pdf_url, ''), listings.pdf_url),
		deleted_at = listings.deleted_at
	RETURNING id
`

// UpsertListing inserts a crawled listing or refreshes the existing row
// that shares its source_id. Soft-deleted rows stay deleted across
// re-crawls so a removed notice does not resurrect itself.
func (s *Store) UpsertListing(ctx context.Context, l *models.Listing) (string, error) {
	if strings.TrimSpace(l.SourceID) == "" {
		return "", fmt.Errorf("missing source_id (title=%s)", l.Title)
	}

	extendedJSON, err := json.Marshal(l.Extended)
	if err != nil {
		return "", fmt.Errorf("encoding extended data: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx, upsertSQL,
		l.Type, l.Title, l.Location, l.FullAddress, l.Region, l.Builder,
		l.HouseholdCount, l.AreaRange, l.AreaSize, l.ContactNumber,
		l.PriceLabel, l.PriceText, l.SalePriceMin, l.SalePriceMax,
		l.Deadline, l.AnnounceDate,
		l.ApartmentName, l.SigunguCode, l.OriginalPrice, l.SalePriceDate,
		string(extendedJSON), l.SourceID, l.PDFURL,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert failed: %w", err)
	}
	return id, nil
}

// CreateListing inserts an admin-authored listing and returns its id.
func (s *Store) CreateListing(ctx context.Context, l *models.Listing) (string, error) {
	extendedJSON, err := json.Marshal(l.Extended)
	if err != nil {
		return "", fmt.Errorf("encoding extended data: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO listings (
			type, title, location, full_address, region, builder,
			household_count, area_range, area_size, contact_number,
			price_label, price_text, sale_price_min, sale_price_max,
			deadline, announce_date,
			apartment_name, sigungu_code, original_price, sale_price_date,
			extended_data, source_id, pdf_url
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16,
			$17, $18, $19, $20,
			$21::jsonb, $22, $23
		)
		RETURNING id
	`,
		l.Type, l.Title, l.Location, l.FullAddress, l.Region, l.Builder,
		l.HouseholdCount, l.AreaRange, l.AreaSize, l.ContactNumber,
		l.PriceLabel, l.PriceText, l.SalePriceMin, l.SalePriceMax,
		l.Deadline, l.AnnounceDate,
		l.ApartmentName, l.SigunguCode, l.OriginalPrice, l.SalePriceDate,
		string(extendedJSON), nilIfEmpty(l.SourceID), l.PDFURL,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert failed: %w", err)
	}
	return id, nil
}

// UpdateListing replaces the editable fields of an existing listing.
func (s *Store) UpdateListing(ctx context.Context, id string, l *models.Listing) error {
	extendedJSON, err := json.Marshal(l.Extended)
	if err != nil {
		return fmt.Errorf("encoding extended data: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE listings SET
			updated_at = NOW(),
			type = $1, title = $2, location = $3, full_address = $4, region = $5, builder = $6,
			household_count = $7, area_range = $8, area_size = $9, contact_number = $10,
			price_label = $11, price_text = $12, sale_price_min = $13, sale_price_max = $14,
			deadline = $15, announce_date = $16,
			apartment_name = $17, sigungu_code = $18, original_price = $19, sale_price_date = $20,
			extended_data = $21::jsonb, pdf_url = $22
		WHERE id = $23
	`,
		l.Type, l.Title, l.Location, l.FullAddress, l.Region, l.Builder,
		l.HouseholdCount, l.AreaRange, l.AreaSize, l.ContactNumber,
		l.PriceLabel, l.PriceText, l.SalePriceMin, l.SalePriceMax,
		l.Deadline, l.AnnounceDate,
		l.ApartmentName, l.SigunguCode, l.OriginalPrice, l.SalePriceDate,
		string(extendedJSON), l.PDFURL, id,
	)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s not found", id)
	}
	return nil
}

// ApplyTradePrice stores a confirmed trade match on the listing.
func (s *Store) ApplyTradePrice(ctx context.Context, id, apartmentName string, recentPrice float64, recentDate string, margin, rate float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE listings SET
			updated_at = NOW(),
			apartment_name = COALESCE(NULLIF($1, ''), apartment_name),
			recent_trade_price = $2,
			recent_trade_date = $3,
			expected_margin = $4,
			margin_rate = $5,
			last_price_update = NOW()
		WHERE id = $6
	`, apartmentName, recentPrice, recentDate, margin, rate, id)
	if err != nil {
		return fmt.Errorf("trade price update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s not found", id)
	}
	return nil
}

// SetNearby replaces the nearby-apartments list inside extended_data.
func (s *Store) SetNearby(ctx context.Context, id string, nearby []models.NearbyApartment) error {
	payload, err := json.Marshal(nearby)
	if err != nil {
		return fmt.Errorf("encoding nearby list: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE listings SET
			updated_at = NOW(),
			extended_data = jsonb_set(extended_data, '{nearby}', $1::jsonb)
		WHERE id = $2
	`, string(payload), id)
	if err != nil {
		return fmt.Errorf("nearby update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s not found", id)
	}
	return nil
}

// SoftDeleteListing hides a listing from every public surface. The row
// survives for restore.
func (s *Store) SoftDeleteListing(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE listings SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s not found", id)
	}
	return nil
}

func (s *Store) RestoreListing(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE listings SET deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND deleted_at IS NOT NULL", id)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s not in trash", id)
	}
	return nil
}

// PurgeListing permanently removes a soft-deleted listing.
func (s *Store) PurgeListing(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM listings WHERE id = $1 AND deleted_at IS NOT NULL", id)
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s not in trash", id)
	}
	return nil
}

func (s *Store) GetRegions(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT DISTINCT region FROM listings WHERE deleted_at IS NULL AND region != '' ORDER BY region")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err == nil {
			regions = append(regions, r)
		}
	}
	return regions, nil
}

func (s *Store) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM listings WHERE deleted_at IS NULL").Scan(&total)
	stats["total"] = total

	var deleted int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM listings WHERE deleted_at IS NOT NULL").Scan(&deleted)
	stats["deleted"] = deleted

	var withTrade int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM listings WHERE deleted_at IS NULL AND recent_trade_price > 0").Scan(&withTrade)
	stats["with_trade_price"] = withTrade

	typeCounts := map[string]int{}
	rows, err := s.pool.Query(ctx, "SELECT type, COUNT(*) FROM listings WHERE deleted_at IS NULL GROUP BY type")
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var typ string
			var count int
			if scanErr := rows.Scan(&typ, &count); scanErr == nil {
				typeCounts[typ] = count
			}
		}
	}
	stats["type_counts"] = typeCounts

	return stats, nil
}

// nilIfEmpty returns nil for empty strings so NULL is stored in DB.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
