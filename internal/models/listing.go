package models

import (
	"time"

	"github.com/google/uuid"
)

// Listing types. "lease" covers LH subsidized rentals, "sale" covers
// general pre-sales and cooperative member recruitment, "unsold" covers
// re-sale of unsold units (the investment-signal subset).
const (
	TypeLease  = "lease"
	TypeSale   = "sale"
	TypeUnsold = "unsold"
)

type Listing struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Location      string    `json:"location"`
	FullAddress   string    `json:"full_address"`
	Region        string    `json:"region"`
	Builder       string    `json:"builder"`
	HouseholdCount int      `json:"household_count"`
	AreaRange     string    `json:"area_range"` // e.g. "59㎡~84㎡"
	AreaSize      float64   `json:"area_size"`  // representative exclusive area, ㎡
	ContactNumber string    `json:"contact_number"`

	// Price is free text ("2억 6,127만원 ~ 2억 7,795만원"); the bounds are
	// derived from it by the price normalizer and never authored directly.
	PriceLabel   string  `json:"price_label"`
	PriceText    string  `json:"price_text"`
	SalePriceMin float64 `json:"sale_price_min"` // 억 units
	SalePriceMax float64 `json:"sale_price_max"`

	Deadline     *time.Time `json:"deadline"`      // derived on admin save / ingest
	AnnounceDate *time.Time `json:"announce_date"` // notice publication date

	// Trade-price enrichment (investment signal).
	ApartmentName    string     `json:"apartment_name"`
	SigunguCode      string     `json:"sigungu_code"`
	OriginalPrice    float64    `json:"original_price"` // original sale price, 억
	SalePriceDate    string     `json:"sale_price_date"`
	RecentTradePrice float64    `json:"recent_trade_price"` // 억
	RecentTradeDate  string     `json:"recent_trade_date"`
	ExpectedMargin   float64    `json:"expected_margin"`
	MarginRate       float64    `json:"margin_rate"`
	LastPriceUpdate  *time.Time `json:"last_price_update,omitempty"`

	Extended ExtendedData `json:"extended_data"`

	SourceID  string     `json:"source_id,omitempty"` // LH notice ID when crawled
	PDFURL    string     `json:"pdf_url,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Deleted reports whether the listing has been soft-deleted.
func (l *Listing) Deleted() bool {
	return l.DeletedAt != nil
}

// TimelineStep is one stage of the application process. Date is free text:
// a single calendar date or a closed range "start~end". A step with an
// unparseable date is excluded from stage/deadline computation but still
// rendered.
type TimelineStep struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	Details string `json:"details,omitempty"`
}

// SupplyRow is one row of the unit-supply table.
type SupplyRow struct {
	UnitType   string `json:"unit_type"` // e.g. "59A"
	Area       string `json:"area"`      // e.g. "59.99㎡"
	Households int    `json:"households"`
	PriceText  string `json:"price_text"`
}

// DetailSection is a free-text section of the notice body.
type DetailSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NearbyApartment is a matcher candidate the operator chose to display.
type NearbyApartment struct {
	Name        string  `json:"name"`
	RecentPrice float64 `json:"recent_price"` // 억
	TradeDate   string  `json:"trade_date"`
	Dong        string  `json:"dong,omitempty"`
}

// ExtendedData is the semi-structured document stored alongside the
// listing's columns. It is deserialized once at the store boundary with
// defaults filled there, not at each consumer.
type ExtendedData struct {
	TargetAudience []string          `json:"target_audience,omitempty"`
	Steps          []TimelineStep    `json:"steps,omitempty"`
	SupplyRows     []SupplyRow       `json:"supply_rows,omitempty"`
	Sections       []DetailSection   `json:"sections,omitempty"`
	Nearby         []NearbyApartment `json:"nearby,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
}

// PriceBounds is a parsed min/max pair in 억 units. Both zero means the
// source text was unparseable and only the raw text should be displayed.
type PriceBounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Parsed reports whether the bounds carry a usable value.
func (b PriceBounds) Parsed() bool {
	return b.Min > 0 || b.Max > 0
}

// TransactionRecord is one real-transaction data point from the MOLIT
// open API. DealAmount is in 억 units, converted from the API's 만원.
type TransactionRecord struct {
	ApartmentName string  `json:"apartment_name"`
	ExclusiveArea float64 `json:"exclusive_area"` // ㎡
	DealAmount    float64 `json:"deal_amount"`    // 억
	DealDate      string  `json:"deal_date"`      // "2025-06-12"
	Floor         int     `json:"floor"`
	Dong          string  `json:"dong"` // 법정동
}

// MatchResult is one scored candidate from the transaction matcher.
// Not persisted unless the operator explicitly saves it.
type MatchResult struct {
	ApartmentName string  `json:"apartment_name"`
	Score         float64 `json:"score"`
	RecentPrice   float64 `json:"recent_price"` // 억
	RecentDate    string  `json:"recent_date"`
	TradeCount    int     `json:"trade_count"`
	Dong          string  `json:"dong,omitempty"`
}
