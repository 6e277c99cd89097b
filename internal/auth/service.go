package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/junho/bunyang-finder/internal/models"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidCreds = errors.New("invalid credentials")

	jwtSecretOnce    sync.Once
	jwtSecretRuntime []byte
	jwtSecretErr     error
)

func jwtSecretFromEnv() ([]byte, error) {
	jwtSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
		if secret != "" {
			jwtSecretRuntime = []byte(secret)
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			jwtSecretErr = fmt.Errorf("failed to generate JWT fallback secret: %w", err)
			return
		}

		jwtSecretRuntime = []byte(base64.RawURLEncoding.EncodeToString(buf))
		log.Print("JWT_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if jwtSecretErr != nil {
		return nil, jwtSecretErr
	}
	if len(jwtSecretRuntime) == 0 {
		return nil, errors.New("JWT secret unavailable")
	}

	return jwtSecretRuntime, nil
}

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", req.Email).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}

	var user User
	err = s.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, email, created_at
	`, req.Email, string(hash)).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert failed: %w", err)
	}

	token, err := generateToken(user.ID)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: user}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var user User
	err := s.db.QueryRow(ctx, "SELECT id, email, password_hash, created_at FROM users WHERE email = $1", req.Email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrInvalidCreds
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCreds
	}

	token, err := generateToken(user.ID)
	if err != nil {
		return nil, err
	}

	// Clear hash before returning
	user.PasswordHash = ""
	return &AuthResponse{Token: token, User: user}, nil
}

func generateToken(userID uuid.UUID) (string, error) {
	secretKey, err := jwtSecretFromEnv()
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey)
}

// Saved listings

func (s *Service) SaveListing(ctx context.Context, userID, listingID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO saved_listings (user_id, listing_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, listing_id) DO NOTHING
	`, userID, listingID)
	return err
}

func (s *Service) UnsaveListing(ctx context.Context, userID, listingID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM saved_listings
		WHERE user_id = $1 AND listing_id = $2
	`, userID, listingID)
	return err
}

// GetSavedListings returns the user's saved listings, most recently
// saved first. Soft-deleted listings stay out of the result without
// being silently unsaved.
func (s *Service) GetSavedListings(ctx context.Context, userID uuid.UUID) ([]models.Listing, error) {
	rows, err := s.db.Query(ctx, `
		SELECT l.id, l.type, l.title, l.location, l.full_address, l.region, l.builder,
		       l.household_count, l.area_range, l.contact_number,
		       l.price_label, l.price_text, l.sale_price_min, l.sale_price_max,
		       l.deadline, l.announce_date,
		       l.recent_trade_price, l.recent_trade_date, l.expected_margin, l.margin_rate,
		       l.extended_data
		FROM listings l
		JOIN saved_listings sl ON l.id = sl.listing_id
		WHERE sl.user_id = $1 AND l.deleted_at IS NULL
		ORDER BY sl.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		var extendedRaw []byte
		err := rows.Scan(
			&l.ID, &l.Type, &l.Title, &l.Location, &l.FullAddress, &l.Region, &l.Builder,
			&l.HouseholdCount, &l.AreaRange, &l.ContactNumber,
			&l.PriceLabel, &l.PriceText, &l.SalePriceMin, &l.SalePriceMax,
			&l.Deadline, &l.AnnounceDate,
			&l.RecentTradePrice, &l.RecentTradeDate, &l.ExpectedMargin, &l.MarginRate,
			&extendedRaw,
		)
		if err != nil {
			return nil, err
		}
		if len(extendedRaw) > 0 {
			_ = json.Unmarshal(extendedRaw, &l.Extended)
		}
		listings = append(listings, l)
	}
	return listings, nil
}
