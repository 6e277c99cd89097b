package api

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/junho/bunyang-finder/internal/auth"
	"github.com/junho/bunyang-finder/internal/db"
	"github.com/junho/bunyang-finder/internal/ingest"
	"github.com/junho/bunyang-finder/internal/listing"
	"github.com/junho/bunyang-finder/internal/models"
	"github.com/junho/bunyang-finder/internal/trade"
)

type Server struct {
	Store       *db.Store
	AuthService *auth.Service
	Echo        *echo.Echo
	DB          *pgxpool.Pool
	Matcher     *trade.Matcher
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(pool *pgxpool.Pool) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:5173"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		DB:          pool,
		Store:       db.NewStore(pool),
		AuthService: auth.NewService(pool),
		Echo:        e,
		Matcher:     trade.NewMatcher(trade.NewMolitClient(os.Getenv("MOLIT_SERVICE_KEY"))),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/listings", s.handleListListings)
	api.GET("/listings/:id", s.handleGetListing)
	api.GET("/regions", s.handleGetRegions)
	api.GET("/stats", s.handleGetStats)

	// Auth Routes
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Protected Routes (Saved Listings)
	saved := api.Group("/saved")
	saved.Use(auth.Middleware)
	saved.POST("/:id", s.handleSaveListing)
	saved.DELETE("/:id", s.handleUnsaveListing)
	saved.GET("", s.handleGetSavedListings)

	// Admin Routes (listing CRUD, crawl, trade enrichment)
	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.GET("/trash", s.handleGetTrash)
	admin.POST("/listings", s.handleCreateListing)
	admin.PATCH("/listings/:id", s.handleUpdateListing)
	admin.DELETE("/listings/:id", s.handleDeleteListing)
	admin.POST("/listings/:id/restore", s.handleRestoreListing)
	admin.DELETE("/listings/:id/purge", s.handlePurgeListing)
	admin.POST("/listings/:id/match-trades", s.handleMatchTrades)
	admin.POST("/listings/:id/apply-trade", s.handleApplyTrade)
	admin.POST("/listings/:id/nearby", s.handleSetNearby)
	admin.POST("/crawl/lh", s.handleCrawlLH)
	admin.POST("/crawl/all", s.handleCrawlAll)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// listingView is a listing plus the per-read derivations the frontend
// renders: the effective deadline (which may differ from the stored
// column), the countdown, and the current application stage.
type listingView struct {
	models.Listing
	EffectiveDeadline time.Time `json:"effective_deadline"`
	DaysRemaining     int       `json:"days_remaining"`
	CurrentStage      string    `json:"current_stage,omitempty"`
}

func viewOf(r listing.Resolved, now time.Time) listingView {
	v := listingView{
		Listing:           *r.Listing,
		EffectiveDeadline: r.Deadline,
		DaysRemaining:     r.DaysRemaining(now),
	}
	if r.Stage != nil {
		v.CurrentStage = r.Stage.Title
	}
	return v
}

func (s *Server) handleListListings(c echo.Context) error {
	params := db.ListParams{
		Type:   c.QueryParam("type"),
		Region: c.QueryParam("region"),
		Query:  c.QueryParam("q"),
	}
	if v, err := strconv.Atoi(c.QueryParam("min_households")); err == nil && v > 0 {
		params.MinHouseholds = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("min_area"), 64); err == nil && v > 0 {
		params.MinArea = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("max_area"), 64); err == nil && v > 0 {
		params.MaxArea = v
	}

	limit := 20
	offset := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}

	// Load every row matching the structural filters; visibility and
	// deadline order are resolver decisions, so pagination has to happen
	// after resolution, not in SQL.
	result, err := s.Store.ListListings(c.Request().Context(), params)
	if err != nil {
		c.Logger().Errorf("Failed to list listings: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	now := time.Now()
	resolved := make([]listing.Resolved, 0, len(result.Listings))
	for i := range result.Listings {
		resolved = append(resolved, listing.Resolve(&result.Listings[i], now))
	}
	resolved = listing.FilterVisible(resolved, now)

	if c.QueryParam("due_today") == "true" {
		kept := resolved[:0]
		for _, r := range resolved {
			if r.DaysRemaining(now) == 0 {
				kept = append(kept, r)
			}
		}
		resolved = kept
	}

	switch c.QueryParam("sort") {
	case "deadline_desc":
		listing.SortByDeadline(resolved, false)
	case "latest":
		// keep the store's created_at DESC order
	default:
		listing.SortByDeadline(resolved, true)
	}

	total := len(resolved)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	views := make([]listingView, 0, end-offset)
	for _, r := range resolved[offset:end] {
		views = append(views, viewOf(r, now))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"listings": views,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleGetListing(c echo.Context) error {
	l, err := s.Store.GetListing(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	// Soft-deleted listings disappear from the public API; expired ones
	// stay reachable by direct link even after leaving the list view.
	if l.Deleted() {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	now := time.Now()
	return c.JSON(http.StatusOK, viewOf(listing.Resolve(l, now), now))
}

func (s *Server) handleGetRegions(c echo.Context) error {
	regions, err := s.Store.GetRegions(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, regions)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

// Auth Handlers

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrUserExists {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrInvalidCreds {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

// Protected Handlers

func (s *Server) handleSaveListing(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid listing ID"})
	}

	if err := s.AuthService.SaveListing(ctx, userID, listingID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save listing"})
	}

	return c.NoContent(http.StatusOK)
}

func (s *Server) handleUnsaveListing(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid listing ID"})
	}

	if err := s.AuthService.UnsaveListing(ctx, userID, listingID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to unsave listing"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "unsaved"})
}

func (s *Server) handleGetSavedListings(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	saved, err := s.AuthService.GetSavedListings(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch saved listings"})
	}

	now := time.Now()
	views := make([]listingView, 0, len(saved))
	for i := range saved {
		views = append(views, viewOf(listing.Resolve(&saved[i], now), now))
	}
	return c.JSON(http.StatusOK, views)
}

// Admin Handlers

// deriveOnWrite runs the write-path derivations an operator save goes
// through: the stored deadline comes from the application-step keywords,
// and the price bounds are re-parsed from the authored price text.
func deriveOnWrite(l *models.Listing) {
	if d, ok := listing.WriteDeadline(listing.ParseSteps(l.Extended.Steps)); ok {
		l.Deadline = &d
	}
	if bounds := listing.ParsePrice(l.PriceText); bounds.Parsed() {
		l.SalePriceMin = bounds.Min
		l.SalePriceMax = bounds.Max
	}
	if l.PriceLabel == "" {
		if l.Type == models.TypeLease {
			l.PriceLabel = "임대보증금"
		} else {
			l.PriceLabel = "분양가"
		}
	}
}

func (s *Server) handleCreateListing(c echo.Context) error {
	var l models.Listing
	if err := c.Bind(&l); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(l.Title) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	}
	if l.Type == "" {
		l.Type = models.TypeSale
	}
	deriveOnWrite(&l)

	id, err := s.Store.CreateListing(c.Request().Context(), &l)
	if err != nil {
		c.Logger().Errorf("Failed to create listing: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create listing"})
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleUpdateListing(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	if _, err := s.Store.GetListing(ctx, id); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}

	var l models.Listing
	if err := c.Bind(&l); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	deriveOnWrite(&l)

	if err := s.Store.UpdateListing(ctx, id, &l); err != nil {
		c.Logger().Errorf("Failed to update listing %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update listing"})
	}

	updated, err := s.Store.GetListing(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to reload listing"})
	}
	now := time.Now()
	return c.JSON(http.StatusOK, viewOf(listing.Resolve(updated, now), now))
}

func (s *Server) handleDeleteListing(c echo.Context) error {
	if err := s.Store.SoftDeleteListing(c.Request().Context(), c.Param("id")); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleRestoreListing(c echo.Context) error {
	if err := s.Store.RestoreListing(c.Request().Context(), c.Param("id")); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "restored"})
}

func (s *Server) handlePurgeListing(c echo.Context) error {
	// Purge only works from the trash; a live listing must be
	// soft-deleted first.
	if err := s.Store.PurgeListing(c.Request().Context(), c.Param("id")); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found in trash"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "purged"})
}

func (s *Server) handleGetTrash(c echo.Context) error {
	result, err := s.Store.ListListings(c.Request().Context(), db.ListParams{DeletedOnly: true})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleMatchTrades(c echo.Context) error {
	ctx := c.Request().Context()
	l, err := s.Store.GetListing(ctx, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	if l.SigunguCode == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "listing has no sigungu_code"})
	}

	name := l.ApartmentName
	if name == "" {
		name = l.Title
	}

	matches, err := s.Matcher.Match(ctx, name, l.SigunguCode)
	if err != nil {
		// A lookup failure is "no match, with the reason", not a crash.
		c.Logger().Errorf("Trade match failed for %s: %v", l.ID, err)
		return c.JSON(http.StatusBadGateway, map[string]interface{}{
			"error":   err.Error(),
			"matches": []models.MatchResult{},
		})
	}

	resp := map[string]interface{}{"matches": matches}
	if best, ok := trade.BestMatch(matches); ok {
		resp["best"] = best
	}
	return c.JSON(http.StatusOK, resp)
}

type applyTradeRequest struct {
	ApartmentName string  `json:"apartment_name"`
	RecentPrice   float64 `json:"recent_price"`
	RecentDate    string  `json:"recent_date"`
}

func (s *Server) handleApplyTrade(c echo.Context) error {
	ctx := c.Request().Context()
	l, err := s.Store.GetListing(ctx, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}

	var req applyTradeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.ApartmentName == "" || req.RecentPrice <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "apartment_name and recent_price are required"})
	}

	margin, err := trade.ComputeMargin(l.OriginalPrice, req.RecentPrice)
	if err != nil {
		if errors.Is(err, trade.ErrNotComputable) {
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	if err := s.Store.ApplyTradePrice(ctx, c.Param("id"), req.ApartmentName,
		req.RecentPrice, req.RecentDate, margin.Amount, margin.Rate); err != nil {
		c.Logger().Errorf("Failed to apply trade price for %s: %v", l.ID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to apply trade price"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"apartment_name":  req.ApartmentName,
		"recent_price":    req.RecentPrice,
		"recent_date":     req.RecentDate,
		"expected_margin": margin.Amount,
		"margin_rate":     margin.Rate,
	})
}

type setNearbyRequest struct {
	Nearby []models.NearbyApartment `json:"nearby"`
}

func (s *Server) handleSetNearby(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.Store.GetListing(ctx, id); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}

	var req setNearbyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Nearby == nil {
		req.Nearby = []models.NearbyApartment{}
	}

	if err := s.Store.SetNearby(ctx, id, req.Nearby); err != nil {
		c.Logger().Errorf("Failed to set nearby for %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save nearby apartments"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"count": len(req.Nearby)})
}

func (s *Server) handleCrawlLH(c echo.Context) error {
	pipeline := ingest.NewPipeline(s.DB, nil)
	stats, err := pipeline.CrawlSource(c.Request().Context(), "lh_apply")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "LH crawl complete",
		"stats":   stats,
	})
}

func (s *Server) handleCrawlAll(c echo.Context) error {
	pipeline := ingest.NewPipeline(s.DB, nil)
	results, err := pipeline.CrawlAll(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "All registry sources crawled",
		"results": results,
	})
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
