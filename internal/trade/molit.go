package trade

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/junho/bunyang-finder/internal/models"
)

// Source returns all real-transaction records for a district over a date
// window. The production implementation calls the MOLIT open API; tests
// substitute an in-memory source.
type Source interface {
	RecordsByDistrict(ctx context.Context, sigunguCode string, from, to time.Time) ([]models.TransactionRecord, error)
}

// MolitClient fetches apartment trade records from the 국토교통부
// open-data API. The API is month-scoped, so a window is fetched as a
// sequence of monthly calls.
type MolitClient struct {
	Client     *http.Client
	BaseURL    string
	ServiceKey string
}

func NewMolitClient(serviceKey string) *MolitClient {
	return &MolitClient{
		Client: &http.Client{
			Timeout: 20 * time.Second,
		},
		BaseURL:    "http://openapi.molit.go.kr/OpenAPI_ToolInstallPackage/service/rest/RTMSOBJSvc/getRTMSDataSvcAptTradeDev",
		ServiceKey: serviceKey,
	}
}

type molitResponse struct {
	Header struct {
		ResultCode string `xml:"resultCode"`
		ResultMsg  string `xml:"resultMsg"`
	} `xml:"header"`
	Body struct {
		Items struct {
			Item []molitItem `xml:"item"`
		} `xml:"items"`
		TotalCount int `xml:"totalCount"`
	} `xml:"body"`
}

type molitItem struct {
	Apartment  string `xml:"아파트"`
	DealAmount string `xml:"거래금액"` // 만원 with comma grouping
	Area       string `xml:"전용면적"`
	Year       string `xml:"년"`
	Month      string `xml:"월"`
	Day        string `xml:"일"`
	Dong       string `xml:"법정동"`
	Floor      string `xml:"층"`
}

// RecordsByDistrict implements Source against the live API.
func (c *MolitClient) RecordsByDistrict(ctx context.Context, sigunguCode string, from, to time.Time) ([]models.TransactionRecord, error) {
	if c.ServiceKey == "" {
		return nil, fmt.Errorf("molit: service key not configured")
	}

	var records []models.TransactionRecord
	for ym := monthStart(from); !ym.After(to); ym = ym.AddDate(0, 1, 0) {
		monthly, err := c.fetchMonth(ctx, sigunguCode, ym)
		if err != nil {
			return nil, fmt.Errorf("molit %s %s: %w", sigunguCode, ym.Format("200601"), err)
		}
		records = append(records, monthly...)
	}
	return records, nil
}

func (c *MolitClient) fetchMonth(ctx context.Context, sigunguCode string, ym time.Time) ([]models.TransactionRecord, error) {
	q := url.Values{}
	q.Set("serviceKey", c.ServiceKey)
	q.Set("LAWD_CD", sigunguCode)
	q.Set("DEAL_YMD", ym.Format("200601"))

	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, string(body))
	}

	var payload molitResponse
	if err := xml.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if payload.Header.ResultCode != "" && payload.Header.ResultCode != "00" {
		return nil, fmt.Errorf("API error %s: %s", payload.Header.ResultCode, payload.Header.ResultMsg)
	}

	records := make([]models.TransactionRecord, 0, len(payload.Body.Items.Item))
	for _, item := range payload.Body.Items.Item {
		rec, ok := recordFromItem(item)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	log.Printf("[molit] %s %s: %d records", sigunguCode, ym.Format("2006-01"), len(records))
	return records, nil
}

func recordFromItem(item molitItem) (models.TransactionRecord, bool) {
	name := strings.TrimSpace(item.Apartment)
	amountRaw := strings.ReplaceAll(strings.TrimSpace(item.DealAmount), ",", "")
	if name == "" || amountRaw == "" {
		return models.TransactionRecord{}, false
	}

	man, err := strconv.ParseFloat(amountRaw, 64)
	if err != nil || man <= 0 {
		return models.TransactionRecord{}, false
	}

	rec := models.TransactionRecord{
		ApartmentName: name,
		DealAmount:    man / 10000, // 만원 -> 억
		DealDate:      dealDate(item.Year, item.Month, item.Day),
		Dong:          strings.TrimSpace(item.Dong),
	}
	if area, err := strconv.ParseFloat(strings.TrimSpace(item.Area), 64); err == nil {
		rec.ExclusiveArea = area
	}
	if floor, err := strconv.Atoi(strings.TrimSpace(item.Floor)); err == nil {
		rec.Floor = floor
	}
	return rec, true
}

func dealDate(year, month, day string) string {
	y := strings.TrimSpace(year)
	m := strings.TrimSpace(month)
	d := strings.TrimSpace(day)
	if len(m) < 2 {
		m = "0" + m
	}
	if len(d) < 2 {
		d = "0" + d
	}
	return y + "-" + m + "-" + d
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
