// Package worldbank fetches indicators from the World Bank v2 API, which
// answers with a two-element array: page metadata followed by data points.
package worldbank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"macrocollector/internal/model"
	"macrocollector/internal/providers"
)

const (
	defaultBaseURL = "https://api.worldbank.org/v2"
	defaultPerPage = 1000
)

var ErrTruncated = errors.New("worldbank: response spans more than one page")

type Config struct {
	BaseURL string
	PerPage int
	Client  providers.ClientConfig
}

type Provider struct {
	config Config
	client *providers.Client
}

func New(cfg Config) *Provider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}
	return &Provider{
		config: cfg,
		client: providers.NewClient("worldbank", cfg.Client),
	}
}

func (p *Provider) Name() string {
	return "worldbank"
}

type pageMeta struct {
	Page    any `json:"page"`
	Pages   any `json:"pages"`
	PerPage any `json:"per_page"`
	Total   any `json:"total"`
}

type apiMessage struct {
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

type dataPoint struct {
	CountryISO3 string `json:"countryiso3code"`
	Date        string `json:"date"`
	Value       any    `json:"value"`
	Unit        string `json:"unit"`
	Indicator   struct {
		ID string `json:"id"`
	} `json:"indicator"`
}

func (p *Provider) Fetch(ctx context.Context, q providers.Query) ([]model.RawRecord, error) {
	if err := validate(q); err != nil {
		return nil, providers.Wrap(p.Name(), q.Indicator, providers.ErrInvalidQuery, err)
	}
	country := strings.ToUpper(strings.TrimSpace(q.Country))

	params := url.Values{}
	params.Set("format", "json")
	params.Set("per_page", strconv.Itoa(p.config.PerPage))
	if dateRange := yearRange(q); dateRange != "" {
		params.Set("date", dateRange)
	}
	path := fmt.Sprintf("country/%s/indicator/%s", url.PathEscape(country), url.PathEscape(strings.TrimSpace(q.Series)))

	var parts []json.RawMessage
	if err := p.client.GetJSON(ctx, providers.JoinURL(p.config.BaseURL, path), params, &parts); err != nil {
		return nil, providers.Wrap(p.Name(), q.Indicator, providers.ErrTransport, err)
	}

	points, err := parsePayload(parts)
	if err != nil {
		return nil, providers.NewFetchError(p.Name(), q.Indicator, providers.ErrPayload, err)
	}

	records := make([]model.RawRecord, 0, len(points))
	for _, point := range points {
		if !strings.EqualFold(strings.TrimSpace(point.CountryISO3), country) {
			continue
		}
		record := model.RawRecord{
			Period:     strings.TrimSpace(point.Date),
			Value:      providers.String(point.Value),
			Attributes: map[string]string{"country": country},
		}
		if point.Unit != "" {
			record.Attributes["unit"] = point.Unit
		}
		records = append(records, record)
	}
	return records, nil
}

func parsePayload(parts []json.RawMessage) ([]dataPoint, error) {
	switch len(parts) {
	case 0:
		return nil, errors.New("empty response array")
	case 1:
		var message apiMessage
		if err := decode(parts[0], &message); err == nil && len(message.Message) > 0 {
			return nil, fmt.Errorf("api error %s: %s", message.Message[0].ID, message.Message[0].Value)
		}
		return nil, errors.New("response has no data element")
	case 2:
	default:
		return nil, fmt.Errorf("expected [metadata, data], got %d elements", len(parts))
	}

	var meta pageMeta
	if err := decode(parts[0], &meta); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	if pages, err := strconv.Atoi(providers.String(meta.Pages)); err == nil && pages > 1 {
		return nil, fmt.Errorf("%w: pages=%d total=%s", ErrTruncated, pages, providers.String(meta.Total))
	}

	if bytes.Equal(bytes.TrimSpace(parts[1]), []byte("null")) {
		return nil, nil
	}
	var points []dataPoint
	if err := decode(parts[1], &points); err != nil {
		return nil, fmt.Errorf("data points: %w", err)
	}
	return points, nil
}

func decode(raw json.RawMessage, dest any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	return decoder.Decode(dest)
}

// yearRange only constrains the request when both bounds are set; open
// ranges are trimmed after cleaning.
func yearRange(q providers.Query) string {
	if q.Start.IsZero() || q.End.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d:%04d", q.Start.Year, q.End.Year)
}

func validate(q providers.Query) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(q.Series) == "" {
		return fmt.Errorf("%w: indicator code is required", providers.ErrInvalidQuery)
	}
	country := strings.TrimSpace(q.Country)
	if len(country) != 3 {
		return fmt.Errorf("%w: country must be an ISO3 code: %q", providers.ErrInvalidQuery, q.Country)
	}
	return nil
}

var _ providers.Provider = (*Provider)(nil)
