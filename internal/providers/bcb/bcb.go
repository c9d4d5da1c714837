// Package bcb fetches series from the Banco Central do Brasil SGS API.
package bcb

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"macrocollector/internal/model"
	"macrocollector/internal/providers"
)

const (
	defaultBaseURL       = "https://api.bcb.gov.br/dados/serie"
	defaultLookbackYears = 5
	sgsDateLayout        = "02/01/2006"
)

type Config struct {
	BaseURL       string
	LookbackYears int
	Client        providers.ClientConfig
	// Now is the clock used to resolve an open end date.
	Now func() time.Time
}

type Provider struct {
	config Config
	client *providers.Client
}

func New(cfg Config) *Provider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.LookbackYears <= 0 {
		cfg.LookbackYears = defaultLookbackYears
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Provider{
		config: cfg,
		client: providers.NewClient("bcb", cfg.Client),
	}
}

func (p *Provider) Name() string {
	return "bcb"
}

type sgsPoint struct {
	Data  string `json:"data"`
	Valor any    `json:"valor"`
}

func (p *Provider) Fetch(ctx context.Context, q providers.Query) ([]model.RawRecord, error) {
	if err := p.validate(q); err != nil {
		return nil, providers.Wrap(p.Name(), q.Indicator, providers.ErrInvalidQuery, err)
	}

	start, end := p.dateRange(q)
	params := url.Values{}
	params.Set("formato", "json")
	params.Set("dataInicial", start.In(time.UTC).Format(sgsDateLayout))
	params.Set("dataFinal", end.In(time.UTC).Format(sgsDateLayout))

	endpoint := providers.JoinURL(p.config.BaseURL, fmt.Sprintf("bcdata.sgs.%s/dados", q.Series))
	var points []sgsPoint
	if err := p.client.GetJSON(ctx, endpoint, params, &points); err != nil {
		return nil, providers.Wrap(p.Name(), q.Indicator, providers.ErrTransport, err)
	}

	records := make([]model.RawRecord, 0, len(points))
	for _, point := range points {
		records = append(records, model.RawRecord{
			Period: strings.TrimSpace(point.Data),
			Value:  providers.String(point.Valor),
		})
	}
	return records, nil
}

func (p *Provider) validate(q providers.Query) error {
	if err := q.Validate(); err != nil {
		return err
	}
	series := strings.TrimSpace(q.Series)
	if series == "" {
		return fmt.Errorf("%w: sgs series code is required", providers.ErrInvalidQuery)
	}
	for _, r := range series {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: sgs series code must be numeric: %s", providers.ErrInvalidQuery, series)
		}
	}
	return nil
}

// dateRange fills open bounds: the end defaults to today and the start to
// LookbackYears before the end.
func (p *Provider) dateRange(q providers.Query) (civil.Date, civil.Date) {
	end := q.End
	if end.IsZero() {
		end = civil.DateOf(p.config.Now())
	}
	start := q.Start
	if start.IsZero() {
		start = end.AddDays(-365 * p.config.LookbackYears)
	}
	return start, end
}

var _ providers.Provider = (*Provider)(nil)
