// Package sidra fetches tables from the IBGE SIDRA values API. Responses are
// a JSON array of flat objects whose first element is a header row mapping
// field codes to labels.
package sidra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"macrocollector/internal/model"
	"macrocollector/internal/providers"
)

const (
	defaultBaseURL   = "https://apisidra.ibge.gov.br/values"
	defaultPeriodKey = "D3C"
	defaultValueKey  = "V"
	unitKey          = "MN"
)

type Config struct {
	BaseURL string
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
	return &Provider{
		config: cfg,
		client: providers.NewClient("sidra", cfg.Client),
	}
}

func (p *Provider) Name() string {
	return "sidra"
}

func (p *Provider) Fetch(ctx context.Context, q providers.Query) ([]model.RawRecord, error) {
	if err := validate(q); err != nil {
		return nil, providers.Wrap(p.Name(), q.Indicator, providers.ErrInvalidQuery, err)
	}
	periodKey := firstNonEmpty(q.PeriodKey, defaultPeriodKey)
	valueKey := firstNonEmpty(q.ValueKey, defaultValueKey)

	var rows []map[string]any
	if err := p.client.GetJSON(ctx, providers.JoinURL(p.config.BaseURL, q.Path), nil, &rows); err != nil {
		return nil, providers.Wrap(p.Name(), q.Indicator, providers.ErrTransport, err)
	}
	if len(rows) == 0 {
		return []model.RawRecord{}, nil
	}

	header := rows[0]
	if header == nil {
		return nil, providers.NewFetchError(p.Name(), q.Indicator, providers.ErrPayload, errors.New("missing header row"))
	}
	for _, key := range []string{periodKey, valueKey} {
		if _, ok := header[key]; !ok {
			return nil, providers.NewFetchError(p.Name(), q.Indicator, providers.ErrPayload,
				fmt.Errorf("header row has no %q field", key))
		}
	}

	records := make([]model.RawRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if row == nil {
			return nil, providers.NewFetchError(p.Name(), q.Indicator, providers.ErrPayload,
				fmt.Errorf("row %d is not an object", i+1))
		}
		record := model.RawRecord{
			Period: providers.String(row[periodKey]),
			Value:  providers.String(row[valueKey]),
		}
		if unit := providers.String(row[unitKey]); unit != "" {
			record.Attributes = map[string]string{"unit": unit}
		}
		records = append(records, record)
	}
	return records, nil
}

func validate(q providers.Query) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if !strings.HasPrefix(strings.TrimSpace(q.Path), "/t/") {
		return fmt.Errorf("%w: sidra path must start with /t/<table>: %q", providers.ErrInvalidQuery, q.Path)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var _ providers.Provider = (*Provider)(nil)
