package bcb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macrocollector/internal/model"
	"macrocollector/internal/providers"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{
		BaseURL: server.URL,
		Client:  providers.ClientConfig{Timeout: 2 * time.Second},
		Now: func() time.Time {
			return time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)
		},
	})
}

func TestFetch_Success(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bcdata.sgs.11/dados", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("formato"))
		assert.Equal(t, "01/01/2020", r.URL.Query().Get("dataInicial"))
		assert.Equal(t, "31/12/2020", r.URL.Query().Get("dataFinal"))
		_, _ = w.Write([]byte(`[{"data":"02/01/2020","valor":"0.017089"},{"data":"03/01/2020","valor":"0.017089"}]`))
	})

	records, err := provider.Fetch(context.Background(), providers.Query{
		Indicator: "selic",
		Series:    "11",
		Start:     civil.Date{Year: 2020, Month: time.January, Day: 1},
		End:       civil.Date{Year: 2020, Month: time.December, Day: 31},
	})

	require.NoError(t, err)
	assert.Equal(t, []model.RawRecord{
		{Period: "02/01/2020", Value: "0.017089"},
		{Period: "03/01/2020", Value: "0.017089"},
	}, records)
}

func TestFetch_DefaultRange(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "15/06/2024", r.URL.Query().Get("dataFinal"))
		assert.Equal(t, "17/06/2019", r.URL.Query().Get("dataInicial"))
		_, _ = w.Write([]byte(`[]`))
	})

	records, err := provider.Fetch(context.Background(), providers.Query{Indicator: "ipca", Series: "433"})

	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestFetch_NullValue(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"data":"01/01/2023","valor":null},{"data":"01/02/2023","valor":5.2}]`))
	})

	records, err := provider.Fetch(context.Background(), providers.Query{Indicator: "cambio", Series: "1"})

	require.NoError(t, err)
	assert.Equal(t, []model.RawRecord{
		{Period: "01/01/2023", Value: ""},
		{Period: "01/02/2023", Value: "5.2"},
	}, records)
}

func TestFetch_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    error
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "Value(s) not found", http.StatusNotFound)
			},
			kind: providers.ErrStatus,
		},
		{
			name: "object instead of array",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"error":"O sistema aceita uma janela de consulta de, no maximo, 10 anos"}`))
			},
			kind: providers.ErrPayload,
		},
		{
			name: "html",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>maintenance</html>`))
			},
			kind: providers.ErrPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, tt.handler)

			records, err := provider.Fetch(context.Background(), providers.Query{Indicator: "selic", Series: "11"})

			assert.Nil(t, records)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			var fetchErr *providers.FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, "selic", fetchErr.Indicator)
			assert.Equal(t, "bcb", fetchErr.Provider)
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()
	provider := New(Config{BaseURL: server.URL, Client: providers.ClientConfig{Timeout: 50 * time.Millisecond}})

	_, err := provider.Fetch(context.Background(), providers.Query{Indicator: "selic", Series: "11"})

	assert.ErrorIs(t, err, providers.ErrTransport)
}

func TestFetch_InvalidQuery(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	queries := []providers.Query{
		{Indicator: "selic", Series: ""},
		{Indicator: "selic", Series: "SELIC"},
		{
			Indicator: "selic",
			Series:    "11",
			Start:     civil.Date{Year: 2024, Month: time.January, Day: 2},
			End:       civil.Date{Year: 2024, Month: time.January, Day: 1},
		},
	}
	for _, q := range queries {
		_, err := provider.Fetch(context.Background(), q)
		assert.ErrorIs(t, err, providers.ErrInvalidQuery)
	}
}
