// Package symbols discovers tradable symbols from the exchange when a selection names none.
package symbols

import (
	"context"
	"fmt"
	"net/http"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/delivery"
	"github.com/adshao/go-binance/v2/futures"

	"github.com/veranemoloko/vision-downloader/internal/domain"
	"github.com/veranemoloko/vision-downloader/internal/enumerator"
)

// Endpoints override the exchange REST base URLs. Empty fields keep the library defaults.
type Endpoints struct {
	Spot     string
	Futures  string
	Delivery string
}

// Provider lists the symbols the exchange currently reports for a market.
type Provider struct {
	endpoints  Endpoints
	httpClient *http.Client
}

func NewProvider(endpoints Endpoints, httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Provider{endpoints: endpoints, httpClient: httpClient}
}

// List returns the normalized symbol list for market using the exchangeInfo endpoint.
func (p *Provider) List(ctx context.Context, market domain.Market) ([]string, error) {
	var (
		raw []string
		err error
	)
	switch market {
	case domain.MarketSpot:
		raw, err = p.spot(ctx)
	case domain.MarketUM:
		raw, err = p.futures(ctx)
	case domain.MarketCM:
		raw, err = p.delivery(ctx)
	default:
		return nil, fmt.Errorf("unknown market %q", market)
	}
	if err != nil {
		return nil, fmt.Errorf("exchange info for %s: %w", market, err)
	}
	return enumerator.NormalizeSymbols(raw), nil
}

func (p *Provider) spot(ctx context.Context) ([]string, error) {
	client := binance.NewClient("", "")
	client.HTTPClient = p.httpClient
	if p.endpoints.Spot != "" {
		client.BaseURL = p.endpoints.Spot
	}

	info, err := client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		out = append(out, s.Symbol)
	}
	return out, nil
}

func (p *Provider) futures(ctx context.Context) ([]string, error) {
	client := futures.NewClient("", "")
	client.HTTPClient = p.httpClient
	if p.endpoints.Futures != "" {
		client.BaseURL = p.endpoints.Futures
	}

	info, err := client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		out = append(out, s.Symbol)
	}
	return out, nil
}

func (p *Provider) delivery(ctx context.Context) ([]string, error) {
	client := delivery.NewClient("", "")
	client.HTTPClient = p.httpClient
	if p.endpoints.Delivery != "" {
		client.BaseURL = p.endpoints.Delivery
	}

	info, err := client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		out = append(out, s.Symbol)
	}
	return out, nil
}
