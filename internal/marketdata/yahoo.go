package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/proquant/screener/pkg/config"
	"github.com/proquant/screener/pkg/httputil"
	"github.com/proquant/screener/pkg/logger"
)

// YahooProvider fetches bars from the Yahoo Finance chart API
// ⭐ SSOT: Yahoo Finance 호출은 이 타입에서만
type YahooProvider struct {
	httpClient *httputil.Client
	baseURL    string
	workers    int
	logger     *logger.Logger
}

// NewYahooProvider creates a new Yahoo Finance provider
func NewYahooProvider(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *YahooProvider {
	return &YahooProvider{
		httpClient: httpClient,
		baseURL:    cfg.Provider.BaseURL,
		workers:    cfg.Engine.Workers,
		logger:     log.WithField("module", "yahoo"),
	}
}

// yahooChart is the response envelope of the chart API
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchBars fetches bar series for all symbols with a bounded worker pool.
// Failed symbols are logged and omitted from the result map.
func (p *YahooProvider) FetchBars(ctx context.Context, symbols []string, lookback time.Duration, granularity Granularity) map[string][]Bar {
	interval, rng := chartParams(lookback, granularity)

	p.logger.WithFields(map[string]interface{}{
		"symbols":     len(symbols),
		"interval":    interval,
		"range":       rng,
		"granularity": granularity,
	}).Debug("Starting bar fetch")

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result = make(map[string][]Bar, len(symbols))
	)

	symbolCh := make(chan string, len(symbols))
	for _, s := range symbols {
		symbolCh <- s
	}
	close(symbolCh)

	workers := p.workers
	if workers <= 0 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolCh {
				select {
				case <-ctx.Done():
					return
				default:
				}

				bars, err := p.fetchChart(ctx, symbol, interval, rng)
				if err != nil {
					p.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to fetch bars")
					continue
				}
				if len(bars) == 0 {
					continue
				}

				mu.Lock()
				result[symbol] = bars
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	p.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"fetched":   len(result),
	}).Debug("Bar fetch completed")

	return result
}

// fetchChart fetches and converts one symbol's chart response
func (p *YahooProvider) fetchChart(ctx context.Context, symbol, interval, rng string) ([]Bar, error) {
	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		p.baseURL, url.PathEscape(symbol), interval, rng)

	headers := map[string]string{
		"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
	}

	var chart yahooChart
	if err := p.httpClient.GetJSON(ctx, fullURL, headers, &chart); err != nil {
		return nil, fmt.Errorf("chart request failed: %w", err)
	}

	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error: %s", chart.Chart.Error.Description)
	}

	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	res := chart.Chart.Result[0]
	quote := res.Indicators.Quote[0]

	bars := make([]Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		// Ragged payloads happen: every array gets its own bounds check
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		// Yahoo pads unfinished periods with nulls
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}

		var volume float64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}

		bars = append(bars, Bar{
			Time:   time.Unix(ts, 0),
			Open:   *quote.Open[i],
			High:   *quote.High[i],
			Low:    *quote.Low[i],
			Close:  *quote.Close[i],
			Volume: volume,
		})
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})

	return bars, nil
}

// chartParams maps a lookback window and granularity to chart API parameters
func chartParams(lookback time.Duration, granularity Granularity) (interval, rng string) {
	days := int(lookback.Hours() / 24)
	if days < 1 {
		days = 1
	}

	switch granularity {
	case GranularityHourly:
		return "60m", fmt.Sprintf("%dd", days)
	case GranularityIntraday:
		return "5m", fmt.Sprintf("%dd", days)
	default:
		return "1d", fmt.Sprintf("%dd", days)
	}
}
