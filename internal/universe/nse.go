package universe

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/proquant/screener/pkg/httputil"
	"github.com/proquant/screener/pkg/logger"
)

// foListURL lists the current F&O underlyings on the NSE site
const foListURL = "https://www.nseindia.com/products-services/equity-derivatives-list-underlyings-information"

// Loader refreshes the tradable list from NSE, falling back to the
// built-in universe when the page cannot be scraped.
type Loader struct {
	httpClient *httputil.Client
	logger     *logger.Logger
}

// NewLoader creates a new universe loader
func NewLoader(httpClient *httputil.Client, log *logger.Logger) *Loader {
	return &Loader{
		httpClient: httpClient,
		logger:     log.WithField("module", "universe"),
	}
}

// Load returns the screening universe. Scrape failures are not fatal:
// the static universe is always a valid answer.
func (l *Loader) Load(ctx context.Context) *Universe {
	symbols, err := l.fetchFOSymbols(ctx)
	if err != nil {
		l.logger.WithError(err).Warn("F&O list scrape failed, using built-in universe")
		return Default()
	}

	base := Default()
	known := make(map[string]bool, len(base.Instruments))
	for _, inst := range base.Instruments {
		known[inst.Symbol] = true
	}

	added := 0
	for _, symbol := range symbols {
		if known[symbol] {
			continue
		}
		base.Instruments = append(base.Instruments, Instrument{
			Symbol:   symbol,
			Name:     displayName(symbol),
			Category: CategoryTradable,
		})
		added++
	}

	l.logger.WithFields(map[string]interface{}{
		"scraped": len(symbols),
		"added":   added,
		"total":   len(base.Instruments),
	}).Info("Universe loaded")

	return base
}

// fetchFOSymbols scrapes the NSE underlying list table
func (l *Loader) fetchFOSymbols(ctx context.Context) ([]string, error) {
	resp, err := l.httpClient.Get(ctx, foListURL)
	if err != nil {
		return nil, fmt.Errorf("fetch F&O list: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse F&O list: %w", err)
	}

	symbols := make([]string, 0, 200)
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		// Underlying symbol is in the second column
		cell := row.Find("td").Eq(1)
		symbol := strings.TrimSpace(cell.Text())
		if symbol == "" || strings.Contains(symbol, " ") {
			return
		}
		symbols = append(symbols, symbol+".NS")
	})

	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols found in F&O list")
	}

	return symbols, nil
}
