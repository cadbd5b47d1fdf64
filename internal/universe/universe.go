package universe

import (
	"sort"
	"strings"
)

// Category classifies an instrument within the universe
type Category string

const (
	CategoryTradable        Category = "tradable"
	CategorySectorBenchmark Category = "sector-benchmark"
	CategoryIndex           Category = "index"
)

// Instrument is one member of the screened universe
type Instrument struct {
	Symbol   string   // provider ticker, e.g. "RELIANCE.NS"
	Name     string   // display name, e.g. "RELIANCE"
	Category Category
	Sector   string // sector group for tradables; empty for indices/benchmarks
}

// Universe is the full instrument set for one deployment
// ⭐ SSOT: 종목/섹터/지수 구성은 여기서만
type Universe struct {
	Instruments []Instrument
}

// Symbols returns all distinct provider tickers
func (u *Universe) Symbols() []string {
	seen := make(map[string]bool, len(u.Instruments))
	symbols := make([]string, 0, len(u.Instruments))
	for _, inst := range u.Instruments {
		if seen[inst.Symbol] {
			continue
		}
		seen[inst.Symbol] = true
		symbols = append(symbols, inst.Symbol)
	}
	return symbols
}

// Tradables returns the screened stock instruments
func (u *Universe) Tradables() []Instrument {
	return u.byCategory(CategoryTradable)
}

// Indices returns the broad-market index instruments
func (u *Universe) Indices() []Instrument {
	return u.byCategory(CategoryIndex)
}

// SectorBenchmarks returns sector -> benchmark instrument
func (u *Universe) SectorBenchmarks() map[string]Instrument {
	benchmarks := make(map[string]Instrument)
	for _, inst := range u.Instruments {
		if inst.Category == CategorySectorBenchmark {
			benchmarks[inst.Name] = inst
		}
	}
	return benchmarks
}

// SectorOf returns symbol -> sector group for all mapped tradables
func (u *Universe) SectorOf() map[string]string {
	mapping := make(map[string]string)
	for _, inst := range u.Instruments {
		if inst.Category == CategoryTradable && inst.Sector != "" {
			mapping[inst.Symbol] = inst.Sector
		}
	}
	return mapping
}

// Sectors returns the distinct sector group names
func (u *Universe) Sectors() []string {
	seen := make(map[string]bool)
	sectors := make([]string, 0)
	for _, inst := range u.Instruments {
		if inst.Category == CategorySectorBenchmark && !seen[inst.Name] {
			seen[inst.Name] = true
			sectors = append(sectors, inst.Name)
		}
	}
	return sectors
}

// BoxIndices returns the fixed index set evaluated by the box-breakout strategy
func (u *Universe) BoxIndices() []Instrument {
	wanted := map[string]bool{
		"NIFTY 50":   true,
		"BANK NIFTY": true,
		"FIN NIFTY":  true,
	}

	indices := make([]Instrument, 0, len(wanted))
	for _, inst := range u.Instruments {
		if inst.Category == CategoryIndex && wanted[inst.Name] {
			indices = append(indices, inst)
		}
	}
	return indices
}

func (u *Universe) byCategory(cat Category) []Instrument {
	out := make([]Instrument, 0)
	for _, inst := range u.Instruments {
		if inst.Category == cat {
			out = append(out, inst)
		}
	}
	return out
}

// displayName strips the exchange suffix for NSE tickers
func displayName(symbol string) string {
	return strings.TrimSuffix(symbol, ".NS")
}

// Default returns the built-in NSE universe: F&O stocks, sector
// benchmarks and broad indices. Map iteration order is random, so the
// keys are sorted to keep instrument order stable across runs.
func Default() *Universe {
	u := &Universe{}

	for _, name := range sortedKeys(indexSymbols) {
		u.Instruments = append(u.Instruments, Instrument{
			Symbol:   indexSymbols[name],
			Name:     name,
			Category: CategoryIndex,
		})
	}

	for _, sector := range sortedKeys(sectorBenchmarks) {
		u.Instruments = append(u.Instruments, Instrument{
			Symbol:   sectorBenchmarks[sector],
			Name:     sector,
			Category: CategorySectorBenchmark,
		})
	}

	for _, symbol := range foStocks {
		u.Instruments = append(u.Instruments, Instrument{
			Symbol:   symbol,
			Name:     displayName(symbol),
			Category: CategoryTradable,
			Sector:   stockSectors[symbol],
		})
	}

	return u
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// indexSymbols maps display names to provider tickers
var indexSymbols = map[string]string{
	"NIFTY 50":      "^NSEI",
	"BANK NIFTY":    "^NSEBANK",
	"FIN NIFTY":     "NIFTY_FIN_SERVICE.NS",
	"NIFTY NEXT 50": "^NSMIDCP50",
	"INDIA VIX":     "^INDIAVIX",
	"NIFTY IT":      "NIFTY_IT.NS",
}

// sectorBenchmarks maps sector groups to their NIFTY benchmark tickers
var sectorBenchmarks = map[string]string{
	"IT":     "NIFTY_IT.NS",
	"AUTO":   "NIFTY_AUTO.NS",
	"PHARMA": "NIFTY_PHARMA.NS",
	"METAL":  "NIFTY_METAL.NS",
	"REALTY": "NIFTY_REALTY.NS",
	"FMCG":   "NIFTY_FMCG.NS",
	"ENERGY": "NIFTY_ENERGY.NS",
	"INFRA":  "NIFTY_INFRA.NS",
	"BANKS":  "NIFTY_BANK.NS",
}

// foStocks is the screened F&O stock list
var foStocks = []string{
	"RELIANCE.NS", "TCS.NS", "HDFCBANK.NS", "ICICIBANK.NS", "INFY.NS", "SBIN.NS", "BHARTIARTL.NS", "AXISBANK.NS",
	"ADANIENT.NS", "TATAMOTORS.NS", "TATASTEEL.NS", "BAJFINANCE.NS", "LT.NS", "MARUTI.NS", "JKCEMENT.NS", "ADANIPORTS.NS",
	"ACC.NS", "AMBUJACEM.NS", "APOLLOHOSP.NS", "ASIANPAINT.NS", "AUROPHARMA.NS", "BAJAJ-AUTO.NS", "BANKBARODA.NS",
	"BEL.NS", "BPCL.NS", "CHOLAFIN.NS", "CIPLA.NS", "COALINDIA.NS", "DLF.NS", "DRREDDY.NS", "EICHERMOT.NS", "GAIL.NS",
	"HCLTECH.NS", "HINDALCO.NS", "HINDUNILVR.NS", "ITC.NS", "JINDALSTEL.NS", "JSWSTEEL.NS", "KOTAKBANK.NS", "M&M.NS",
	"NTPC.NS", "ONGC.NS", "POWERGRID.NS", "SUNPHARMA.NS", "TITAN.NS", "ULTRACEMCO.NS", "WIPRO.NS", "ZEEL.NS",
}

// stockSectors maps tradables to sector groups; unmapped stocks score
// zero on the sector-confluence factor.
var stockSectors = map[string]string{
	// IT
	"TCS.NS":      "IT",
	"INFY.NS":     "IT",
	"HCLTECH.NS":  "IT",
	"WIPRO.NS":    "IT",

	// BANKS
	"HDFCBANK.NS":   "BANKS",
	"ICICIBANK.NS":  "BANKS",
	"SBIN.NS":       "BANKS",
	"AXISBANK.NS":   "BANKS",
	"KOTAKBANK.NS":  "BANKS",
	"BANKBARODA.NS": "BANKS",

	// AUTO
	"TATAMOTORS.NS": "AUTO",
	"MARUTI.NS":     "AUTO",
	"BAJAJ-AUTO.NS": "AUTO",
	"EICHERMOT.NS":  "AUTO",
	"M&M.NS":        "AUTO",

	// METAL
	"TATASTEEL.NS":  "METAL",
	"JSWSTEEL.NS":   "METAL",
	"JINDALSTEL.NS": "METAL",
	"HINDALCO.NS":   "METAL",
	"COALINDIA.NS":  "METAL",

	// PHARMA
	"SUNPHARMA.NS":  "PHARMA",
	"CIPLA.NS":      "PHARMA",
	"DRREDDY.NS":    "PHARMA",
	"AUROPHARMA.NS": "PHARMA",
	"APOLLOHOSP.NS": "PHARMA",

	// REALTY
	"DLF.NS": "REALTY",

	// FMCG
	"HINDUNILVR.NS": "FMCG",
	"ITC.NS":        "FMCG",
	"ASIANPAINT.NS": "FMCG",

	// ENERGY
	"RELIANCE.NS":  "ENERGY",
	"ONGC.NS":      "ENERGY",
	"NTPC.NS":      "ENERGY",
	"POWERGRID.NS": "ENERGY",
	"GAIL.NS":      "ENERGY",
	"BPCL.NS":      "ENERGY",

	// INFRA
	"LT.NS":         "INFRA",
	"ADANIPORTS.NS": "INFRA",
	"ULTRACEMCO.NS": "INFRA",
	"ACC.NS":        "INFRA",
	"AMBUJACEM.NS":  "INFRA",
	"JKCEMENT.NS":   "INFRA",
}
