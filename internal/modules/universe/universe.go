// Package universe supplies the candidate symbols a screening run starts
// from. Symbols come from an optional plain-text file, falling back to a
// curated small/mid-cap list when no file is configured.
package universe

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Source yields the symbols to screen.
type Source struct {
	filePath string
	log      zerolog.Logger
}

// NewSource creates a universe source. filePath may be empty, in which
// case the curated list is used.
func NewSource(filePath string, log zerolog.Logger) *Source {
	return &Source{
		filePath: filePath,
		log:      log.With().Str("component", "universe").Logger(),
	}
}

// Symbols returns the candidate list. A configured file wins; a missing or
// unreadable file falls back to the curated list rather than failing the run.
func (s *Source) Symbols() []string {
	if s.filePath != "" {
		symbols, err := loadSymbolFile(s.filePath)
		if err != nil {
			s.log.Warn().Err(err).Str("path", s.filePath).Msg("Universe file unavailable, using curated list")
		} else if len(symbols) > 0 {
			s.log.Info().Int("count", len(symbols)).Str("source", "file").Msg("Universe loaded")
			return symbols
		}
	}

	symbols := CuratedList()
	s.log.Info().Int("count", len(symbols)).Str("source", "curated").Msg("Universe loaded")
	return symbols
}

// loadSymbolFile reads one symbol per line. Blank lines and # comments are
// skipped; symbols are upper-cased and de-duplicated preserving order.
func loadSymbolFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open universe file: %w", err)
	}
	defer f.Close()

	seen := make(map[string]bool)
	var symbols []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbol := strings.ToUpper(line)
		if !seen[symbol] {
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read universe file: %w", err)
	}

	return symbols, nil
}

// CuratedList is the fallback universe: a sector-diversified set of US
// small and mid caps.
func CuratedList() []string {
	return []string{
		// Technology - Semiconductors
		"LSCC", "DIOD", "SLAB", "POWI", "AOSL", "AMBA", "SITM", "CRUS", "FORM", "MTSI",
		"SMCI", "CRDO", "AEHR", "RMBS", "HIMX", "PLAB", "ICHR", "ACLS", "COHU", "KLIC",

		// Technology - Software
		"ALRM", "APPF", "BAND", "BRZE", "DOCN", "ESTC", "FSLY", "GTLB", "JAMF", "QLYS",
		"SMAR", "TENB", "NCNO", "EVBG",

		// Healthcare - Biotech/Medical Devices
		"ABCL", "ACAD", "ALKS", "ARVN", "AXSM", "BCRX", "BMRN", "EXAS", "GMED", "HOLX",
		"INCY", "INSM", "IONS", "JAZZ", "LGND", "MASI", "NVCR", "RARE", "SRPT", "UTHR",
		"VCYT", "XENE", "MEDP", "ITCI", "CORT", "HALO", "RVMD", "NBIX",

		// Industrials
		"AEIS", "AGCO", "ALG", "ASTE", "BWXT", "CMC", "ENS", "GGG", "GVA", "HUBB",
		"KBR", "LDOS", "MLI", "NVT", "PRIM", "RBC", "TRN", "VMI", "WCC", "WSC",
		"POWL", "ROAD", "STRL", "DY", "MTZ", "BLDR", "UFPI", "TREX", "ATKR", "GNRC",
		"AAON", "LECO", "MIDD",

		// Consumer - Retail/Restaurants
		"BJRI", "BOOT", "CAKE", "DIN", "EAT", "FIZZ", "HIBB", "PLAY", "PLNT", "SHAK",
		"TXRH", "WING", "LULU", "DECK", "CROX", "SKX", "DKS",

		// Financials
		"ALLY", "AX", "CADE", "EWBC", "FHN", "GBCI", "HBAN", "IBOC", "NWBI", "ONB",
		"PNFP", "SBCF", "SFBS", "SNV", "TFIN", "UBSI", "VLY", "WAL", "LPLA", "PIPR",
		"IBKR", "MKTX", "VIRT", "CACC", "SLM", "ENVA", "OMF", "LC", "UPST", "SOFI",

		// Energy & Materials
		"AROC", "BCPC", "CEIX", "CNX", "CTRA", "FANG", "HLX", "HP", "KOS", "MTDR",
		"OVV", "PARR", "RRC", "SM", "SWN", "CLF", "STLD", "NUE", "RS", "ATI", "AA",

		// REITs
		"AIRC", "BRX", "COLD", "CPT", "CUZ", "DEI", "EGP", "FR", "GTY", "HIW",
		"IIPR", "KRC", "LSI", "NNN", "OHI", "ROIC", "STAG", "SBRA", "VTR", "LTC",
	}
}
