package scoring

// sectorBlendEpsilon guards the percentile denominator when every score in
// a sector is identical.
const sectorBlendEpsilon = 0.001

// AdjustBySector blends each score 70/30 with its min-max percentile rank
// inside its sector. Sectors with a single member pass through unchanged.
// Securities without a sector mapping are grouped together under "Unknown".
func AdjustBySector(scores map[string]float64, sectors map[string]string) map[string]float64 {
	grouped := make(map[string][]string)
	for ticker := range scores {
		sector, ok := sectors[ticker]
		if !ok || sector == "" {
			sector = "Unknown"
		}
		grouped[sector] = append(grouped[sector], ticker)
	}

	adjusted := make(map[string]float64, len(scores))
	for _, tickers := range grouped {
		if len(tickers) == 1 {
			adjusted[tickers[0]] = scores[tickers[0]]
			continue
		}

		lo, hi := scores[tickers[0]], scores[tickers[0]]
		for _, ticker := range tickers[1:] {
			score := scores[ticker]
			if score < lo {
				lo = score
			}
			if score > hi {
				hi = score
			}
		}

		for _, ticker := range tickers {
			score := scores[ticker]
			percentile := (score - lo) / (hi - lo + sectorBlendEpsilon)
			adjusted[ticker] = 0.7*score + 0.3*(percentile*100)
		}
	}
	return adjusted
}
