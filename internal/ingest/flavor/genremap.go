package flavor

import "strings"

// genreTable is the fixed genre→characteristics mapping the ID3 genre
// mapper extractor uses (spec §4.13). Entries are hand-calibrated rough
// centroids, not derived from any single dataset.
var genreTable = map[string]Vector{
	"electronic": {Danceable: 0.85, Energetic: 0.75, Acoustic: 0.05, Tonal: 0.55, Happy: 0.6, Party: 0.8},
	"house":      {Danceable: 0.9, Energetic: 0.8, Acoustic: 0.05, Tonal: 0.5, Happy: 0.65, Party: 0.85},
	"techno":     {Danceable: 0.85, Energetic: 0.85, Acoustic: 0.05, Tonal: 0.4, Happy: 0.45, Party: 0.8},
	"pop":        {Danceable: 0.7, Energetic: 0.65, Acoustic: 0.2, Tonal: 0.7, Happy: 0.7, Party: 0.6},
	"rock":       {Danceable: 0.5, Energetic: 0.8, Acoustic: 0.2, Tonal: 0.55, Happy: 0.55, Party: 0.55},
	"metal":      {Danceable: 0.4, Energetic: 0.95, Acoustic: 0.05, Tonal: 0.35, Happy: 0.3, Party: 0.45},
	"punk":       {Danceable: 0.45, Energetic: 0.9, Acoustic: 0.1, Tonal: 0.4, Happy: 0.4, Party: 0.55},
	"jazz":       {Danceable: 0.45, Energetic: 0.4, Acoustic: 0.6, Tonal: 0.75, Happy: 0.55, Party: 0.35},
	"blues":      {Danceable: 0.35, Energetic: 0.35, Acoustic: 0.65, Tonal: 0.7, Happy: 0.35, Party: 0.3},
	"classical":  {Danceable: 0.15, Energetic: 0.3, Acoustic: 0.9, Tonal: 0.85, Happy: 0.5, Party: 0.1},
	"folk":       {Danceable: 0.3, Energetic: 0.35, Acoustic: 0.85, Tonal: 0.75, Happy: 0.55, Party: 0.25},
	"country":    {Danceable: 0.45, Energetic: 0.45, Acoustic: 0.6, Tonal: 0.75, Happy: 0.6, Party: 0.45},
	"hip hop":    {Danceable: 0.75, Energetic: 0.65, Acoustic: 0.1, Tonal: 0.45, Happy: 0.55, Party: 0.65},
	"rap":        {Danceable: 0.7, Energetic: 0.65, Acoustic: 0.1, Tonal: 0.4, Happy: 0.5, Party: 0.6},
	"r&b":        {Danceable: 0.65, Energetic: 0.5, Acoustic: 0.3, Tonal: 0.65, Happy: 0.6, Party: 0.55},
	"soul":       {Danceable: 0.55, Energetic: 0.45, Acoustic: 0.4, Tonal: 0.7, Happy: 0.6, Party: 0.45},
	"reggae":     {Danceable: 0.65, Energetic: 0.45, Acoustic: 0.35, Tonal: 0.6, Happy: 0.7, Party: 0.6},
	"ambient":    {Danceable: 0.1, Energetic: 0.15, Acoustic: 0.4, Tonal: 0.5, Happy: 0.45, Party: 0.05},
	"soundtrack": {Danceable: 0.15, Energetic: 0.4, Acoustic: 0.6, Tonal: 0.65, Happy: 0.45, Party: 0.1},
}

// MapGenre maps a free-text ID3 genre tag to a flavor vector, matching
// exactly first and falling back to the first table entry whose key
// appears as a substring of genre (e.g. "Deep House" → "house").
func MapGenre(genre string) (Vector, bool) {
	key := strings.ToLower(strings.TrimSpace(genre))
	if key == "" {
		return nil, false
	}
	if v, ok := genreTable[key]; ok {
		return v, true
	}
	for tableKey, v := range genreTable {
		if strings.Contains(key, tableKey) {
			return v, true
		}
	}
	return nil, false
}
