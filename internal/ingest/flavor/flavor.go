// Package flavor defines the six-dimensional "musical flavor" feature
// space shared by every source extractor, the fusion step, and the
// persisted song record (spec §4.13/§4.14, model.Song.FlavorVector).
package flavor

// Component names one axis of the flavor space. Every extractor that
// contributes a flavor opinion (ID3 genre mapper, AcousticBrainz client,
// audio-derived features, Essentia fallback) expresses it in these terms.
type Component string

const (
	Danceable Component = "danceable"
	Energetic Component = "energetic"
	Acoustic  Component = "acoustic"
	Tonal     Component = "tonal"
	Happy     Component = "happy"
	Party     Component = "party"
)

// All lists every component, in a stable order for serialization and
// iteration.
var All = []Component{Danceable, Energetic, Acoustic, Tonal, Happy, Party}

// Vector is a point in the flavor space; each value should lie in [0, 1]
// but callers normalize rather than clamp, since intermediate fusion math
// may transiently exceed that range before renormalization.
type Vector map[Component]float64

// Clamp01 returns a copy of v with every component clamped into [0, 1].
func (v Vector) Clamp01() Vector {
	out := make(Vector, len(v))
	for c, val := range v {
		switch {
		case val < 0:
			out[c] = 0
		case val > 1:
			out[c] = 1
		default:
			out[c] = val
		}
	}
	return out
}

// Neutral returns the flavor vector persisted when nothing could be
// derived (model.Song.FlavorVector's documented JSON fallback): every
// component at the midpoint of its range.
func Neutral() Vector {
	v := make(Vector, len(All))
	for _, c := range All {
		v[c] = 0.5
	}
	return v
}

// Opinion is one extractor's flavor contribution, annotated with a
// per-component confidence so fusion can weight it against other sources.
type Opinion struct {
	Source     string
	Vector     Vector
	Confidence float64 // applied uniformly across all of Vector's components
}
