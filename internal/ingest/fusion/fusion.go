// Package fusion reconciles the independent, sometimes-conflicting Results
// produced by internal/ingest/extractors into a single fused view of a
// passage's identity, metadata, and musical flavor (spec §4.14). Fusion is
// a pure function of its inputs, so it is deterministic, cacheable, and
// replayable.
package fusion

import (
	"math"
	"sort"
	"strconv"

	"github.com/wkmp/core/internal/ingest/extractors"
	"github.com/wkmp/core/internal/ingest/flavor"
)

// defaultMBIDThreshold is the minimum posterior an MBID candidate must
// clear before it's treated as resolved; below it the identity is
// reported "unresolved" (spec §4.14).
const defaultMBIDThreshold = 0.6

// conflictDelta is how close the top two confidences for a metadata field
// must be before the runner-up is recorded as a conflict instead of
// silently dropping it in favour of the higher one.
const conflictDelta = 0.1

// Conflict records a rejected candidate value alongside the one fusion
// actually chose, for a single field.
type Conflict struct {
	Field      string
	Value      string
	Source     string
	Confidence float64
}

// Identity is the fused recording identity: either a resolved MBID with
// its posterior, or "unresolved" when no candidate cleared the threshold.
type Identity struct {
	MusicBrainzID string
	Resolved      bool
	Posterior     float64
	Conflicts     []Conflict
}

// Metadata is the fused free-text record. Confidences holds the winning
// source's confidence per field name ("title", "artist", ...), so
// downstream validators can weight presence by how sure fusion actually
// was rather than treating every populated field as equally certain.
type Metadata struct {
	Title       string
	Artist      string
	Album       string
	ReleaseDate string
	TrackNumber int
	Duration    int
	Confidences map[string]float64
	Conflicts   []Conflict
}

// Fused is fusion's complete output for one passage.
type Fused struct {
	Identity  Identity
	Metadata  Metadata
	Flavor    flavor.Vector
	Conflicts []Conflict // union of Identity.Conflicts and Metadata.Conflicts
}

// FlavorCompleteness reports the fraction of flavor.All's components that
// at least one extractor actually contributed an opinion for, as opposed
// to components fuseFlavor had to fill in from flavor.Neutral() because
// nothing corroborated them. Validators consumes this directly as its
// Input.FlavorCompleteness.
func FlavorCompleteness(results []extractors.Result) float64 {
	covered := make(map[flavor.Component]bool, len(flavor.All))
	for _, r := range results {
		if r.Flavor == nil {
			continue
		}
		for _, comp := range flavor.All {
			if _, ok := r.Flavor.Vector[comp]; ok {
				covered[comp] = true
			}
		}
	}
	return float64(len(covered)) / float64(len(flavor.All))
}

// Fuse merges a set of extractor results for a single passage.
func Fuse(results []extractors.Result) Fused {
	identity := fuseIdentity(results)
	metadata := fuseMetadata(results)
	flav := fuseFlavor(results)

	var all []Conflict
	all = append(all, identity.Conflicts...)
	all = append(all, metadata.Conflicts...)

	return Fused{Identity: identity, Metadata: metadata, Flavor: flav, Conflicts: all}
}

type mbidCandidate struct {
	mbid        string
	confidences []float64
	sources     []string
}

// fuseIdentity groups every proposed MBID, computes each one's posterior
// as 1 - product(1 - confidence_i), and emits the highest-posterior MBID
// plus the rejected candidates as conflicts (spec §4.14).
func fuseIdentity(results []extractors.Result) Identity {
	byMBID := map[string]*mbidCandidate{}
	var order []string
	for _, r := range results {
		if r.Identity == nil || r.Identity.MusicBrainzID == "" {
			continue
		}
		mbid := r.Identity.MusicBrainzID
		c, ok := byMBID[mbid]
		if !ok {
			c = &mbidCandidate{mbid: mbid}
			byMBID[mbid] = c
			order = append(order, mbid)
		}
		c.confidences = append(c.confidences, r.Confidence)
		c.sources = append(c.sources, r.Source)
	}
	if len(order) == 0 {
		return Identity{Resolved: false}
	}

	posteriors := make(map[string]float64, len(order))
	for _, mbid := range order {
		c := byMBID[mbid]
		product := 1.0
		for _, conf := range c.confidences {
			product *= 1 - conf
		}
		posteriors[mbid] = 1 - product
	}

	sort.Slice(order, func(i, j int) bool { return posteriors[order[i]] > posteriors[order[j]] })
	best := order[0]
	bestPosterior := posteriors[best]

	var conflicts []Conflict
	for _, mbid := range order[1:] {
		c := byMBID[mbid]
		conflicts = append(conflicts, Conflict{
			Field:      "musicbrainz_id",
			Value:      mbid,
			Source:     c.sources[0],
			Confidence: posteriors[mbid],
		})
	}

	if bestPosterior < defaultMBIDThreshold {
		return Identity{Resolved: false, Posterior: bestPosterior, Conflicts: conflicts}
	}
	return Identity{MusicBrainzID: best, Resolved: true, Posterior: bestPosterior, Conflicts: conflicts}
}

type fieldCandidate struct {
	value      string
	confidence float64
	source     string
}

// fuseMetadata picks, per field, the value from the highest-confidence
// proposing source; when the top two differ and are within conflictDelta,
// the rejected runner-up is recorded in Conflicts (spec §4.14).
func fuseMetadata(results []extractors.Result) Metadata {
	fields := map[string][]fieldCandidate{
		"title":        nil,
		"artist":       nil,
		"album":        nil,
		"release_date": nil,
		"track_number": nil,
		"duration":     nil,
	}

	for _, r := range results {
		if r.Metadata == nil {
			continue
		}
		if r.Metadata.Title != "" {
			fields["title"] = append(fields["title"], fieldCandidate{r.Metadata.Title, r.Confidence, r.Source})
		}
		if r.Metadata.Artist != "" {
			fields["artist"] = append(fields["artist"], fieldCandidate{r.Metadata.Artist, r.Confidence, r.Source})
		}
		if r.Metadata.Album != "" {
			fields["album"] = append(fields["album"], fieldCandidate{r.Metadata.Album, r.Confidence, r.Source})
		}
		if r.Metadata.ReleaseDate != "" {
			fields["release_date"] = append(fields["release_date"], fieldCandidate{r.Metadata.ReleaseDate, r.Confidence, r.Source})
		}
		if r.Metadata.TrackNumber != 0 {
			fields["track_number"] = append(fields["track_number"], fieldCandidate{strconv.Itoa(r.Metadata.TrackNumber), r.Confidence, r.Source})
		}
		if r.Metadata.Duration != 0 {
			fields["duration"] = append(fields["duration"], fieldCandidate{strconv.Itoa(r.Metadata.Duration), r.Confidence, r.Source})
		}
	}

	meta := Metadata{Confidences: map[string]float64{}}
	var conflicts []Conflict
	var trackNumStr, durationStr string
	for _, spec := range []struct {
		field string
		dest  *string
	}{
		{"title", &meta.Title},
		{"artist", &meta.Artist},
		{"album", &meta.Album},
		{"release_date", &meta.ReleaseDate},
		{"track_number", &trackNumStr},
		{"duration", &durationStr},
	} {
		var conf float64
		*spec.dest, conf, conflicts = pickBest(fields[spec.field], spec.field, conflicts)
		if conf > 0 {
			meta.Confidences[spec.field] = conf
		}
	}
	meta.TrackNumber, _ = strconv.Atoi(trackNumStr)
	meta.Duration, _ = strconv.Atoi(durationStr)
	meta.Conflicts = conflicts
	return meta
}

func pickBest(candidates []fieldCandidate, field string, conflicts []Conflict) (string, float64, []Conflict) {
	if len(candidates) == 0 {
		return "", 0, conflicts
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].confidence > candidates[j].confidence })
	best := candidates[0]
	if len(candidates) > 1 {
		second := candidates[1]
		if second.value != best.value && math.Abs(best.confidence-second.confidence) < conflictDelta {
			conflicts = append(conflicts, Conflict{Field: field, Value: second.value, Source: second.source, Confidence: second.confidence})
		}
	}
	return best.value, best.confidence, conflicts
}

// fuseFlavor combines every proposed flavor vector with a confidence-
// weighted linear combination, renormalising so each component's
// contributing weights sum to 1 (spec §4.14).
func fuseFlavor(results []extractors.Result) flavor.Vector {
	sums := make(map[flavor.Component]float64, len(flavor.All))
	weights := make(map[flavor.Component]float64, len(flavor.All))

	for _, r := range results {
		if r.Flavor == nil {
			continue
		}
		for _, comp := range flavor.All {
			val, ok := r.Flavor.Vector[comp]
			if !ok {
				continue
			}
			w := r.Flavor.Confidence
			sums[comp] += val * w
			weights[comp] += w
		}
	}

	out := make(flavor.Vector, len(flavor.All))
	for _, comp := range flavor.All {
		if weights[comp] > 0 {
			out[comp] = sums[comp] / weights[comp]
		} else {
			out[comp] = flavor.Neutral()[comp]
		}
	}
	return out.Clamp01()
}
