package reconcile

import (
	"cmp"
	"slices"
)

// Outcome classifies a reconciliation decision.
type Outcome string

const (
	// OutcomeAccepted means a unique candidate met the acceptance threshold.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeUncertain means candidates qualified but none could be chosen.
	OutcomeUncertain Outcome = "uncertain"
	// OutcomeNoMatch means no candidate cleared the minimum score.
	OutcomeNoMatch Outcome = "no_match"
)

// Thresholds bound candidate scores.
type Thresholds struct {
	// Min discards candidates scoring at or below it.
	Min float64
	// Accept is the lowest score a best match may have.
	Accept float64
}

// DefaultThresholds returns the minimum 0.60 and acceptance 0.70 scores.
func DefaultThresholds() Thresholds {
	return Thresholds{Min: 0.60, Accept: 0.70}
}

// Candidate is an authority heading with its score against the query.
type Candidate struct {
	Label string
	URI   string
	Score float64
}

// Decision is the result of reconciling one name.
type Decision struct {
	Query   string
	Outcome Outcome
	// Name is the accepted heading, or Query when nothing was accepted.
	Name string
	URI  string
	// Candidates holds the qualifying candidates, best first.
	Candidates []Candidate
}

// scoreEpsilon absorbs float noise when detecting ties.
const scoreEpsilon = 1e-9

// Decide scores candidates against query and applies th.
func Decide(query string, candidates []Candidate, th Thresholds) Decision {
	d := Decision{Query: query, Outcome: OutcomeNoMatch, Name: query}
	for _, c := range candidates {
		c.Score = Similarity(query, c.Label)
		if c.Score > th.Min {
			d.Candidates = append(d.Candidates, c)
		}
	}
	if len(d.Candidates) == 0 {
		return d
	}
	slices.SortStableFunc(d.Candidates, func(a, b Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})

	best := d.Candidates[0]
	if len(d.Candidates) > 1 && best.Score-d.Candidates[1].Score < scoreEpsilon {
		d.Outcome = OutcomeUncertain
		return d
	}
	if best.Score < th.Accept {
		d.Outcome = OutcomeUncertain
		return d
	}
	d.Outcome = OutcomeAccepted
	d.Name = best.Label
	d.URI = best.URI
	return d
}
