package discovery

import (
	"context"

	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/edgeworks/nfledge/internal/predicate"
	"github.com/rs/zerolog"
)

// AIProposer is the optional external reasoning collaborator:
// given a summary of the current training state, it may propose a candidate
// predicate in the structured grammar's text form. Absence of an AIProposer
// does not degrade correctness — the Discoverer falls back to template
// sweep and interaction mining alone.
type AIProposer interface {
	Propose(ctx context.Context, trainingSummary string) (predicateText string, side domain.Side, err error)
}

// proposeFromAI asks the proposer for one candidate and parses it.
// Grounding is strictly required: a predicate that does not
// parse is discarded silently, logged at debug level only, never treated as
// a run failure.
func proposeFromAI(ctx context.Context, ai AIProposer, trainingSummary string, log zerolog.Logger) (*Candidate, bool) {
	if ai == nil {
		return nil, false
	}
	text, side, err := ai.Propose(ctx, trainingSummary)
	if err != nil {
		log.Debug().Err(err).Msg("ai proposer declined")
		return nil, false
	}
	p, err := predicate.Parse(text)
	if err != nil {
		log.Debug().Err(err).Str("proposed_text", text).Msg("ai-proposed predicate did not parse, discarding")
		return nil, false
	}
	return &Candidate{Source: "ai_proposed", Name: "ai:" + text, Predicate: p, Side: side}, true
}
