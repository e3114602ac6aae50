package session

import (
	"context"
	"fmt"

	"github.com/waterbook/waterbook/internal/feature"
	"github.com/waterbook/waterbook/internal/onomatopoeia"
	"github.com/waterbook/waterbook/internal/style"
)

// Result is the output of the generation phase.
type Result struct {
	Candidates []onomatopoeia.Candidate
	Style      style.ID
	Parameters style.Parameters
}

// Generator turns a feature summary into ranked candidates and an initial
// style suggestion. The controller runs it off the control loop under the
// generation deadline.
type Generator interface {
	Generate(ctx context.Context, sum feature.Summary) (Result, error)
}

// GeneratorFunc adapts a function to the [Generator] interface.
type GeneratorFunc func(ctx context.Context, sum feature.Summary) (Result, error)

// Generate implements [Generator].
func (f GeneratorFunc) Generate(ctx context.Context, sum feature.Summary) (Result, error) {
	return f(ctx, sum)
}

// ruleGenerator is the production generator: lexicon scoring plus the style
// suggestion and mapping tables.
type ruleGenerator struct {
	engine *onomatopoeia.Engine
}

// NewGenerator wraps the onomatopoeia engine and style tables as a
// [Generator].
func NewGenerator(engine *onomatopoeia.Engine) Generator {
	return &ruleGenerator{engine: engine}
}

func (g *ruleGenerator) Generate(ctx context.Context, sum feature.Summary) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	candidates := g.engine.Generate(sum)
	id := style.SuggestDefault(sum)
	params, err := style.Map(sum, id)
	if err != nil {
		return Result{}, fmt.Errorf("session: map style %q: %w", id, err)
	}
	return Result{Candidates: candidates, Style: id, Parameters: params}, nil
}

// fallbackResult is the output used when generation fails or times out: the
// neutral word and the default style's parameters for the summary. Map on the
// default style cannot fail; its error path exists only for foreign ids.
func fallbackResult(sum feature.Summary) Result {
	params, _ := style.Map(sum, style.DefaultID)
	return Result{
		Candidates: []onomatopoeia.Candidate{onomatopoeia.NeutralCandidate()},
		Style:      style.DefaultID,
		Parameters: params,
	}
}
