package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GenerateResponse answers prompt using contextText as background. It loads
// the pipeline on first use. Every failure is reported in the returned
// Response; no error or panic crosses this boundary.
func (m *Manager) GenerateResponse(ctx context.Context, prompt, contextText string) Response {
	if strings.TrimSpace(prompt) == "" {
		m.metrics.generations.WithLabelValues(outcomeInvalid).Inc()
		m.publish(EventGenerateInvalid, nil)
		return Response{Error: msgEmptyPrompt, Cause: ErrValidation(msgEmptyPrompt)}
	}

	p, err := m.ensurePipeline(ctx)
	if err != nil {
		m.metrics.generations.WithLabelValues(outcomeUnavailable).Inc()
		m.log.Warn().Str("event", EventGenerateUnavail).Err(err).Msg("model not available")
		m.publish(EventGenerateUnavail, map[string]any{"error": err.Error()})
		return Response{Error: msgModelUnavailable, Cause: err}
	}

	if m.cfg.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.GenerateTimeout)
		defer cancel()
	}
	start := time.Now()
	cands, err := m.generate(ctx, p, BuildInstruction(prompt, contextText), m.cfg.generateOptions())
	dur := time.Since(start)
	m.metrics.generateDuration.Observe(dur.Seconds())
	if err != nil {
		gerr := generationError{cause: err}
		m.metrics.generations.WithLabelValues(outcomeError).Inc()
		m.log.Error().Str("event", EventGenerateError).Err(err).Dur("dur", dur).Msg("generation failed")
		m.publish(EventGenerateError, map[string]any{"error": gerr.Error()})
		return Response{Error: gerr.Error(), Cause: gerr}
	}

	chemo := IsChemotherapyQuery(prompt)
	m.metrics.generations.WithLabelValues(outcomeOK).Inc()
	m.log.Debug().Str("event", EventGenerateDone).Dur("dur", dur).Bool("chemo", chemo).Msg("generation done")
	m.publish(EventGenerateDone, map[string]any{"dur_ms": int(dur / time.Millisecond), "chemo": chemo})
	return Response{
		Text:     cands[0].GeneratedText,
		Metadata: &Metadata{IsChemotherapyQuery: chemo},
	}
}

// generate calls the pipeline, turning panics and empty results into errors.
func (m *Manager) generate(ctx context.Context, p Pipeline, input string, opts GenerateOptions) (cands []Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			cands, err = nil, fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	cands, err = p.Generate(ctx, input, opts)
	if err == nil && len(cands) == 0 {
		err = errors.New("pipeline returned no candidates")
	}
	return cands, err
}
