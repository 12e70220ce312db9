package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/forged/internal/project"
)

// contextSnippetLen bounds how much of the source context the templates echo
// back.
const contextSnippetLen = 20

// Fallback produces deterministic, framework-specific templated text. It is
// used when no live credentials are configured. The simulated delay models
// real provider latency for UI testing.
type Fallback struct {
	delay time.Duration
}

// NewFallback creates the fallback generation strategy.
func NewFallback(delay time.Duration) *Fallback {
	return &Fallback{delay: delay}
}

// Generate returns the canned structure for the project's framework. It
// branches on exactly the three known framework values; anything else gets
// the generic template.
func (f *Fallback) Generate(ctx context.Context, framework project.Framework, sourceContext, _ string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	snippet := contextSnippet(sourceContext)

	switch framework {
	case project.FrameworkDeepdive:
		return fmt.Sprintf(`# Executive Summary

Based on the provided context, the following analysis...

## Key Findings

1. Point A
2. Point B

## Detailed Analysis

[Synthetic content generated for %s...]`, snippet), nil

	case project.FrameworkSynthetic:
		return fmt.Sprintf(`TRANSCRIPT: PODCAST EPISODE #42

Host: Welcome back to the show. Today we're discussing...

Guest: It's a fascinating topic because... [Context: %s...]`, snippet), nil

	case project.FrameworkBenchmark:
		return `## Benchmark Report

Data indicates a strong correlation between...`, nil

	default:
		return fmt.Sprintf(`## Analysis

[Synthetic content generated for %s...]`, snippet), nil
	}
}

func contextSnippet(s string) string {
	if len(s) > contextSnippetLen {
		return s[:contextSnippetLen]
	}
	return s
}

var _ Provider = (*Fallback)(nil)
