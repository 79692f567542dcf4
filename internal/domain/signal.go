package domain

import "context"

// TargetQuote is a take-profit target read from the signal feed.
type TargetQuote struct {
	Par        string  `json:"par"`
	Side       Side    `json:"side"`
	Alvo       float64 `json:"alvo"`
	UpdatedBRT string  `json:"updated_brt,omitempty"`
	Source     string  `json:"source"`
}

// TargetResolver looks up the current target for an instrument and side.
type TargetResolver interface {
	Resolve(ctx context.Context, par string, side Side) (TargetQuote, error)
}
