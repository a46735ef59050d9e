package domain

import "context"

// Vision is the per-user long-term (10-15 years) and short-term (~3 years)
// vision text.
type Vision struct {
	LongTerm  string `json:"longTerm"`
	ShortTerm string `json:"shortTerm"`
}

// VisionPatch carries a partial vision update.
type VisionPatch struct {
	LongTerm  *string `json:"longTerm"`
	ShortTerm *string `json:"shortTerm"`
}

// Apply returns v with the patch applied.
func (p VisionPatch) Apply(v Vision) Vision {
	if p.LongTerm != nil {
		v.LongTerm = *p.LongTerm
	}
	if p.ShortTerm != nil {
		v.ShortTerm = *p.ShortTerm
	}
	return v
}

// VisionRepository is the port for the vision singleton.
type VisionRepository interface {
	// GetVision returns nil, nil when nothing has been saved yet.
	GetVision(ctx context.Context, userID string) (*Vision, error)
	UpsertVision(ctx context.Context, userID string, v Vision) error
}
