package service

import "context"

// EmailDraft is the rendered template handed to a ContentGenerator
type EmailDraft struct {
	CampaignName string
	Subject      string
	Body         string
	Contact      PersonalizationContext
}

// ContentGenerator rewrites a rendered body for one recipient. Callers fall
// back to the rendered template on any error.
type ContentGenerator interface {
	PersonalizeBody(ctx context.Context, draft EmailDraft) (string, error)
}
