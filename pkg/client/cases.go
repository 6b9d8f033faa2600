package client

import (
	"context"
	"fmt"

	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// CasesClient calls the case snapshot endpoints.
type CasesClient struct {
	client *Client
}

// Get fetches the aggregated snapshot for one case.
func (cc *CasesClient) Get(ctx context.Context, caseID string) (*docs.CaseData, error) {
	var data docs.CaseData
	if err := cc.client.get(ctx, fmt.Sprintf("/api/v1/cases/%s", caseID), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Rebuild forces a fresh aggregation for the case, refreshing the
// server-side cache.
func (cc *CasesClient) Rebuild(ctx context.Context, caseID string) (*docs.CaseData, error) {
	var data docs.CaseData
	if err := cc.client.post(ctx, fmt.Sprintf("/api/v1/cases/%s/rebuild", caseID), nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
