package presence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Adapter reads the registry through the presence module's services.
type Adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates a new presence Adapter.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	return &Adapter{container: container}
}

// GetPresence returns the entry of userID, or ErrNotFound.
func (a *Adapter) GetPresence(ctx context.Context, userID string) (*Entry, error) {
	req := GetPresenceRequest{UserID: userID}
	var resp GetPresenceResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetPresence,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceGetPresence, err)
	}
	if !resp.Found || resp.Entry == nil {
		return nil, ErrNotFound
	}
	return resp.Entry, nil
}
