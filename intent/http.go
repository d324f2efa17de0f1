package intent

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/uafrontender/newnew-sub010/api"
)

// Backend endpoints.
const (
	PathCreateSetupIntent   = "/v1/payments/setup-intents"
	PathUpdateSetupIntent   = "/v1/payments/setup-intents/update"
	PathFinalizeSetupIntent = "/v1/payments/setup-intents/finalize"
)

type statusData struct {
	Status Status `json:"status"`
}

type updateBody struct {
	SetupIntentClientSecret string              `json:"setupIntentClientSecret"`
	GuestEmail              string              `json:"guestEmail,omitempty"`
	SaveCard                *bool               `json:"saveCard,omitempty"`
	RewardAmount            decimal.NullDecimal `json:"rewardAmount"`
}

type finalizeBody struct {
	SetupIntentClientSecret string          `json:"setupIntentClientSecret"`
	Options                 json.RawMessage `json:"options"`
}

// HTTPBackend implements Backend over the platform API.
type HTTPBackend struct {
	client *api.Client
}

// NewHTTPBackend binds the setup-intent endpoints to client.
func NewHTTPBackend(client *api.Client) *HTTPBackend {
	return &HTTPBackend{client: client}
}

func idempotency(attemptID, op string) map[string]string {
	return map[string]string{api.HeaderIdempotencyKey: attemptID + ":" + op}
}

// CreateSetupIntent implements Backend.
func (b *HTTPBackend) CreateSetupIntent(ctx context.Context, attemptID string, req CreateRequest) (CreateResponse, error) {
	return api.Call[CreateResponse](ctx, b.client, PathCreateSetupIntent, req, idempotency(attemptID, "create"))
}

// UpdateSetupIntent implements Backend.
func (b *HTTPBackend) UpdateSetupIntent(ctx context.Context, attemptID string, req UpdateRequest) (Status, error) {
	body := updateBody{
		SetupIntentClientSecret: req.SetupIntentClientSecret,
		GuestEmail:              req.GuestEmail,
		SaveCard:                req.SaveCard,
		RewardAmount:            req.RewardAmount,
	}
	out, err := api.Call[statusData](ctx, b.client, PathUpdateSetupIntent, body, idempotency(attemptID, "update"))
	return out.Status, err
}

// FinalizeSetupIntent implements Backend.
func (b *HTTPBackend) FinalizeSetupIntent(ctx context.Context, attemptID string, req FinalizeRequest) (Status, error) {
	opts, err := json.Marshal(req.Options)
	if err != nil {
		return StatusUnknown, err
	}
	body := finalizeBody{SetupIntentClientSecret: req.SetupIntentClientSecret, Options: opts}
	out, err := api.Call[statusData](ctx, b.client, PathFinalizeSetupIntent, body, idempotency(attemptID, "finalize"))
	return out.Status, err
}
