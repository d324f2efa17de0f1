package instruments

import (
	"context"

	"github.com/uafrontender/newnew-sub010/api"
)

// Card endpoints.
const (
	PathListCards      = "/v1/cards"
	PathSetPrimaryCard = "/v1/cards/primary"
	PathDeleteCard     = "/v1/cards/delete"
)

type listData struct {
	Cards []Instrument `json:"cards"`
}

type cardRef struct {
	CardUUID string `json:"cardUuid"`
}

// HTTPStore implements Store over the platform API.
type HTTPStore struct {
	client *api.Client
}

// NewHTTPStore binds the card endpoints to client.
func NewHTTPStore(client *api.Client) *HTTPStore { return &HTTPStore{client: client} }

// ListCards implements Store.
func (s *HTTPStore) ListCards(ctx context.Context) ([]Instrument, error) {
	out, err := api.Get[listData](ctx, s.client, PathListCards)
	if err != nil {
		return nil, err
	}
	return out.Cards, nil
}

// SetPrimaryCard implements Store.
func (s *HTTPStore) SetPrimaryCard(ctx context.Context, id string) error {
	_, err := api.Call[struct{}](ctx, s.client, PathSetPrimaryCard, cardRef{CardUUID: id}, nil)
	return err
}

// DeleteCard implements Store.
func (s *HTTPStore) DeleteCard(ctx context.Context, id string) error {
	_, err := api.Call[struct{}](ctx, s.client, PathDeleteCard, cardRef{CardUUID: id}, nil)
	return err
}
