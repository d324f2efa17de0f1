package intent

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Status is the backend's verdict for a setup-intent call.
type Status string

const (
	StatusUnknown          Status = ""
	StatusSuccess          Status = "SUCCESS"
	StatusInvalidRequest   Status = "INVALID_REQUEST"
	StatusCardDeclined     Status = "CARD_DECLINED"
	StatusNotAuthenticated Status = "NOT_AUTHENTICATED"
	StatusUnknownError     Status = "UNKNOWN_ERROR"
)

// OK reports whether s is a success.
func (s Status) OK() bool { return s == StatusSuccess }

// Purpose is the use case a setup intent is created for. It selects the
// payload shape the backend expects.
type Purpose string

const (
	PurposeSubscription Purpose = "subscription"
	PurposeOneTime      Purpose = "one_time"
	PurposeBid          Purpose = "bid"
	PurposeVote         Purpose = "vote"
	PurposeCardSetup    Purpose = "card_setup"
)

// CreateRequest is the create-setup-intent payload. Fields not relevant to
// the Purpose are left zero.
type CreateRequest struct {
	Purpose     Purpose             `json:"purpose"`
	CreatorUUID string              `json:"creatorUuid,omitempty"`
	PostUUID    string              `json:"postUuid,omitempty"`
	OptionID    string              `json:"optionId,omitempty"`
	VotesCount  int                 `json:"votesCount,omitempty"`
	Amount      decimal.NullDecimal `json:"amount"`
	Currency    string              `json:"currency,omitempty"`
	BidText     string              `json:"bidText,omitempty"`
}

// RequestFactory builds a CreateRequest. It is called once, from Initialize,
// so the request reflects the parameters captured when the attempt started.
type RequestFactory func() (CreateRequest, error)

// CreateResponse is the data part of the create-setup-intent envelope.
type CreateResponse struct {
	Status                  Status `json:"status"`
	SetupIntentClientSecret string `json:"setupIntentClientSecret"`
}

// UpdateOptions are sent to the backend-held setup intent before confirmation.
type UpdateOptions struct {
	GuestEmail   string
	SaveCard     *bool
	RewardAmount decimal.NullDecimal
}

// FinalizeKind discriminates FinalizeOptions.
type FinalizeKind int

const (
	// FinalizeSavedCard commits against an already saved instrument.
	FinalizeSavedCard FinalizeKind = iota + 1

	// FinalizeNewCard commits after the processor confirmed a new instrument.
	FinalizeNewCard
)

// FinalizeOptions is a tagged variant: exactly one of the saved-card or
// new-card branches is populated. Build it with SavedCard, NewCard or
// NewFinalizeOptions.
type FinalizeOptions struct {
	kind     FinalizeKind
	cardUUID string
	saveCard bool
	email    string
}

// SavedCard selects the saved-instrument branch.
func SavedCard(cardUUID string) (FinalizeOptions, error) {
	cardUUID = strings.TrimSpace(cardUUID)
	if cardUUID == "" {
		return FinalizeOptions{}, ErrEmptyCardUUID
	}
	return FinalizeOptions{kind: FinalizeSavedCard, cardUUID: cardUUID}, nil
}

// NewCard selects the new-instrument branch.
func NewCard(saveCard bool, email string) FinalizeOptions {
	return FinalizeOptions{kind: FinalizeNewCard, saveCard: saveCard, email: strings.TrimSpace(email)}
}

// NewFinalizeOptions builds options from loosely typed input (e.g. a decoded
// form). It rejects input that populates both branches.
func NewFinalizeOptions(cardUUID string, saveCard *bool, email string) (FinalizeOptions, error) {
	hasCard := strings.TrimSpace(cardUUID) != ""
	hasNew := saveCard != nil || strings.TrimSpace(email) != ""
	switch {
	case hasCard && hasNew:
		return FinalizeOptions{}, ErrConflictingOptions
	case hasCard:
		return SavedCard(cardUUID)
	default:
		save := false
		if saveCard != nil {
			save = *saveCard
		}
		return NewCard(save, email), nil
	}
}

// Kind returns the discriminant; zero for an unbuilt value.
func (o FinalizeOptions) Kind() FinalizeKind { return o.kind }

// CardUUID is set only for FinalizeSavedCard.
func (o FinalizeOptions) CardUUID() string { return o.cardUUID }

// SaveCard is meaningful only for FinalizeNewCard.
func (o FinalizeOptions) SaveCard() bool { return o.saveCard }

// Email is meaningful only for FinalizeNewCard.
func (o FinalizeOptions) Email() string { return o.email }

// Valid reports whether o was built by one of the constructors.
func (o FinalizeOptions) Valid() bool {
	return o.kind == FinalizeSavedCard || o.kind == FinalizeNewCard
}

// MarshalJSON writes only the populated branch.
func (o FinalizeOptions) MarshalJSON() ([]byte, error) {
	switch o.kind {
	case FinalizeSavedCard:
		return json.Marshal(struct {
			CardUUID string `json:"cardUuid"`
		}{o.cardUUID})
	default:
		return json.Marshal(struct {
			SaveCard bool   `json:"saveCard"`
			Email    string `json:"email,omitempty"`
		}{o.saveCard, o.email})
	}
}
