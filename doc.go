// Package newnew is the checkout core of the NewNew client: everything between
// "the user pressed pay" and "the card is saved".
//
// The pieces are small and wired explicitly by the caller:
//
//   - challenge: two-tier bot check (invisible score, then visible widget)
//   - intent: one setup-intent attempt (initialize, update, finalize)
//   - checkout: the form controller sequencing gate, intent and processor
//   - instruments: saved-cards cache kept in sync by push events
//   - push: websocket listener and in-process event hub
//   - processor: Stripe setup-intent confirmation
//   - scope: per-session owner of long-lived components
//   - api, config, logging: shared plumbing
//
// There is no global state. A session creates a scope, provides its
// components and closes the scope when done.
//
// cmd/checkoutctl shows the full composition root.
package newnew
