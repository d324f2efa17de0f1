// Package intent wraps one checkout attempt against the payment processor's
// setup-intent API.
//
// An Orchestrator moves through UNINITIALIZED → INITIALIZED → FINALIZED and
// never back. Initialize obtains the processor token, Update attaches guest
// email / save-card / reward amount, Finalize commits against either a saved
// card or a freshly confirmed one. Calling them out of order returns a
// *StateError; the instance should then be discarded.
package intent
