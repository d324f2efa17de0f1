// Package challenge gates sensitive actions behind a two-tier bot check.
//
// The first tier is an invisible, score-based token verified by the backend.
// When it fails (or scores below Config.MinSuccessScore) the gate flags that a
// visible challenge is required and does not run the action; the caller renders
// the widget, passes its token to SetVisibleToken and submits again. There is
// no third tier: a rejected visible token simply re-prompts.
//
// Environments listed in Config.BypassEnvironments skip verification entirely.
package challenge
