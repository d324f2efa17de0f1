// Package checkout drives a checkout form: it picks the instrument (saved
// primary card or a new one), runs the bot-check gate and sequences the
// setup-intent calls around the processor's confirmation.
//
// Return-URL helpers resume a checkout after the processor redirected the
// customer away for extra authentication.
package checkout
