// Command checkoutctl drives the checkout core from a terminal.
//
//	checkoutctl checkout --email a@b.com --payment-method pm_card_visa --save-card
//	checkoutctl cards list
//	checkoutctl cards primary <card-uuid>
//	checkoutctl cards remove <card-uuid>
//	checkoutctl listen
//	checkoutctl return-url build --save-card
//	checkoutctl return-url resume '<url>' --email a@b.com
//
// Every invocation opens a session scope that owns the push hub, the saved
// cards cache and the checkout controller, and disposes them on exit.
//
// Configuration
//
//	NEWNEW_ENV                environment name; test/staging skip the bot check
//	NEWNEW_API_BASE_URL       platform API (required)
//	NEWNEW_API_TIMEOUT_MS     HTTP timeout
//	NEWNEW_AUTH_TOKEN         user token; without it checkouts run as guest
//	NEWNEW_MIN_SUCCESS_SCORE  invisible challenge threshold
//	NEWNEW_PUSH_URL           websocket for card status pushes
//	NEWNEW_RETURN_URL         processor return URL
//	NEWNEW_LOG_LEVEL          debug, info, warn, error
//	STRIPE_SECRET_KEY         processor key used to confirm setup intents
package main
