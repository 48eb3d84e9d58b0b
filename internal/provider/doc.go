// Package provider implements webhook handling for each supported email
// service provider.
//
// Every provider is a Handler: it authenticates the raw request (Verify),
// maps the provider payload onto domain.EmailEventData (Normalize) and turns
// the result into an HTTP response (Handle). Handlers are held in a static
// Registry keyed by provider name; custom handlers are registered into the
// same Registry at startup.
package provider
