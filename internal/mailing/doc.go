// Package mailing prepares outgoing HTML for tracking.
//
// Rewriter inserts the open beacon and replaces http(s) anchors with tracked
// link URLs, creating the EmailOpen and EmailLink rows as it goes.
// UnsubscribeSigner builds and checks the signed URLs carried in
// List-Unsubscribe headers.
package mailing
