// Package sending implements the tracked send pipeline.
//
// A send is refused when it has more than one To recipient or when the
// suppression policy blocks an address. Otherwise the pipeline records the
// SentEmail, rewrites the HTML for open and click tracking, attaches the
// correlation and unsubscribe headers and hands the message to the
// provider's Transport. Transport failures are classified into
// *TransportError values; nothing is retried here.
package sending
