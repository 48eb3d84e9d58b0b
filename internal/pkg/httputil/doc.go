// Package httputil provides shared HTTP response/request utilities for the
// tracker's handlers: consistent JSON envelopes, bounded body reads and
// client address extraction.
package httputil
