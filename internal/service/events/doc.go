// Package events applies normalized provider notifications to tracking state.
//
// The Processor is the single place where bounce, complaint and delivery
// events mutate storage. It looks the SentEmail up by message id together
// with the tracking flag for the event's category, so notifications for
// untracked mail are absorbed without error.
package events
