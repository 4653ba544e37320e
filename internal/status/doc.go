// Package status decides whether a local copy of a novel is complete by
// comparing its chapter count with the count discovered on the web.
//
// The web page's own "completed" label is never trusted; only chapter counts
// decide the outcome.
package status
