// Package graph is a narrow client for the device app management API.
//
// It covers the calls needed to publish a line-of-business app: resolving
// or creating the mobile app record, managing content versions and driving
// a content file through its upload lifecycle. Requests carry a bearer
// token and a fresh client-request-id so failed calls can be traced on the
// service side.
package graph
