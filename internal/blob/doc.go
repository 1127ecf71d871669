// Package blob talks to a pre-signed block blob endpoint.
//
// The management API hands out a shared-access URI for every content file.
// Blocks are staged one by one with StageBlock and assembled with a single
// CommitBlockList call. Block ids are passed in their plain form and encoded
// to base64 on the wire.
package blob
