// Package upload moves an encrypted container to the storage endpoint of a
// content file.
//
// Waiter polls the content file until it reaches a desired upload state.
// Uploader waits for the storage URI, stages the container in fixed-size
// blocks with ids "0000", "0001", ..., renews the URI before it expires and
// commits the block list once every block is in place.
package upload
