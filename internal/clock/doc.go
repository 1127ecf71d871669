// Package clock provides an injectable time source.
//
// Code that waits (polling the content file state, delaying block retries,
// timing upload URI renewal) takes a Clock instead of calling time.Now or
// time.After directly. Production code uses Real(); tests use Fake(), which
// advances instantly whenever a caller waits so retry and polling paths run
// without real delays.
package clock
