// Package flush moves encoded checkpoints from node-local cache to a
// slower tier in the background. The encode pipeline never calls into
// it; callers start a flush after a successful apply and Stop it only
// at teardown.
package flush
