// Package bridge implements ports.UIBridge as an in-process mailbox.
//
// The executor posts requests and blocks in Await. A front end running on another
// goroutine reads Requests (or polls Pending), renders a modal and answers with Reply.
// Each request accepts exactly one reply. Closing the mailbox resolves every pending
// request to domain.ErrUIUnavailable.
package bridge
