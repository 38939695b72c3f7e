// Package receiver accepts finished render passes and publishes them to the
// rest of the tracker.
//
// Receiver.Accept validates that the pass names a board (ErrNoBoard if not),
// then stores it, evaluates alert rules against it, queues it for the pass
// history and signals the WebSocket hub. Every collaborator except the store
// is optional.
//
// New(st, opts...) wires the receiver to the given pass store.
package receiver
