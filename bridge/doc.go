// Package bridge moves newline-delimited JSON-RPC frames between a single
// subprocess and its attached sessions.
//
// One reader goroutine drains the subprocess stdout and hands every frame,
// in order, to each attached session; a session's queue applies
// backpressure instead of dropping frames. One writer goroutine owns stdin:
// sessions submit frames through a shared mailbox and each frame is written
// whole, followed by a newline.
//
// Under the Exclusive policy a second Attach fails with ErrSessionBusy while
// a session is attached; under Broadcast every session receives every frame.
// When the subprocess exits, each session receives a notifications/message
// logging notification and is then closed.
package bridge
