// Package clockbridge bridges remote device events to a serial-attached
// clock controller.
//
// Remote events are formatted into short space-separated commands and queued.
// The queue transmits one command at a time over a 9600 baud 8N1 line and
// waits for the controller to answer "100 0" (done) or "100 1" (resend).
// A failed write stops the bridge; the embedding program is expected to exit.
//
// # Basic Usage
//
//	src := stream.New(os.Stdin, os.Stdout, logger)
//	b, err := clockbridge.New(clockbridge.Config{VendorID: "0403"},
//	    clockbridge.WithCloud(src),
//	    clockbridge.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := b.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	<-b.Done()
//	if err := b.Err(); err != nil {
//	    os.Exit(1)
//	}
//
// # Event Handling
//
// Implement [EventHandler] and pass it with [WithEventHandler] to observe
// state changes and queue activity. Callbacks run on the bridge's event loop
// and must return quickly.
//
// # Lifecycle States
//
//	Stopped -> Starting -> Running -> Stopping -> Stopped
//	                          |
//	                          +-> Crashed (serial write failure)
//
// A crashed bridge can be started again.
package clockbridge
