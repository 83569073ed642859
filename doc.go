// Package meshsandbox is a local sandbox of a store-and-forward mailbox
// exchange. Mailboxes send chunked messages to each other, recipients list,
// download and acknowledge them, and senders track delivery.
//
// # Basic Usage
//
//	ds, err := fixture.Load(fixture.WithoutMessages())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	st := memory.New(ds)
//
//	engine, err := meshsandbox.NewEngine(
//	    meshsandbox.WithStore(st),
//	    meshsandbox.WithAuthMode(auth.ModeFull),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := engine.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close(ctx)
//
//	sender, err := engine.AuthoriseMailbox(ctx, "X26ABC1", authHeader)
//	msg, err := engine.Send(ctx, sender, meshsandbox.SendRequest{
//	    To:         "X26ABC2",
//	    WorkflowID: "TEST_WORKFLOW",
//	    Body:       payload,
//	})
//
// # Store modes
//
// The engine works against any store.Store. store/memory holds the indices;
// its persistence strategy decides where content lives:
//   - memory.ReadOnly serves the canned fixture and turns every engine
//     mutation into a silent no-op
//   - memory.NewChunkStore keeps chunks in memory
//   - file.New writes messages and chunks under a directory
//
// # Plugins
//
// Plugins observe lifecycle operations through triggers. For each hooked
// operation (send_message, accept_message, acknowledge_message, save_chunk,
// save_message) the engine runs before_<op> synchronously, then after_<op>
// or <op>_error detached from the caller. Plugin failures and panics are
// logged and never change the operation's result.
//
// # Events
//
// Lifecycle events are published on a per-engine github.com/rbaliyan/event/v3
// bus after each successful mutation. Pass WithRedisClient or
// WithEventTransport to choose a transport; the default is a no-op transport.
//
// Available events:
//   - MessageSent
//   - MessageAccepted
//   - MessageAcknowledged
//   - ChunkSaved
//   - HookFailed
package meshsandbox
