// Package events provides a Redis Pub/Sub event bus that decouples
// producers from consumers. Events travel in a JSON envelope carrying a
// type, a generated id, a timestamp, a lifecycle status, and a raw
// payload consumers decode into their own types.
//
//	bus := app.Events()
//	ev, _ := events.New("user.registered", registeredPayload{ID: id})
//	_ = bus.Publish(ctx, "", ev) // channel defaults to the event type
//
//	ch, _ := bus.Subscribe(ctx, "user.registered")
//	for ev := range ch {
//		var p registeredPayload
//		_ = ev.Decode(&p)
//	}
//
// The bus is a lifecycle plugin: it borrows the shared Redis client
// during Setup, closes open subscriptions on Teardown, and reports the
// subscription count from Health.
package events
