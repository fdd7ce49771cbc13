// Package worker runs background jobs on [github.com/riverqueue/river]
// using the application's PostgreSQL pool as the queue store.
//
// Tasks are plain structs registered by name; all jobs share a single River
// job kind and are dispatched to the right handler by task name. Periodic
// tasks declare a five-field cron expression. Pool adapts the manager to
// the plugin lifecycle and stays dormant unless WORKER_ENABLED is set.
//
//	pool := worker.NewPool(database,
//		worker.WithTask(&sendWelcome{mailer}),
//		worker.WithScheduledTask(&cleanupSessions{store}),
//		worker.WithQueue("email", 5),
//	)
package worker
