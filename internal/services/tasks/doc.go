// Package tasksvc is the service layer over the task engine. It applies
// configured defaults, owns the optional lease sweeper, and adds the CEL
// filtering used by admin listing. Servers and CLI commands call this
// package, never the engine directly.
package tasksvc
