// Package serverrun boots a single-node server: storage, task engine, HTTP
// API, and the optional lease sweeper.
package serverrun
