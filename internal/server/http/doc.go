// Package httpserver exposes the task API over HTTP with JSON bodies. Route
// handlers live in the controllers subpackage.
package httpserver
