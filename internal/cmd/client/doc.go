// Package client contains Cobra CLI commands that talk to a drover server
// over its HTTP API.
package client
