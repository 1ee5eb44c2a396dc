// Package runtime assembles storage and the task engine into a single-node
// instance that servers and CLI commands build on.
package runtime
