// Package flat turns a nested workflow log into a flat table for analysis
// and exports it as JSON, YAML or CSV.
package flat
