// Package file provides the TOML configuration store.
//
// The store keeps ~/.gspace/config.toml as flattened dotted keys, applies
// environment overrides on read and can watch the file for external edits.
package file
