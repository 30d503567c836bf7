// Package services implements the driving port interfaces.
// Services hold the token, settings and webhook logic and orchestrate
// calls to driven ports (adapters).
package services
