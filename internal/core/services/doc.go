// Package services implements the driving port interfaces.
// Services hold the client-side collections in injected stores, call the
// backend through driven ports and reconcile local state with the answers.
//
// Services never hand nil collections to callers: on failure they return an
// empty or zeroed value alongside the error and emit a notification.
package services
