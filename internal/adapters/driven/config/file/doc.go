// Package file provides file-based implementations of driven port interfaces.
//
// ConfigStore keeps settings and the login session in ~/.ragdesk/config.toml.
// Dotted keys such as "api.url" are written as TOML tables:
//
//	[api]
//	url = "http://localhost:8000"
package file
