// Package backend implements the driven backend ports over the RAG
// service's JSON-over-HTTP interface.
//
// Every call goes through one request loop that applies the token bucket,
// attaches the bearer token, retries transport failures and 5xx answers
// with exponential backoff, and decodes the `{ success, data | error |
// message }` envelope. Failures are returned as *APIError or
// *TransportError and match the domain sentinels with errors.Is.
package backend
