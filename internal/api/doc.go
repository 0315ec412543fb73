// Package api provides the HTTP client for the tome backend REST API.
//
// # Overview
//
// This package is the only place in the application that performs network
// I/O. It issues one request per call, classifies the outcome into a small
// error taxonomy, and decodes JSON payloads into the strongly-typed records
// the stores work with. It never retries; retry policy belongs to whoever
// triggered the request.
//
// # Files
//
//   - client.go: HTTP client, request construction, response classification
//   - types.go: payload records mirroring the backend API schema
//   - errors.go: the error taxonomy shared by stores, session, and UI
//
// # Authentication
//
// Authenticated endpoints pull a bearer token from a CredentialSource
// (implemented by the session store). When no token is available the call
// fails with an Unauthenticated error before any bytes reach the wire, so a
// signed-out client never hits the network by accident.
//
// # Error Taxonomy
//
// Every failed request produces an *Error with one of five kinds:
//
//   - Unauthenticated: missing or rejected credential (HTTP 401)
//   - NotFound: the resource does not exist (HTTP 404)
//   - Validation: field errors from the server, carried verbatim (HTTP 400)
//   - ServerError: any other non-2xx status
//   - NetworkError: no response at all (transport failure)
//
// The client never recovers from errors itself. Stores decide whether an
// error means rollback or no-op; only the UI renders errors to the user.
//
// # Multipart Uploads
//
// Shelf create and update accept an optional cover image. When one is
// attached the request is encoded as multipart form data with the shelf
// fields as form values and the image as a file part.
package api
