// Package access asks the authorization service whether a tag may open a door.
//
// Client.Check never fails: transport errors, timeouts, unexpected statuses
// and unexpected bodies all produce a denying Decision whose Err explains
// why. Requests can carry a short-lived HS256 bearer token when the service
// is configured with a shared secret.
package access
