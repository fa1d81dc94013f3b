// Package acl implements the HTTP transport of the auth server.
//
// It routes allow-list queries, access-log records and generation requests
// to a provided business-service interface and maps its errors to status
// codes.
package acl
