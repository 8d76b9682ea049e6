// Package proxy forwards console API calls to the device-management backend.
//
// Every request under the mount prefix (normally /api) is relayed to the
// backend with the prefix stripped and the remainder joined onto the backend
// base URL:
//
//	GET /api/devices?limit=50  ->  GET https://backend/v1/devices?limit=50
//
// Status, headers and body come back verbatim. There is no retry, no caching
// and no transformation. Protocol upgrades (WebSocket) pass straight through.
package proxy
