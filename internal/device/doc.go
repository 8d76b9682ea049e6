// Package device holds the console's view of a managed device and the
// collection envelope the device-management API returns.
//
// Devices are read-only projections: the console fetches them per page load,
// renders them, and discards them. Nothing here caches or mutates a device.
//
// The wire format of a collection is:
//
//	{
//	  "type": "deviceListResult",
//	  "limitExceeded": false,
//	  "size": 2,
//	  "items": {"item": [{"id": "...", "clientId": "..."}, ...]}
//	}
package device
