// Package companion is the HTTP client for the BlueOS companion computer.
//
// BlueOS exposes system metrics, the mavlink2rest bridge, the camera manager,
// ping sonar devices and installed extensions as JSON over HTTP. A host that
// cannot be reached yields ErrUnreachable; an error status yields *StatusError.
// Some endpoints answer with plain text: a successful non-JSON body is
// reported as {"status":"ok"} for object endpoints and an empty list for
// list endpoints.
package companion
