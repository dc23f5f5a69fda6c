/*
Package api defines the wire types of the bond HTTP API and its server
configuration.

Subpackages:

  - bondhandler: chi routes exposing the bond contract operations and views
  - clients: a signing Go client for those routes

# Authentication

State-changing requests carry four headers: X-SLB-Principal with the caller's
address, X-SLB-Nonce with the caller's current nonce, X-SLB-Expiry with a unix
time at most MaxRequestLifetime ahead, and X-SLB-Signature with a
personal-sign signature over "METHOD PATH\nNONCE EXPIRY\nBODY". The server
recovers the signer and rejects the request unless it matches the claimed
principal, has not expired and names the caller's current nonce. A committed
request advances the nonce, so the same signature is never accepted twice.
Views are public.

# Errors

Failures are returned as ErrorResponse with the interfaces.ErrorKind of the
underlying error, which clients map back to the matching sentinel.
*/
package api
