/*
Package clients provides a Go client for the bond HTTP API.

BondClient signs every state-changing request with the caller's secp256k1 key
(see cryptoutils.SignRequest). Each request carries the caller's current
nonce, fetched just before signing, and a short expiry. A request that loses
a race with another request of the same caller fails with ErrUnauthorized and
can be retried. Error responses are turned back into the interfaces
sentinels:

	c := clients.NewBondClient("http://localhost:8080", issuerKey)
	if _, err := c.SetBondActive(ctx); errors.Is(err, interfaces.ErrInvalidState) {
		// bond not issued yet
	}
*/
package clients
