/*
Package bondhandler exposes the bond contract over HTTP.

Routes (all under /api/v1):

	POST roles                  owner sets issuer and verifier
	POST bond                   issuer sets the bond terms
	POST bond/mint              mint bonds
	POST bond/issue             issuer moves Created to Issued
	POST bond/activate          issuer moves Issued to Active
	POST bond/end               issuer moves Active to Ended
	POST funding/deposit        fund the bond
	POST funding/withdraw       issuer withdraws
	POST devices                register a measurement device
	POST impact/report          issuer reports impact
	POST impact/verify          verifier rules on the period
	POST admin/freeze           owner pauses the bond
	POST admin/unfreeze         owner resumes the bond
	POST admin/ownership        owner hands over ownership

	GET bond, funding/balance, roles, impact, holdings/{addr},
	devices/{id}, devices/{id}/check, devices/{id}/check-measurement,
	commitments/identity, commitments/measurement, nonces/{addr},
	journal/head

POST routes require the X-SLB-Principal, X-SLB-Nonce, X-SLB-Expiry and
X-SLB-Signature headers. The nonce must be the caller's current nonce
(GET nonces/{addr}) and the expiry at most ten minutes ahead; each signed
request commits at most once.
*/
package bondhandler
