// Package errs defines the error taxonomy shared by the provisioning,
// migration, quota and rate limiting components.
//
// Every failure is an *Error carrying one of the codes below:
//
//   - EInvalid: missing or malformed input, surfaced immediately, never retried
//   - EConflict: duplicate tenant or unique constraint violation, never retried
//   - ENotFound: the tenant or its database does not exist
//   - EUnavailable: connection or timeout failure, retried with backoff
//   - EQuotaExceeded: logical storage refusal
//   - EPartialFailure: some catalog tables failed while others succeeded
//
// Driver errors from lib/pq and pgconn are mapped by SQLSTATE in Classify
// so that duplicate keys and connection failures stay distinguishable.
package errs
