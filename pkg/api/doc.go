// Package api implements the record store HTTP routes: products, orders,
// checkout and the trace-test and error-test diagnostics.
//
// Domain errors are answered with a JSON body {"detail": ...}: 404 for a
// missing product or order, 422 for a request that fails validation and
// 400 for a body that is not JSON. Checkout and manual processing hand
// the order to a tasks.Submitter and return the task ID without waiting
// for the work.
package api
