// Package middleware provides the HTTP middleware wrapped around every
// request.
//
// The server chains them in this order, outermost first:
//
//	Recovery -> RequestID -> Instrument -> Timeout -> mux
//
// Recovery turns a panic into a generic 500 response. RequestID assigns
// the X-Request-ID used by the logger. Instrument opens the request span
// and records the request metrics and logs; it observes panics and
// re-panics them so Recovery still sees them. Timeout bounds the handler's
// context and answers 504 when the handler gave up without responding.
//
// Route labels come from the ServeMux pattern (see MuxRoute), never the
// raw path, so /orders/1 and /orders/2 share the label /orders/{order_id}.
package middleware
