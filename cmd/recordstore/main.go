// Recordstore is the record store order service.
//
// It serves the product catalog and order API, processes orders in a
// background task queue and reports traces, metrics and structured logs
// for every request.
//
// Usage:
//
//	# Start the server with the default configuration file
//	recordstore run
//
//	# Start with a custom configuration file
//	recordstore run --config /etc/recordstore/config.yaml
//
//	# Check a configuration file
//	recordstore validate --config config.yaml
//
//	# Load products from a catalog file
//	recordstore seed --file catalog.yaml
//
//	# Show version information
//	recordstore version
package main

import "os"

func main() {
	os.Exit(Execute())
}
