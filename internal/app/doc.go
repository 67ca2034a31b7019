// Package app wires the enrollment service together: configuration,
// logging, telemetry, the cache backend, the source fetcher, the service
// layer and the HTTP router.
//
// # Initialization Flow
//
//	1. Resolve and create the configured directories
//	2. Initialize logging and OpenTelemetry
//	3. Open the cache backend selected by cache.backend
//	4. Build the source fetcher and the enrollment service
//	5. Set up HTTP handlers and middleware
//
// # Usage
//
//	a, err := app.NewApplication(ctx, cfg, app.Options{})
//	if err != nil {
//	    return err
//	}
//	defer a.Close(ctx)
//	return a.Run(ctx)
//
// The CLI reuses the same Application for one-shot commands and only calls
// Run for the serve command. Errors are returned to the caller; the package
// never exits the process.
package app
