/*
Package httpserver exposes registered storage adapters and a file collection
over HTTP.

# Endpoints

  - POST /api/files?name=&type= - Create a file from the request body
  - GET /api/files/{id} - File metadata and copy records
  - GET /api/stores - Registered stores with their capabilities
  - PUT /api/stores/{store}/files/{id} - Insert, or update an existing copy
  - GET /api/stores/{store}/files/{id} - Read a copy; honours a single "Range: bytes=" header
  - DELETE /api/stores/{store}/files/{id}?ignore_missing=true - Remove a copy
  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Gracefully mark server as not ready
  - GET /undrain - Mark server as ready

# Status codes

Unknown stores and files, copies without a key and content missing from the
backend map to 404. Contract violations (for example writing a file without
data) map to 400, configuration errors to 500, non-overwriting writes that hit
an existing key to 409 and any other backend failure to 502. A PUT whose write
was skipped by a pre-save hook answers 204.

# Example Usage

	reg := registry.New(logger, registry.WithObserver(metrics.Observer{}))
	handler := httpserver.NewHandler(reg, catalog.NewCollection(logger), logger)

	server, err := httpserver.New(cfg, handler)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	server.RunInBackground()
	defer server.Shutdown()
*/
package httpserver
