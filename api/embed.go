// Package api embeds the OpenAPI specification for serving at runtime.
package api

import _ "embed"

// OpenAPISpec is the raw OpenAPI YAML specification.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
