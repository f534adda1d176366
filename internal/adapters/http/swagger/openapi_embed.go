package swagger

import _ "embed"

// OpenAPI is the embedded OpenAPI document of the tally API.
//
//go:embed openapi.yaml
var OpenAPI []byte
