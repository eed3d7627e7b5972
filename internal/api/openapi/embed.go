// Package openapi - встроенный OpenAPI 3 контракт Users API.
package openapi

import _ "embed"

// Document - содержимое openapi.yaml.
//
//go:embed openapi.yaml
var Document []byte
