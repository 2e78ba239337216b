// Package web serves the JSON API and a small embedded dashboard over HTTP.
// Binds to localhost by default; there is no auth.
package web

import _ "embed"

//go:embed static/index.html
var indexHTML []byte
