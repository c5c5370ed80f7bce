// Package schemas embeds the JSON Schemas shipped with matterswarm.
package schemas

import _ "embed"

//go:embed manifest.schema.json
var Manifest string
