// Package appfs embeds the static assets the app ships with: database
// migrations, email templates and the common-passwords list.
package appfs

import "embed"

//go:embed assets migrations
var FS embed.FS
