// Package appfs exposes the repository's embedded static files:
// database migrations and email templates.
package appfs

import "embed"

//go:embed migrations assets
var FS embed.FS
