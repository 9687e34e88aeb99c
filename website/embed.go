// Package website embeds the static marketing site served by munnies-site.
package website

import "embed"

//go:embed static/*
var StaticFS embed.FS
