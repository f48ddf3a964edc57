package pubmark

import "embed"

// EmbeddedAssets contains the base stylesheet of the preview pages.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
