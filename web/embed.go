package web

import "embed"

// Content holds the embedded help text (help.txt) served at /help.
//
//go:embed help.txt
var Content embed.FS
