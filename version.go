package redo

import _ "embed"

// Version is the release of the library and the redo command.
//
//go:embed VERSION
var Version string
