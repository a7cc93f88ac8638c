package main

import (
	"errors"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("avmdec")

// Sentinel errors for command operations
var (
	ErrManifestExists = errors.New("manifest already exists")
	ErrScriptsFailed  = errors.New("scripts failed")
)
