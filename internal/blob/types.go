// Package blob is the single entry point for export archive storage. Callers
// depend on blob.Store and never import the infra backends directly.
package blob

import (
	"myoview/internal/blob/core"
)

type (
	// Driver identifies an archive backend.
	Driver = core.Driver
	// PutOptions configures an archive write.
	PutOptions = core.PutOptions
	// Info describes a stored archive.
	Info = core.Info
	// Store is the interface every backend implements.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrExists   = core.ErrExists
	ErrNotFound = core.ErrNotFound
)
