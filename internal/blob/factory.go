package blob

import (
	"context"
	"fmt"
	"os"

	"myoview/internal/infra/blob/fs"
	memorystore "myoview/internal/infra/blob/memory"
	infraS3 "myoview/internal/infra/blob/s3"
)

// S3Config re-exports the S3 backend configuration.
type S3Config = infraS3.Config

// Open selects a Store using environment variables.
//
//	MYOVIEW_BLOB_DRIVER: fs|s3|memory (default fs)
//	MYOVIEW_BLOB_FS_ROOT: directory root when driver=fs (default ./exports)
//	(S3 specific variables are documented in the s3 backend)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("MYOVIEW_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	return OpenDriver(ctx, Driver(driver), os.Getenv("MYOVIEW_BLOB_FS_ROOT"))
}

// OpenDriver constructs the named backend. root is only used by the
// filesystem driver; s3 reads its settings from the environment.
func OpenDriver(ctx context.Context, driver Driver, root string) (Store, error) {
	switch driver {
	case DriverFilesystem, "":
		return NewFilesystem(root)
	case DriverS3:
		return infraS3.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem returns a filesystem-backed Store rooted at root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns an in-memory Store.
func NewMemory() Store { return memorystore.New() }

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return infraS3.New(ctx, cfg) }

// NewMockS3ForTests exposes the offline S3 fake for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
