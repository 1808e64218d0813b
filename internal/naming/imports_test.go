package naming

import (
	"testing"

	"myoview/testutil"
)

func TestNoStorageOrPresentationImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.StorageImportForbidden, "naming must not touch storage")
	testutil.AssertNoDirectImports(t, ".", testutil.PresentationImportForbidden, "naming must not depend on ui or scene")
}
