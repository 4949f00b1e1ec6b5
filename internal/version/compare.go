package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rxtech-lab/argo-backfill/pkg/errors"
)

// CheckSchemaCompatibility checks whether a cache created with storedVersion
// can be used by a build whose schema is currentVersion. Major and minor must
// match exactly; patch may differ. A "main" version on either side marks a
// development build and skips the check entirely.
//
// Incompatible versions return a *errors.SchemaMismatchError.
func CheckSchemaCompatibility(currentVersion, storedVersion string) error {
	currentVersion = strings.TrimPrefix(currentVersion, "v")
	storedVersion = strings.TrimPrefix(storedVersion, "v")

	if currentVersion == "main" || storedVersion == "main" {
		return nil
	}

	currentSemver, err := semver.NewVersion(currentVersion)
	if err != nil {
		return fmt.Errorf("invalid schema version '%s': %w", currentVersion, err)
	}

	storedSemver, err := semver.NewVersion(storedVersion)
	if err != nil {
		return fmt.Errorf("invalid stored schema version '%s': %w", storedVersion, err)
	}

	if currentSemver.Major() != storedSemver.Major() {
		return errors.NewSchemaMismatchErrorf(currentVersion, storedVersion,
			"major schema version mismatch: build writes %d.x.x but cache holds %d.x.x",
			currentSemver.Major(), storedSemver.Major())
	}

	if currentSemver.Minor() != storedSemver.Minor() {
		return errors.NewSchemaMismatchErrorf(currentVersion, storedVersion,
			"minor schema version mismatch: build writes %d.%d.x but cache holds %d.%d.x",
			currentSemver.Major(), currentSemver.Minor(),
			storedSemver.Major(), storedSemver.Minor())
	}

	return nil
}
