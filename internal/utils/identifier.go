package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	apperrors "kzs-map/internal/errors"
)

var digitRun = regexp.MustCompile(`\d+`)

// ExtractIdentifier returns the first run of digits in the base name of path.
// "images/IMG_0042-2.jpg" yields 42. Names without digits wrap ErrMissingIdentifier;
// a run too large for int64 wraps ErrIdentifierOutOfRange.
func ExtractIdentifier(path string) (int64, error) {
	name := filepath.Base(path)
	run := digitRun.FindString(name)
	if run == "" {
		return 0, fmt.Errorf("%w: %s", apperrors.ErrMissingIdentifier, name)
	}

	id, err := strconv.ParseInt(run, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", apperrors.ErrIdentifierOutOfRange, name, err)
	}
	return id, nil
}
