package catalog

import (
	"os"

	"github.com/teranos/catalogix/errors"
)

// Batch-level failures. Anything that goes wrong inside one record is a
// diagnostic line instead.
var (
	// ErrInputUnreadable means the input file is absent or cannot be read
	ErrInputUnreadable = errors.New("input not readable")

	// ErrInvalidJSON means the input is not a JSON array of objects
	ErrInvalidJSON = errors.New("invalid JSON input")

	// ErrEmptyInput is not a failure: the run writes placeholders and exits 0.
	// EmptyReason recovers the placeholder text.
	ErrEmptyInput = errors.New("empty input")
)

// Placeholder reasons written into empty artifacts.
const (
	EmptyReasonNoContent  = "No models in input"
	EmptyReasonEmptyArray = "0 models in array"
)

func emptyInput(reason string) error {
	return errors.WithDetail(errors.WithStack(ErrEmptyInput), reason)
}

// EmptyReason returns the placeholder reason carried by an ErrEmptyInput.
func EmptyReason(err error) string {
	if !errors.Is(err, ErrEmptyInput) {
		return ""
	}
	if details := errors.GetAllDetails(err); len(details) > 0 {
		return details[0]
	}
	return EmptyReasonNoContent
}

// ReadInput reads a local input file.
func ReadInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(errors.Mark(err, ErrInputUnreadable), "could not read input file %q", path)
		return nil, errors.WithHint(err, "check the path, or pass a URL such as https://host/models.json")
	}
	return data, nil
}
