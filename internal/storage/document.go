package storage

import (
	"fmt"
	"regexp"

	"github.com/pixil98/go-errors"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9-]*$`)

// CurrentVersion is the document envelope version written by this build.
const CurrentVersion = 1

type ValidatingSpec interface {
	Validate() error
}

// Document is the JSON envelope stored in every entity row's data column.
type Document[T ValidatingSpec] struct {
	Version uint   `json:"version"`
	ID      string `json:"id"`
	Spec    T      `json:"spec"`
}

func (d *Document[T]) Validate() error {
	el := errors.NewErrorList()

	if d.Version == 0 {
		el.Add(fmt.Errorf("version must be set"))
	}

	if d.ID == "" {
		el.Add(fmt.Errorf("id must be set"))
	}

	if !identifierPattern.MatchString(d.ID) {
		el.Add(fmt.Errorf("id must be alphanumeric"))
	}

	el.Add(d.Spec.Validate())

	return el.Err()
}
