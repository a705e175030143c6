package storage

import (
	"fmt"
	"strings"
	"testing"
)

// testSpec is a simple ValidatingSpec for testing
type testSpec struct {
	Name  string `json:"name"`
	Valid bool   `json:"valid"`
}

func (s *testSpec) Validate() error {
	if !s.Valid {
		return fmt.Errorf("spec is invalid")
	}
	return nil
}

func TestDocument_Validate(t *testing.T) {
	tests := map[string]struct {
		doc     Document[*testSpec]
		expErrs []string
	}{
		"valid document": {
			doc: Document[*testSpec]{Version: 1, ID: "42", Spec: &testSpec{Valid: true}},
		},
		"uuid id is valid": {
			doc: Document[*testSpec]{Version: 1, ID: "0b7e5f9c-1d2a-4c3b-9e8f-7a6b5c4d3e2f", Spec: &testSpec{Valid: true}},
		},
		"version not set": {
			doc:     Document[*testSpec]{ID: "42", Spec: &testSpec{Valid: true}},
			expErrs: []string{"version must be set"},
		},
		"empty id": {
			doc:     Document[*testSpec]{Version: 1, Spec: &testSpec{Valid: true}},
			expErrs: []string{"id must be set"},
		},
		"id with spaces": {
			doc:     Document[*testSpec]{Version: 1, ID: "4 2", Spec: &testSpec{Valid: true}},
			expErrs: []string{"id must be alphanumeric"},
		},
		"invalid spec": {
			doc:     Document[*testSpec]{Version: 1, ID: "42", Spec: &testSpec{}},
			expErrs: []string{"spec is invalid"},
		},
		"multiple errors": {
			doc: Document[*testSpec]{Spec: &testSpec{}},
			expErrs: []string{
				"version must be set",
				"id must be set",
				"spec is invalid",
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.doc.Validate()

			if len(tt.expErrs) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			if err == nil {
				t.Errorf("expected errors %v, got nil", tt.expErrs)
				return
			}

			errStr := err.Error()
			for _, exp := range tt.expErrs {
				if !strings.Contains(errStr, exp) {
					t.Errorf("expected error to contain %q, got %q", exp, errStr)
				}
			}
		})
	}
}
