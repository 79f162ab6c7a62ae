// Copyright (c) 2025, PXELab Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package version parses lenient dotted versions, primarily kernel
// release strings like "6.8.0-41-generic", for minimum-version checks
// in the analyzer.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyVersion      = errors.New("version string is empty")
	ErrTooManyComponents = errors.New("version has more than 3 components")
	ErrNonNumeric        = errors.New("version component is not numeric")
)

// Version is a dotted version with 1 to 3 significant components.
// Trailing release metadata ("-41-generic", "+build4") is preserved
// in Extras and ignored by comparisons.
type Version struct {
	Major int `json:"major,omitempty" yaml:"major,omitempty"`
	Minor int `json:"minor,omitempty" yaml:"minor,omitempty"`
	Patch int `json:"patch,omitempty" yaml:"patch,omitempty"`

	// Precision is how many components are significant (1, 2, or 3).
	Precision int `json:"precision,omitempty" yaml:"precision,omitempty"`

	// Extras is the untouched remainder after the numeric part.
	Extras string `json:"extras,omitempty" yaml:"extras,omitempty"`
}

// Parse parses "1", "1.2", "1.2.3", an optional "v" prefix, and a
// preserved "-..." or "+..." remainder.
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, ErrEmptyVersion
	}
	s = strings.TrimPrefix(s, "v")

	var v Version
	mainPart := s
	// Split off extras only after a digit, so "-1" is not mistaken
	// for metadata.
	for i, ch := range s {
		if (ch == '-' || ch == '+') && i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
			mainPart = s[:i]
			v.Extras = s[i:]
			break
		}
	}

	parts := strings.Split(mainPart, ".")
	if len(parts) > 3 {
		return Version{}, ErrTooManyComponents
	}
	for i, part := range parts {
		num, err := strconv.Atoi(part)
		if err != nil || num < 0 {
			return Version{}, fmt.Errorf("%w: %q", ErrNonNumeric, part)
		}
		switch i {
		case 0:
			v.Major = num
		case 1:
			v.Minor = num
		case 2:
			v.Patch = num
		}
	}
	v.Precision = len(parts)
	return v, nil
}

// MustParse parses s and panics on failure. For hardcoded floors and
// test data only.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("MustParse: %v", err))
	}
	return v
}

// String renders the significant components, without Extras.
func (v Version) String() string {
	switch v.Precision {
	case 1:
		return strconv.Itoa(v.Major)
	case 2:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	default:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
}

// AtLeast reports whether v is equal to or newer than floor,
// comparing up to the lower of the two precisions.
func (v Version) AtLeast(floor Version) bool {
	return v.Compare(floor) >= 0
}

// Compare returns -1, 0, or 1 ordering v against other up to the
// lower precision of the two.
func (v Version) Compare(other Version) int {
	precision := v.Precision
	if other.Precision < precision {
		precision = other.Precision
	}

	if c := cmp(v.Major, other.Major); c != 0 {
		return c
	}
	if precision == 1 {
		return 0
	}
	if c := cmp(v.Minor, other.Minor); c != 0 {
		return c
	}
	if precision == 2 {
		return 0
	}
	return cmp(v.Patch, other.Patch)
}

func cmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
