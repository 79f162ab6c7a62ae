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

package sysinfo

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

const maxParseSize = 1 << 20

// Option configures a Parser.
type Option func(*Parser)

// Parser reads small line-oriented system files (os-release, meminfo)
// into lines or key/value maps.
type Parser struct {
	kvDelimiter string
	vTrimChars  string
}

// WithKVDelimiter sets the key-value delimiter used by GetMap.
// Default is "=".
func WithKVDelimiter(d string) Option {
	return func(p *Parser) { p.kvDelimiter = d }
}

// WithVTrimChars sets characters trimmed from values in GetMap, such
// as the quotes os-release wraps around values.
func WithVTrimChars(chars string) Option {
	return func(p *Parser) { p.vTrimChars = chars }
}

// NewParser creates a Parser with the provided options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{kvDelimiter: "="}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetLines reads the file and returns its non-empty, non-comment lines.
// Files larger than 1MB or with invalid UTF-8 are rejected; these are
// kernel-provided files, anything bigger is not what we expect.
func (p *Parser) GetLines(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", path, err)
	}
	if len(b) > maxParseSize {
		return nil, fmt.Errorf("file %q exceeds maximum size of %d bytes", path, maxParseSize)
	}
	if !utf8.Valid(b) {
		return nil, fmt.Errorf("content of file %q is not valid UTF-8", path)
	}

	var lines []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// GetMap reads the file and parses each line into a key/value pair
// using the configured delimiter. Lines without the delimiter are
// skipped.
func (p *Parser) GetMap(path string) (map[string]string, error) {
	lines, err := p.GetLines(path)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(lines))
	for _, line := range lines {
		kv := strings.SplitN(line, p.kvDelimiter, 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		if p.vTrimChars != "" {
			value = strings.Trim(value, p.vTrimChars)
		}
		if key == "" || value == "" {
			continue
		}
		result[key] = value
	}
	return result, nil
}
