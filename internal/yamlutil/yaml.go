// Package yamlutil wraps YAML parsing to isolate the external dependency.
// JSON documents are valid YAML, so item files in either format go through here.
package yamlutil

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// MaxInputSize limits YAML input to prevent memory exhaustion (default 1MB).
var MaxInputSize = 1 << 20

var (
	ErrNilData        = errors.New("yamlutil: nil or empty data")
	ErrNilDestination = errors.New("yamlutil: nil destination pointer")
	ErrInputTooLarge  = errors.New("yamlutil: input exceeds maximum size")
)

func validateInput(data []byte, v any, limit int) error {
	if len(data) == 0 {
		return ErrNilData
	}
	if len(data) > limit {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(data), limit)
	}
	if v == nil {
		return ErrNilDestination
	}
	return nil
}

func Unmarshal(data []byte, v any) error {
	return decode(data, v, false, MaxInputSize)
}

// UnmarshalStrict rejects unknown fields in the input.
func UnmarshalStrict(data []byte, v any) error {
	return decode(data, v, true, MaxInputSize)
}

func decode(data []byte, v any, strict bool, limit int) error {
	if err := validateInput(data, v, limit); err != nil {
		return err
	}
	var opts []yaml.DecodeOption
	if strict {
		opts = append(opts, yaml.Strict())
	}
	if err := yaml.UnmarshalWithOptions(data, v, opts...); err != nil {
		return fmt.Errorf("yamlutil: %w", err)
	}
	return nil
}

// ReadFile decodes the file at path into v, reading at most MaxInputSize+1
// bytes so oversized files fail without being loaded whole.
func ReadFile(path string, v any, strict bool) error {
	return ReadFileLimit(path, v, strict, MaxInputSize)
}

// ReadFileLimit is ReadFile with an explicit size limit in bytes.
func ReadFileLimit(path string, v any, strict bool, limit int) error {
	f, err := os.Open(path) // #nosec G304 -- path is user-provided
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, int64(limit)+1))
	if err != nil {
		return fmt.Errorf("yamlutil: reading %s: %w", path, err)
	}
	return decode(data, v, strict, limit)
}
