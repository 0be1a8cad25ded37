package requirements

import (
	"bufio"
	"errors"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/package-url/packageurl-go"
	"github.com/samber/oops"
)

// A pinned manifest is a UTF-8 text file: a license/comment header followed
// by one `name==version` line per dependency, unique by package name.
var (
	pinRe       = regexp.MustCompile(`^([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)==([^\s=]+)$`)
	normalizeRe = regexp.MustCompile(`[-_.]+`)
)

// Pin is a single pinned dependency.
type Pin struct {
	Name    string
	Version string
	Line    int
}

// Normalized returns the canonical package name: lowercase, with runs of
// `-`, `_` and `.` folded to a single `-`. Installers treat names equal
// under this normalization as the same package.
func (p Pin) Normalized() string {
	return normalizeRe.ReplaceAllString(strings.ToLower(p.Name), "-")
}

// PURL renders the pin as a pypi package URL.
func (p Pin) PURL() string {
	return packageurl.NewPackageURL(packageurl.TypePyPi, "", p.Normalized(), p.Version, nil, "").ToString()
}

// Manifest is a parsed pinned manifest.
type Manifest struct {
	Header []string
	Pins   []Pin
}

// ParseFile parses and validates the pinned manifest at path.
func ParseFile(path string) (*Manifest, error) {
	errBuilder := oops.Code("parse_requirements_error").In("requirements").With("filePath", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, errBuilder.Wrapf(err, "failed to open the file")
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, errBuilder.Wrap(err)
	}
	return m, nil
}

// Parse reads a pinned manifest and validates its structure:
//
//   - every non-comment, non-blank line must be of the form `name==version`,
//   - package names must be unique after normalization,
//   - the comment header must precede all dependency lines.
//
// All violations are reported, joined into a single error.
func Parse(r io.Reader) (*Manifest, error) {
	errBuilder := oops.Code("parse_requirements_error").In("requirements")

	var (
		m    Manifest
		errs []error
		seen = make(map[string]int)
	)

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		switch {
		case text == "":
		case strings.HasPrefix(text, "#"):
			if len(m.Pins) > 0 {
				errs = append(errs, errBuilder.With("line", line).
					Errorf("comment after the first dependency: the header must precede all pins"))
				continue
			}
			m.Header = append(m.Header, text)
		default:
			match := pinRe.FindStringSubmatch(text)
			if match == nil {
				errs = append(errs, errBuilder.With("line", line).
					Errorf("malformed pin %q: want name==version", text))
				continue
			}
			pin := Pin{Name: match[1], Version: match[2], Line: line}
			if first, ok := seen[pin.Normalized()]; ok {
				errs = append(errs, errBuilder.With("line", line).
					Errorf("duplicate package %q: already pinned on line %d", pin.Name, first))
				continue
			}
			seen[pin.Normalized()] = line
			m.Pins = append(m.Pins, pin)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errBuilder.Wrapf(err, "failed to read the manifest")
	}

	if len(m.Header) == 0 && len(m.Pins) > 0 {
		errs = append(errs, errBuilder.Errorf("missing license header before the dependency lines"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &m, nil
}
