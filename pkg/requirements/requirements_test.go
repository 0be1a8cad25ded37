package requirements_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brainatlas/atlasfetch/pkg/requirements"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantPins []requirements.Pin
		wantErrs []string
	}{
		{
			name: "happy path",
			input: `# Copyright (C) 2021 Example Org
# Distributed under the LGPL v3.

numpy==1.21.0
requests==2.26.0

Pillow==8.3.2
`,
			wantPins: []requirements.Pin{
				{Name: "numpy", Version: "1.21.0", Line: 4},
				{Name: "requests", Version: "2.26.0", Line: 5},
				{Name: "Pillow", Version: "8.3.2", Line: 7},
			},
		},
		{
			name:     "empty file",
			input:    "",
			wantPins: nil,
		},
		{
			name: "sad path with malformed pin",
			input: `# header
numpy>=1.21.0
`,
			wantErrs: []string{`malformed pin "numpy>=1.21.0"`},
		},
		{
			name: "sad path with double equality",
			input: `# header
numpy==1.21.0==2
`,
			wantErrs: []string{"malformed pin"},
		},
		{
			name: "sad path with duplicate package",
			input: `# header
numpy==1.21.0
numpy==1.22.0
`,
			wantErrs: []string{`duplicate package "numpy": already pinned on line 2`},
		},
		{
			name: "duplicates are detected after name normalization",
			input: `# header
Foo_Bar==1.0
foo-bar==2.0
foo.bar==3.0
`,
			wantErrs: []string{
				`duplicate package "foo-bar"`,
				`duplicate package "foo.bar"`,
			},
		},
		{
			name: "sad path with comment after the first pin",
			input: `# header
numpy==1.21.0
# stray comment
requests==2.26.0
`,
			wantErrs: []string{"the header must precede all pins"},
		},
		{
			name: "sad path with missing header",
			input: `numpy==1.21.0
`,
			wantErrs: []string{"missing license header"},
		},
		{
			name: "all violations are reported",
			input: `numpy==1.21.0
numpy==1.22.0
broken line
`,
			wantErrs: []string{
				"duplicate package",
				"malformed pin",
				"missing license header",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := requirements.Parse(strings.NewReader(tt.input))
			if len(tt.wantErrs) > 0 {
				require.Error(t, err)
				for _, want := range tt.wantErrs {
					require.ErrorContains(t, err, want)
				}
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.wantPins, m.Pins)
		})
	}
}

func TestParse_Header(t *testing.T) {
	input := `# The package atldld is a tool to download atlas data.
#
# Copyright (C) 2021 EPFL/Blue Brain Project

numpy==1.21.0
`
	m, err := requirements.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, m.Header, 3)
	require.Equal(t, "# The package atldld is a tool to download atlas data.", m.Header[0])
}

func TestPin_Normalized(t *testing.T) {
	tests := []struct {
		name string
		pin  requirements.Pin
		want string
	}{
		{name: "lowercase passthrough", pin: requirements.Pin{Name: "numpy"}, want: "numpy"},
		{name: "case folding", pin: requirements.Pin{Name: "Pillow"}, want: "pillow"},
		{name: "separator runs", pin: requirements.Pin{Name: "Foo__Bar.-baz"}, want: "foo-bar-baz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.pin.Normalized())
		})
	}
}

func TestPin_PURL(t *testing.T) {
	pin := requirements.Pin{Name: "Scikit_Image", Version: "0.18.3"}
	require.Equal(t, "pkg:pypi/scikit-image@0.18.3", pin.PURL())
}
