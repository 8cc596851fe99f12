/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

// Package loader reads program and firmware images into memory.
package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/spf13/afero"
)

type Format string

const (
	// Binary images are copied byte for byte.
	Binary Format = "bin"
	// Hex images carry one hexadecimal byte per line. Loading stops at the
	// first line that does not start with a hex byte.
	Hex Format = "hex"
	// Auto picks the format from the file extension, defaulting to Binary.
	Auto Format = ""
)

var ErrUnknownFormat = errors.New("unknown image format")

// Range is the half open span [Start, End) of linear memory an image
// occupies.
type Range struct {
	Start, End memory.Pointer
}

func (r Range) String() string {
	return fmt.Sprintf("%05Xh..%05Xh", uint32(r.Start), uint32(r.End))
}

func (r Range) Len() int {
	return int(r.End - r.Start)
}

// FormatOf guesses the format of name from its extension.
func FormatOf(name string) Format {
	if strings.EqualFold(filepath.Ext(name), ".hex") {
		return Hex
	}
	return Binary
}

// Decode turns raw file contents into image bytes.
func Decode(data []byte, format Format) ([]byte, error) {
	switch format {
	case Binary:
		return data, nil
	case Hex:
		return decodeHex(data), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func decodeHex(data []byte) []byte {
	var out []byte
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) > 2 {
			line = line[:2]
		}
		v, err := strconv.ParseUint(line, 16, 8)
		if err != nil {
			break
		}
		out = append(out, byte(v))
	}
	return out
}

// ReadImage reads and decodes the image at name.
func ReadImage(fs afero.Fs, name string, format Format) ([]byte, error) {
	if format == Auto {
		format = FormatOf(name)
	}
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return img, nil
}

// Load reads the image at name and writes it to mem starting at addr. Writes
// wrap at the top of the address space.
func Load(fs afero.Fs, mem memory.Memory, name string, format Format, addr memory.Pointer) (Range, error) {
	img, err := ReadImage(fs, name, format)
	if err != nil {
		return Range{}, err
	}

	start := addr & memory.AddressMask
	for i, v := range img {
		mem.WriteByte((start+memory.Pointer(i))&memory.AddressMask, v)
	}
	return Range{Start: start, End: start + memory.Pointer(len(img))}, nil
}
