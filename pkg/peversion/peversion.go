// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package peversion reads the embedded file version of a Windows
// executable: the VS_FIXEDFILEINFO record inside the PE resource section.
// A package manifest that names a main_program promises that this version
// is readable, so the validators need to actually read it.
package peversion

import (
	"debug/pe"
	"encoding/binary"
	"fmt"
)

// fixedFileInfoSignature starts a VS_FIXEDFILEINFO record.
const fixedFileInfoSignature = 0xFEEF04BD

const dataDirResourceIndex = 2 // IMAGE_DIRECTORY_ENTRY_RESOURCE

// Read returns the four-part file version ("M.m.p.b") embedded in the PE
// file at path, or an error if the file is not a PE image or carries no
// readable version resource.
func Read(path string) (string, error) {
	f, err := pe.Open(path)
	if err != nil {
		return "", fmt.Errorf("peversion: %s: not a PE image: %w", path, err)
	}
	defer f.Close()

	rsrc, err := resourceData(f)
	if err != nil {
		return "", fmt.Errorf("peversion: %s: %w", path, err)
	}

	ms, ls, ok := findFixedFileVersion(rsrc)
	if !ok {
		return "", fmt.Errorf("peversion: %s: no VS_FIXEDFILEINFO record in resource section", path)
	}
	return fmt.Sprintf("%d.%d.%d.%d", ms>>16, ms&0xFFFF, ls>>16, ls&0xFFFF), nil
}

// ReadFile is Read for callers that only want the readability check,
// discarding the version string.
func ReadFile(path string) error {
	_, err := Read(path)
	return err
}

// resourceData returns the raw bytes of the section holding the image's
// resource table.
func resourceData(f *pe.File) ([]byte, error) {
	var rva, size uint32
	switch hdr := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if int(hdr.NumberOfRvaAndSizes) <= dataDirResourceIndex {
			return nil, fmt.Errorf("no resource data directory")
		}
		rva = hdr.DataDirectory[dataDirResourceIndex].VirtualAddress
		size = hdr.DataDirectory[dataDirResourceIndex].Size
	case *pe.OptionalHeader64:
		if int(hdr.NumberOfRvaAndSizes) <= dataDirResourceIndex {
			return nil, fmt.Errorf("no resource data directory")
		}
		rva = hdr.DataDirectory[dataDirResourceIndex].VirtualAddress
		size = hdr.DataDirectory[dataDirResourceIndex].Size
	default:
		return nil, fmt.Errorf("missing optional header")
	}
	if rva == 0 || size == 0 {
		return nil, fmt.Errorf("no resource section")
	}

	for _, s := range f.Sections {
		if rva >= s.VirtualAddress && rva < s.VirtualAddress+s.VirtualSize {
			data, err := s.Data()
			if err != nil {
				return nil, fmt.Errorf("reading resource section: %w", err)
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("resource directory points outside every section")
}

// findFixedFileVersion scans data for a VS_FIXEDFILEINFO record and returns
// its dwFileVersionMS/dwFileVersionLS pair. Scanning for the record's
// signature sidesteps walking the resource directory tree and the
// variable-length VS_VERSIONINFO header in front of the record; the
// signature plus the structure-version word behind it are specific enough
// that a false positive would require a crafted file.
func findFixedFileVersion(data []byte) (ms, ls uint32, ok bool) {
	const recordLen = 0x34 // sizeof(VS_FIXEDFILEINFO)
	for off := 0; off+recordLen <= len(data); off += 4 {
		if binary.LittleEndian.Uint32(data[off:]) != fixedFileInfoSignature {
			continue
		}
		// dwStrucVersion's high word is 1 for every Windows release.
		if binary.LittleEndian.Uint16(data[off+6:]) != 1 {
			continue
		}
		return binary.LittleEndian.Uint32(data[off+8:]), binary.LittleEndian.Uint32(data[off+12:]), true
	}
	return 0, 0, false
}
