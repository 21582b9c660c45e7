// Package kernel parses ELF64 and PE32+ executables and checks them for
// conformance with the BOOTBOOT loader protocol, the same rules the
// original tool's checkkernel() enforces: a single higher-half, page
// aligned load segment no larger than 16MiB, an entry point inside it,
// and -- if present -- the bootboot/environment/mmio/fb symbols sitting
// at properly aligned higher-half addresses.
package kernel

import (
	"github.com/hashicorp/go-multierror"

	"github.com/dargueta/mkimg/internal/hostfs"
	"github.com/dargueta/mkimg/internal/mkerrors"
)

// Check reads the executable at path and returns a Report describing its
// BOOTBOOT conformance. Unlike a hard build step, Check never fails for a
// non-conforming kernel -- an unrecognized or non-compliant file just gets
// Level 0 and an explanatory Failure string, mirroring the original
// advisory tool's always-exit-0 behavior. It returns an error only when
// the file itself can't be read or one of its headers fails to unpack.
func Check(path string) (*Report, *mkerrors.Error) {
	data, err := hostfs.ReadAll(path)
	if err != nil {
		return nil, err
	}

	diagnostics := diagnoseFormat(data)

	if isELF64(data) {
		r, perr := parseELF64(data)
		if perr != nil {
			return nil, mkerrors.Wrap(mkerrors.IO, "parsing ELF64 kernel", perr)
		}
		return r, nil
	}

	if mz, pe, ok := isPE32Plus(data); ok {
		r, perr := parsePE32Plus(data, pe)
		if perr != nil {
			return nil, mkerrors.Wrap(mkerrors.IO, "parsing PE32+ kernel", perr)
		}
		_ = mz
		return r, nil
	}

	return &Report{Format: "invalid", Failure: diagnostics.Error()}, nil
}

// diagnoseFormat accumulates why neither recognizer matched, for a more
// useful "invalid" message than the original tool's bare "invalid" line.
func diagnoseFormat(data []byte) *multierror.Error {
	var result *multierror.Error
	if len(data) < 16 {
		result = multierror.Append(result, errShort)
		return result
	}
	result = multierror.Append(result, errNotELF64, errNotPE32Plus)
	return result
}

var (
	errShort       = mkerrors.New(mkerrors.Config, "file too small to be a kernel image")
	errNotELF64    = mkerrors.New(mkerrors.Config, "not an ELF64 image (bad magic, class, or byte order)")
	errNotPE32Plus = mkerrors.New(mkerrors.Config, "not a PE32+ image (bad MZ/PE magic or optional header type)")
)
