package layout

import "errors"

// The following errors are returned (wrapped with context) by the layout package.
// They all describe misuse of the API and are never transient; match them with errors.Is.
var (
	// ErrUnknownFormat is returned when a VertexFormat or format tag is not in the format table.
	ErrUnknownFormat = errors.New("unknown vertex format")

	// ErrDuplicateAttributeName is returned when two attributes in one BufferLayout share a name.
	ErrDuplicateAttributeName = errors.New("duplicate attribute name")

	// ErrUnknownAttribute is returned when looking up an attribute name that was never declared.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrOutOfBounds is returned when a write or read would fall outside the backing buffer.
	ErrOutOfBounds = errors.New("attribute access out of bounds")

	// ErrArityMismatch is returned when the value count does not match the format's component count.
	ErrArityMismatch = errors.New("attribute value count mismatch")

	// ErrInvalidAttribute is returned for malformed attribute specs (empty name) or nil layouts.
	ErrInvalidAttribute = errors.New("invalid attribute")

	// ErrDuplicateShaderLocation is returned when two attributes bound together share a shader location.
	ErrDuplicateShaderLocation = errors.New("duplicate shader location")

	// ErrMissingShaderInput is returned when a vertex shader input has no attribute feeding it.
	ErrMissingShaderInput = errors.New("missing shader input")

	// ErrFormatMismatch is returned when an attribute's format differs from the shader input it feeds.
	ErrFormatMismatch = errors.New("attribute format does not match shader input")

	// ErrMisaligned is returned by BufferLayout.Aligned when an attribute offset breaks WebGPU alignment.
	ErrMisaligned = errors.New("attribute offset is misaligned")

	// ErrUnknownLayout is returned when looking up a layout label that is not registered.
	ErrUnknownLayout = errors.New("unknown buffer layout")
)
