package layout

// BufferLayoutOption is a functional option used to configure a BufferLayout during construction.
type BufferLayoutOption func(*bufferLayout)

// WithLabel sets the debug label of the layout. GPU vertex buffers created from the layout reuse it.
//
// Parameters:
//   - label: the label to use
//
// Returns:
//   - BufferLayoutOption: a function that sets the label for this layout
func WithLabel(label string) BufferLayoutOption {
	return func(l *bufferLayout) {
		l.label = label
	}
}

// WithStepMode sets whether the layout advances per vertex or per instance. Defaults to StepModeVertex.
//
// Parameters:
//   - mode: the step mode to use
//
// Returns:
//   - BufferLayoutOption: a function that sets the step mode for this layout
func WithStepMode(mode StepMode) BufferLayoutOption {
	return func(l *bufferLayout) {
		l.stepMode = mode
	}
}
