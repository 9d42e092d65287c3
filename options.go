package quickentity

// ConvertOptions configures the RT<->QN converters, following the
// functional-options idiom used throughout the teacher's mod_*.go
// builders (app_builder.go's fluent *App methods, scaled to a value
// type since the core is a pure library rather than a stateful app).
type ConvertOptions struct {
	// Lossless controls SMatrix43 scale-detection precision (spec.md
	// §4.2): when true, any component != 1.0 triggers a scale emission;
	// when false, components are compared at 2-decimal precision.
	Lossless bool

	// Parallel enables the per-sub-entity first pass to run across
	// goroutines (spec.md §5); results are always reassembled in
	// insertion order regardless of this setting.
	Parallel bool

	// Logger receives conversion tracing. Defaults to a no-op logger.
	Logger Logger
}

// ConvertOption mutates a ConvertOptions in place.
type ConvertOption func(*ConvertOptions)

// NewConvertOptions builds a ConvertOptions with defaults (lossless,
// sequential, silent) and applies opts in order.
func NewConvertOptions(opts ...ConvertOption) ConvertOptions {
	o := ConvertOptions{Lossless: true, Parallel: false, Logger: NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLossless sets ConvertOptions.Lossless.
func WithLossless(lossless bool) ConvertOption {
	return func(o *ConvertOptions) { o.Lossless = lossless }
}

// WithParallel sets ConvertOptions.Parallel.
func WithParallel(parallel bool) ConvertOption {
	return func(o *ConvertOptions) { o.Parallel = parallel }
}

// WithLogger sets ConvertOptions.Logger.
func WithLogger(logger Logger) ConvertOption {
	return func(o *ConvertOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

func (o ConvertOptions) logger() Logger {
	if o.Logger == nil {
		return NewNopLogger()
	}
	return o.Logger
}

// PatchOptions configures the patch engine's diff/apply entry points.
type PatchOptions struct {
	Logger Logger
}

// PatchOption mutates a PatchOptions in place.
type PatchOption func(*PatchOptions)

// NewPatchOptions builds a PatchOptions with a silent default logger.
func NewPatchOptions(opts ...PatchOption) PatchOptions {
	o := PatchOptions{Logger: NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithPatchLogger sets PatchOptions.Logger.
func WithPatchLogger(logger Logger) PatchOption {
	return func(o *PatchOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

func (o PatchOptions) logger() Logger {
	if o.Logger == nil {
		return NewNopLogger()
	}
	return o.Logger
}
