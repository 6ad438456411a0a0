// Package bridge converts volumetric scans into the raster format the
// vessel analysis pipeline consumes. It normalizes sample values,
// remaps physical spacing metadata to the pipeline's axis convention
// and writes a grayscale TIFF stack plus a plain-text metadata sidecar.
package bridge

// Options carries the tunable conversion parameters. The defaults
// reproduce the pipeline's historical behavior; both values are
// explicit here so the bridge can be exercised against other target
// bit depths and spacing fallbacks.
type Options struct {
	// Levels is the number of intensity levels in the normalized
	// output. The default of 65536 targets 16-bit unsigned samples.
	Levels int

	// DefaultSpacing is the spacing string reported when the source
	// header carries fewer than three axes.
	DefaultSpacing string
}

// DefaultOptions returns the conversion parameters used by the
// pipeline: 16-bit output and isotropic unit spacing as the fallback.
func DefaultOptions() Options {
	return Options{
		Levels:         65536,
		DefaultSpacing: "1.0,1.0,1.0",
	}
}
