package migrator

// Layer is a single configured migrations directory.
type Layer struct {
	Path string
	// Base is true for the canonical migrations directory. There is exactly
	// one base layer, and it has the lowest priority.
	Base bool
}

// Resolve returns the order in which migration layers are applied: the extra
// directories in reverse declaration order, followed by the base directory.
// The most specific layers are applied first, so that deployment-specific
// directories can seed the database before the canonical migrations run.
//
// Paths are not deduplicated, and no filesystem access is done. The base
// layer is always present, even if it doesn't exist on disk.
func Resolve(base string, extras []string) []Layer {
	layers := make([]Layer, 0, len(extras)+1)
	for i := len(extras) - 1; i >= 0; i-- {
		layers = append(layers, Layer{Path: extras[i]})
	}
	layers = append(layers, Layer{Path: base, Base: true})

	return layers
}

// hasExtras returns true if any of the layers is not the base layer.
func hasExtras(layers []Layer) bool {
	for _, l := range layers {
		if !l.Base {
			return true
		}
	}
	return false
}
