package render

import (
	"github.com/cockroachdb/errors"

	"vkframe/src/render/driver"
)

// ExtensionEntry is one requested instance or device extension.
type ExtensionEntry struct {
	Name     string
	Optional bool
	// Feature is chained into device creation when the extension is enabled.
	Feature driver.Feature
	// MinVersion is the API version the extension needs; zero means any.
	MinVersion uint32
}

// Filtered is the result of matching requested extensions against what is available.
type Filtered struct {
	Names    []string
	Features []driver.Feature
	// Dropped lists optional entries that were not available.
	Dropped []string
}

// FilterExtensions keeps the requested entries present in available. Features
// are collected in request order. A missing required entry fails with
// ErrExtensionNotPresent.
func FilterExtensions(available []string, requested []ExtensionEntry, apiVersion uint32) (Filtered, error) {
	return filter(available, requested, apiVersion, ErrExtensionNotPresent)
}

// FilterLayers applies the same rules to layers and fails with ErrLayerNotPresent.
func FilterLayers(available []string, requested []ExtensionEntry) (Filtered, error) {
	return filter(available, requested, 0, ErrLayerNotPresent)
}

func filter(available []string, requested []ExtensionEntry, apiVersion uint32, missing error) (Filtered, error) {
	have := make(map[string]struct{}, len(available))
	for _, name := range available {
		have[name] = struct{}{}
	}

	var out Filtered
	seen := map[string]struct{}{}
	for _, entry := range requested {
		if _, dup := seen[entry.Name]; dup {
			continue
		}
		seen[entry.Name] = struct{}{}

		_, ok := have[entry.Name]
		if ok && entry.MinVersion != 0 && apiVersion != 0 && apiVersion < entry.MinVersion {
			ok = false
		}
		if !ok {
			if entry.Optional {
				out.Dropped = append(out.Dropped, entry.Name)
				continue
			}
			return Filtered{}, errors.Wrapf(missing, "%s", entry.Name)
		}
		out.Names = append(out.Names, entry.Name)
		if entry.Feature != nil {
			out.Features = append(out.Features, entry.Feature)
		}
	}
	return out, nil
}

// Required wraps names as mandatory entries.
func Required(names ...string) []ExtensionEntry {
	entries := make([]ExtensionEntry, len(names))
	for i, name := range names {
		entries[i] = ExtensionEntry{Name: name}
	}
	return entries
}
