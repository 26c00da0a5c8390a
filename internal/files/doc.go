// Package files provides file system operations and discovery utilities
// for the sczmerge job.
//
// This package contains two main components:
//
// Discovery: walks the input tree recursively and returns the matching input
// files in lexicographic path order. Exclusion rules keep the run's own
// artifacts, an output subtree nested inside the input tree and any file whose
// base name matches a configured glob out of the result.
//
// Manager: owns the output side of a run. It creates the output directory and
// replaces artifacts atomically through a temporary sibling file.
//
// Example usage:
//
//	discovery := files.NewDiscovery(paths.InputDir)
//	inputs, err := discovery.FindFiles(paths.InputDir, files.DiscoveryOptions{
//	    Extension:    ".csv",
//	    ExcludePaths: paths.Artifacts(),
//	})
//
//	manager := files.NewManager(paths, logger)
//	size, err := manager.WriteAtomic(paths.CSVFile, func(w io.Writer) error {
//	    return writeTable(w)
//	})
package files
