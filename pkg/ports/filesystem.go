package ports

// FileSystem abstracts file system operations.
type FileSystem interface {
	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if necessary.
	WriteFile(path string, data []byte) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string) error

	// Exists checks if a file or directory exists.
	Exists(path string) (bool, error)
}

// FrameDumper saves captured frames for debugging.
type FrameDumper interface {
	// Enabled returns true if frames should be dumped.
	Enabled() bool

	// SaveFrame saves the image bytes of the index-th captured frame.
	SaveFrame(index int, timestamp float64, data []byte) error
}
