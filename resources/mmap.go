package resources

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

// OpenMmap maps the file at path read-only and returns its bytes along
// with a cleanup function that unmaps and closes the file. Weight
// checkpoints are read this way rather than copied into the heap.
func OpenMmap(path string) ([]byte, func() error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	fileMmap, mmapErr := mmap.Map(file, mmap.RDONLY, 0)
	if mmapErr != nil {
		file.Close()
		return nil, nil, mmapErr
	}
	cleanup := func() error {
		unmapErr := fileMmap.Unmap()
		closeErr := file.Close()
		if unmapErr != nil {
			return unmapErr
		}
		return closeErr
	}
	return fileMmap, cleanup, nil
}
