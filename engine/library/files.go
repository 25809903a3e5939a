package library

import (
	"os"
)

// Touch creates an empty file if it does not exist.
func Touch(path string) error {
	file, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	return file.Close()
}

// CreateDirectoryIfNotExists makes the directory and any missing parents.
func CreateDirectoryIfNotExists(path string) error {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}
	return err
}
