package patches

import (
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	patchDirectoryPermissionsConstant = 0o755
	patchFilePermissionsConstant      = 0o644
)

// Store persists patch files.
type Store interface {
	ReadFile(path string) (string, error)
	WriteFile(path string, content string) error
	Exists(path string) (bool, error)
}

// FileStore implements Store on an afero file system.
type FileStore struct {
	fileSystem afero.Fs
}

// NewFileStore constructs a FileStore. A nil file system selects the operating system file system.
func NewFileStore(fileSystem afero.Fs) *FileStore {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	return &FileStore{fileSystem: fileSystem}
}

// ReadFile returns the file content. Missing files surface an error matching fs.ErrNotExist.
func (store *FileStore) ReadFile(path string) (string, error) {
	content, readError := afero.ReadFile(store.fileSystem, path)
	if readError != nil {
		return "", readError
	}
	return string(content), nil
}

// WriteFile replaces the file content, creating parent directories as needed.
func (store *FileStore) WriteFile(path string, content string) error {
	if mkdirError := store.fileSystem.MkdirAll(filepath.Dir(path), patchDirectoryPermissionsConstant); mkdirError != nil {
		return mkdirError
	}
	return afero.WriteFile(store.fileSystem, path, []byte(content), patchFilePermissionsConstant)
}

// Exists reports whether a file is present at path.
func (store *FileStore) Exists(path string) (bool, error) {
	return afero.Exists(store.fileSystem, path)
}
