package vm

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/daimatz/gojvm/pkg/classarea"
	"github.com/daimatz/gojvm/pkg/classfile"
)

// JmodClassLoader loads classes from a JDK jmod file (the java.base
// module's classes live under a "classes/" prefix inside the zip payload
// that follows the jmod's 4-byte "JM\x01\x00" header).
type JmodClassLoader struct {
	JmodPath string
	Cache    map[string]*classfile.RawClass

	zipData   []byte
	zipReader *zip.Reader
}

// NewJmodClassLoader creates a loader reading classes out of jmodPath.
func NewJmodClassLoader(jmodPath string) *JmodClassLoader {
	return &JmodClassLoader{
		JmodPath: jmodPath,
		Cache:    make(map[string]*classfile.RawClass),
	}
}

func (cl *JmodClassLoader) ensureZipReader() error {
	if cl.zipReader != nil {
		return nil
	}

	f, err := os.Open(cl.JmodPath)
	if err != nil {
		return fmt.Errorf("jmod: opening %s: %w", cl.JmodPath, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("jmod: stat %s: %w", cl.JmodPath, err)
	}

	data := make([]byte, stat.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		return fmt.Errorf("jmod: reading %s: %w", cl.JmodPath, err)
	}

	cl.zipData = data[4:] // skip "JM\x01\x00" header
	cl.zipReader, err = zip.NewReader(bytes.NewReader(cl.zipData), int64(len(cl.zipData)))
	if err != nil {
		return fmt.Errorf("jmod: opening zip: %w", err)
	}
	return nil
}

// LoadClass implements classarea.ClassLoader.
func (cl *JmodClassLoader) LoadClass(name string) (*classfile.RawClass, error) {
	if cf, ok := cl.Cache[name]; ok {
		return cf, nil
	}

	if err := cl.ensureZipReader(); err != nil {
		return nil, err
	}

	target := "classes/" + name + ".class"
	for _, file := range cl.zipReader.File {
		if file.Name == target {
			rc, err := file.Open()
			if err != nil {
				return nil, fmt.Errorf("jmod: opening %s: %w", target, err)
			}
			defer rc.Close()

			cf, err := classfile.Parse(rc)
			if err != nil {
				return nil, fmt.Errorf("jmod: parsing %s: %w", name, err)
			}
			cl.Cache[name] = cf
			return cf, nil
		}
	}

	return nil, fmt.Errorf("jmod: class %s not found in %s", name, cl.JmodPath)
}

var _ classarea.ClassLoader = (*JmodClassLoader)(nil)

// UserClassLoader loads user classes from a classpath directory,
// delegating to a parent loader (typically a JmodClassLoader for
// java.base) first.
type UserClassLoader struct {
	ClassPath string
	Parent    classarea.ClassLoader
	Cache     map[string]*classfile.RawClass
}

// NewUserClassLoader creates a loader reading from classPath, falling
// back to parent for classes it doesn't have.
func NewUserClassLoader(classPath string, parent classarea.ClassLoader) *UserClassLoader {
	return &UserClassLoader{
		ClassPath: classPath,
		Parent:    parent,
		Cache:     make(map[string]*classfile.RawClass),
	}
}

// LoadClass implements classarea.ClassLoader.
func (cl *UserClassLoader) LoadClass(name string) (*classfile.RawClass, error) {
	if cf, ok := cl.Cache[name]; ok {
		return cf, nil
	}
	if cl.Parent != nil {
		if cf, err := cl.Parent.LoadClass(name); err == nil {
			return cf, nil
		}
	}
	path := filepath.Join(cl.ClassPath, name+".class")
	cf, err := classfile.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("user: class %s not found: %w", name, err)
	}
	cl.Cache[name] = cf
	return cf, nil
}

var _ classarea.ClassLoader = (*UserClassLoader)(nil)
