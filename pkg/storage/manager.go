package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	errs "fcsync/pkg/errors"
	"fcsync/pkg/models"

	"golang.org/x/text/unicode/norm"
)

// MetadataFile is the snapshot written into every post directory
const MetadataFile = "metadata.json"

var invalidPathChars = regexp.MustCompile(`[<>"?\\/*:|]`)

// CleanPath replaces characters that are illegal in file names on common
// filesystems with a space and trims trailing whitespace and dots. Names are
// NFC normalized so the same title always maps to the same path.
func CleanPath(name string) string {
	cleaned := invalidPathChars.ReplaceAllString(norm.NFC.String(name), " ")
	return strings.TrimRightFunc(cleaned, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
}

// Manager maps channels and posts onto the output tree
type Manager struct {
	root string
}

// NewManager creates a manager rooted at root, creating it if needed
func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errs.Filesystem(err, "create output directory %s", root)
	}
	return &Manager{root: root}, nil
}

// Root returns the output directory
func (m *Manager) Root() string {
	return m.root
}

// ChannelDir returns root/<owner> (<channel>)
func (m *Manager) ChannelDir(channel models.Channel) string {
	return filepath.Join(m.root, CleanPath(fmt.Sprintf("%s (%s)", channel.OwnerName, channel.Name)))
}

// PostDir returns root/<owner> (<channel>)/<YYYY-MM-DD>-<title>-<id>.
// The id keeps same-day posts with identical titles apart.
func (m *Manager) PostDir(channel models.Channel, post models.Post) string {
	name := fmt.Sprintf("%s-%s-%d", post.PublishedAt.UTC().Format("2006-01-02"), post.Title, post.ID)
	return filepath.Join(m.ChannelDir(channel), CleanPath(name))
}

// EnsureDir creates dir and its parents
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Filesystem(err, "create directory %s", dir)
	}
	return nil
}

// Exists reports whether path exists. Errors other than absence are
// filesystem errors.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errs.Filesystem(err, "stat %s", path)
}

// SourceError marks a failure to read from the source while writing a file,
// as opposed to a failure of the filesystem itself
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("read source: %v", e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

// WriteAtomic streams r into path through a temporary file and a rename,
// so an interrupted write never leaves a file that passes an existence check.
// Read failures are returned as *SourceError, everything else as a
// filesystem error.
func WriteAtomic(path string, r io.Reader) (int64, error) {
	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, errs.Filesystem(err, "create temporary file %s", tempFile)
	}

	src := &sourceReader{r: r}
	n, err := io.Copy(out, src)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		if src.err != nil {
			return n, &SourceError{Err: src.err}
		}
		return n, errs.Filesystem(err, "write %s", path)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return n, errs.Filesystem(closeErr, "close %s", path)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return n, errs.Filesystem(err, "rename temporary file to %s", path)
	}

	return n, nil
}

// RemoveIfOnlyMetadata deletes dir when it holds nothing besides the
// metadata snapshot. It reports whether the directory was removed.
func RemoveIfOnlyMetadata(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errs.Filesystem(err, "read directory %s", dir)
	}

	for _, entry := range entries {
		if entry.Name() != MetadataFile {
			return false, nil
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return false, errs.Filesystem(err, "remove directory %s", dir)
	}
	return true, nil
}
