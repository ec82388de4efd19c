package securefs

import (
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/birdnet-api2ha/internal/errors"
	"github.com/tphakala/birdnet-api2ha/internal/logger"
)

// SecureFS provides read-only file access restricted to one directory
// using os.Root.
//
// Security guarantees:
// - Prevents directory traversal attacks using "../" or other relative paths
// - Prevents access via symlinks that point outside the base directory
// - Absolute clip references are accepted only when they lie under the base
type SecureFS struct {
	baseDir string   // The base directory that all operations are restricted to
	root    *os.Root // The sandboxed filesystem root
	log     logger.Logger
}

// New opens baseDir as a sandbox. The directory must already exist; clips
// are owned by the upstream application and are never created here.
func New(baseDir string, log logger.Logger) (*SecureFS, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, errors.New(err).
			Component("securefs").
			Category(errors.CategoryFileIO).
			Context("base_dir", absPath).
			Build()
	}

	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelError, nil)
	}

	return &SecureFS{
		baseDir: absPath,
		root:    root,
		log:     log,
	}, nil
}

// BaseDir returns the absolute base directory.
func (sfs *SecureFS) BaseDir() string {
	return sfs.baseDir
}

// isPathPrefix reports whether absTarget equals absBase or lies below it.
func isPathPrefix(absBase, absTarget string) bool {
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(filepath.Separator))
}

// RelativePath converts a clip reference into a path relative to the base
// directory. Relative references are taken as relative to the base;
// absolute ones must lie under it.
func (sfs *SecureFS) RelativePath(clip string) (string, error) {
	if strings.TrimSpace(clip) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	if filepath.IsAbs(clip) {
		absPath := filepath.Clean(clip)
		if !isPathPrefix(sfs.baseDir, absPath) {
			return "", fmt.Errorf("%w: path %s is outside allowed directory %s", ErrPathTraversal, clip, sfs.baseDir)
		}
		relPath, err := filepath.Rel(sfs.baseDir, absPath)
		if err != nil {
			return "", fmt.Errorf("failed to make path relative: %w", err)
		}
		clip = relPath
	}

	return sfs.ValidateRelativePath(clip)
}

// ValidateRelativePath validates a path assumed to be relative to the base directory.
// It returns a cleaned, validated path or an error if the path is not valid.
func (sfs *SecureFS) ValidateRelativePath(relPath string) (string, error) {
	cleanedPath := filepath.Clean(filepath.FromSlash(relPath))

	if filepath.IsAbs(cleanedPath) {
		return "", fmt.Errorf("%w: path must be relative, got '%s'", ErrInvalidPath, relPath)
	}
	if !filepath.IsLocal(cleanedPath) {
		return "", fmt.Errorf("%w: '%s' (cleaned from '%s')", ErrPathTraversal, cleanedPath, relPath)
	}
	return cleanedPath, nil
}

// Stat returns file info for a clip reference.
func (sfs *SecureFS) Stat(clip string) (fs.FileInfo, error) {
	relPath, err := sfs.RelativePath(clip)
	if err != nil {
		return nil, err
	}
	return sfs.root.Stat(relPath)
}

// mapOpenErrorToHTTP converts file open errors to appropriate HTTP errors
func (sfs *SecureFS) mapOpenErrorToHTTP(err error, effectivePath string) *echo.HTTPError {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return echo.NewHTTPError(http.StatusNotFound, "audio clip not found").SetInternal(err)
	case errors.Is(err, fs.ErrPermission):
		return echo.NewHTTPError(http.StatusForbidden, "access denied").SetInternal(err)
	case errors.Is(err, ErrPathTraversal) || errors.Is(err, ErrInvalidPath):
		// The reference came from the database; treat it as missing rather
		// than echoing the rejected path back.
		sfs.log.Warn("rejected clip path",
			logger.String("path", effectivePath),
			logger.Error(err))
		return echo.NewHTTPError(http.StatusNotFound, "audio clip not found").SetInternal(err)
	case errors.Is(err, ErrNotRegularFile):
		return echo.NewHTTPError(http.StatusNotFound, "audio clip not found").SetInternal(err)
	default:
		sfs.log.Error("unhandled error serving file",
			logger.String("path", effectivePath),
			logger.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "error serving file").SetInternal(err)
	}
}

// getContentType determines the content type for a file, using extension-based detection
func getContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}

// ServeClip writes the clip referenced by clip to the response, honoring
// range and conditional requests.
func (sfs *SecureFS) ServeClip(c echo.Context, clip string) error {
	relPath, err := sfs.RelativePath(clip)
	if err != nil {
		return sfs.mapOpenErrorToHTTP(err, clip)
	}

	f, err := sfs.root.Open(relPath)
	if err != nil {
		return sfs.mapOpenErrorToHTTP(err, relPath)
	}
	defer func() {
		if err := f.Close(); err != nil {
			sfs.log.Warn("failed to close file", logger.Error(err))
		}
	}()

	stat, err := f.Stat()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get file info").SetInternal(err)
	}
	if !stat.Mode().IsRegular() {
		return sfs.mapOpenErrorToHTTP(ErrNotRegularFile, relPath)
	}

	if c.Response().Header().Get(echo.HeaderContentType) == "" {
		c.Response().Header().Set(echo.HeaderContentType, getContentType(relPath))
	}

	http.ServeContent(c.Response(), c.Request(), filepath.Base(relPath), stat.ModTime(), f)
	return nil
}

// Close closes the underlying Root
func (sfs *SecureFS) Close() error {
	if sfs.root != nil {
		return sfs.root.Close()
	}
	return nil
}
