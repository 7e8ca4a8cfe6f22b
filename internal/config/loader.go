package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-ini/ini"
)

// Name is the name of the configuration file.
const Name = ".ustar"

// Loader can be used for loading .ustar configuration as well as overridden with default settings.
type Loader struct {
	// Profile is the AWS profile to use, taking precedence over the [s3] profile setting.
	Profile string

	cfg           *ini.File
	s3clientCache sync.Map
}

// Load will traverse the directory hierarchy upwards from the working directory to find the first ".ustar" file
// available and load its contents into the Loader.
//
// The name of the .ustar file is returned, or an empty string if none was found.
func (l *Loader) Load(ctx context.Context) (string, error) {
	cur, err := os.Getwd()
	if err != nil {
		return "", err
	}

	return l.LoadFrom(ctx, cur)
}

// LoadFrom is a variant of Load that starts the search from the given directory.
func (l *Loader) LoadFrom(ctx context.Context, dir string) (string, error) {
	cur, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		path := filepath.Join(cur, Name)
		fi, err := os.Stat(path)
		switch {
		case err == nil && !fi.IsDir():
			if l.cfg, err = ini.Load(path); err != nil {
				l.cfg = ini.Empty()
				return path, err
			}

			return path, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", err
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			l.cfg = ini.Empty()
			return "", nil
		}

		cur = parent
	}
}

// LoadProfile is a convenient method to set Loader.Profile then call Load.
func (l *Loader) LoadProfile(ctx context.Context, profile string) (string, error) {
	l.Profile = profile
	return l.Load(ctx)
}

func (l *Loader) file() *ini.File {
	if l.cfg == nil {
		return ini.Empty()
	}

	return l.cfg
}

// DefaultLoader is the default Loader instance for package-level methods.
var DefaultLoader = &Loader{cfg: ini.Empty()}

// Load calls Loader.Load on the DefaultLoader instance.
func Load(ctx context.Context) (string, error) {
	return DefaultLoader.Load(ctx)
}

// LoadProfile calls Loader.LoadProfile on the DefaultLoader instance.
func LoadProfile(ctx context.Context, profile string) (string, error) {
	return DefaultLoader.LoadProfile(ctx, profile)
}
