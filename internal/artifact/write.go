package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/renderinc/blogpipe/internal/config"
	"github.com/renderinc/blogpipe/internal/content"
)

// Files maps output file names, relative to the output directory, to contents.
type Files map[string][]byte

// Names returns the file names in sorted order.
func (f Files) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate builds every artifact of corpus in memory.
func Generate(corpus *content.Corpus, site config.SiteConfig, out config.OutputConfig) (Files, error) {
	index, err := SearchIndex(corpus)
	if err != nil {
		return nil, err
	}
	feed, err := Feed(corpus, site)
	if err != nil {
		return nil, err
	}
	return Files{out.SearchIndex: index, out.Feed: feed}, nil
}

// WriteAll stages every file next to its target and installs them together.
// A failure at any point leaves every target as it was.
func WriteAll(dir string, files Files) error {
	st, err := Stage(dir, files)
	if err != nil {
		return err
	}
	if err := st.Install(); err != nil {
		return err
	}
	return st.Commit()
}

// Staging is a set of files written beside their targets but not yet in
// place. Install swaps them in while keeping the previous targets as
// backups; Rollback puts the backups back and Commit drops them.
type Staging struct {
	files []stagedFile
}

type stagedFile struct {
	tmp, target, backup string
	backedUp, installed bool
}

// Stage writes every file to a temporary sibling of its target. On failure
// nothing is left behind.
func Stage(dir string, files Files) (*Staging, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	st := &Staging{}
	fail := func(err error) (*Staging, error) {
		st.Rollback()
		return nil, err
	}

	for _, name := range files.Names() {
		target := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fail(fmt.Errorf("create dir for %s: %w", name, err))
		}

		tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(name)+".tmp-*")
		if err != nil {
			return fail(fmt.Errorf("stage %s: %w", name, err))
		}
		st.files = append(st.files, stagedFile{tmp: tmp.Name(), target: target, backup: tmp.Name() + ".bak"})

		if _, err := tmp.Write(files[name]); err != nil {
			tmp.Close()
			return fail(fmt.Errorf("write %s: %w", name, err))
		}
		if err := tmp.Close(); err != nil {
			return fail(fmt.Errorf("close %s: %w", name, err))
		}
		if err := os.Chmod(tmp.Name(), 0o644); err != nil {
			return fail(fmt.Errorf("chmod %s: %w", name, err))
		}
	}
	return st, nil
}

// Install renames every staged file over its target. If one rename fails,
// the targets already replaced are restored before returning.
func (s *Staging) Install() error {
	for i := range s.files {
		if err := s.files[i].install(); err != nil {
			if rerr := s.Rollback(); rerr != nil {
				err = errors.Join(err, rerr)
			}
			return fmt.Errorf("install %s (%d of %d installed): %w", s.files[i].target, i, len(s.files), err)
		}
	}
	return nil
}

func (f *stagedFile) install() error {
	if _, err := os.Lstat(f.target); err == nil {
		if err := os.Rename(f.target, f.backup); err != nil {
			return err
		}
		f.backedUp = true
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.Rename(f.tmp, f.target); err != nil {
		if f.backedUp {
			if rerr := os.Rename(f.backup, f.target); rerr == nil {
				f.backedUp = false
			}
		}
		return err
	}
	f.installed = true
	return nil
}

// Rollback restores every installed target to its previous content, removes
// targets that did not exist before and deletes leftover staged files.
func (s *Staging) Rollback() error {
	var errs []error
	for i := len(s.files) - 1; i >= 0; i-- {
		f := &s.files[i]
		switch {
		case f.installed && f.backedUp:
			if err := os.Rename(f.backup, f.target); err != nil {
				errs = append(errs, fmt.Errorf("restore %s: %w", f.target, err))
				continue
			}
		case f.installed:
			if err := os.Remove(f.target); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("remove %s: %w", f.target, err))
				continue
			}
		default:
			os.Remove(f.tmp)
		}
		f.installed, f.backedUp = false, false
	}
	return errors.Join(errs...)
}

// Commit discards the backups of an installed staging.
func (s *Staging) Commit() error {
	var errs []error
	for i := range s.files {
		f := &s.files[i]
		if f.backedUp {
			if err := os.Remove(f.backup); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("remove backup of %s: %w", f.target, err))
			}
			f.backedUp = false
		}
	}
	return errors.Join(errs...)
}
