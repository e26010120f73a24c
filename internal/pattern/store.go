// Package pattern loads .vibepattern files into immutable, restartable
// command sequences and exposes them as a read-only catalog.
//
// File format: line 1 is a JSON header {"name": ..., "author": ...};
// every following non-blank line is a command grammar token. Loading is
// all-or-nothing per file, and a bad file never blocks the rest of the
// catalog.
package pattern

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vibe-control/vcc/internal/command"
)

// Extension is the pattern file extension the directory scan accepts.
const Extension = ".vibepattern"

// Normalized load errors.
var (
	// ErrInvalidHeader reports a missing or malformed JSON header line.
	ErrInvalidHeader = errors.New("invalid pattern header")

	// ErrEmptySequence reports a pattern with no command lines. Such a
	// pattern loads nothing: it would not be playable.
	ErrEmptySequence = errors.New("pattern has no commands")

	// ErrNotFound reports a catalog lookup miss.
	ErrNotFound = errors.New("pattern not found")
)

// LineError reports the first bad command line in a pattern file.
type LineError struct {
	Line  int
	Cause error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Cause)
}

func (e *LineError) Unwrap() error { return e.Cause }

// Pattern is a named, authored, ordered, repeating sequence of commands.
// The sequence preserves the authored order exactly and is never mutated
// after construction; a reload replaces the whole object.
type Pattern struct {
	Name     string
	Author   string
	Sequence []command.Command
}

// DisplayName is the catalog label surfaces show: "Name by Author", or
// just the name when no author is recorded.
func (p *Pattern) DisplayName() string {
	if p.Author == "" {
		return p.Name
	}
	return p.Name + " by " + p.Author
}

// Store caches loaded patterns by path for the process lifetime. The
// catalog changes only on an explicit Reload, never implicitly.
type Store struct {
	mu     sync.RWMutex
	dir    string
	byPath map[string]*Pattern
}

// NewStore creates a store scanning dir for pattern files.
func NewStore(dir string) *Store {
	return &Store{
		dir:    dir,
		byPath: make(map[string]*Pattern),
	}
}

// Load parses and caches a single pattern file. A second Load of the
// same path returns the cached object without touching the filesystem.
func (s *Store) Load(path string) (*Pattern, error) {
	s.mu.RLock()
	cached, ok := s.byPath[path]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	pat, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.byPath[path] = pat
	s.mu.Unlock()

	return pat, nil
}

// LoadDir scans the store directory for pattern files and loads each
// one. Files that fail to load are reported in the returned map and
// skipped; the rest of the catalog survives. A missing directory is an
// empty catalog, not an error.
func (s *Store) LoadDir() (int, map[string]error) {
	failures := make(map[string]error)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			failures[s.dir] = err
		}
		return 0, failures
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if _, err := s.Load(path); err != nil {
			failures[entry.Name()] = err
			continue
		}
		loaded++
	}

	return loaded, failures
}

// Reload drops the cache and rescans the directory. This is the only
// way the catalog changes after startup.
func (s *Store) Reload() (int, map[string]error) {
	s.mu.Lock()
	s.byPath = make(map[string]*Pattern)
	s.mu.Unlock()

	return s.LoadDir()
}

// Catalog returns the loaded patterns sorted by display name.
func (s *Store) Catalog() []*Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	patterns := make([]*Pattern, 0, len(s.byPath))
	for _, pat := range s.byPath {
		patterns = append(patterns, pat)
	}
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].DisplayName() < patterns[j].DisplayName()
	})

	return patterns
}

// Find looks a pattern up by display name or plain name.
func (s *Store) Find(name string) (*Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, pat := range s.byPath {
		if pat.DisplayName() == name || pat.Name == name {
			return pat, nil
		}
	}
	return nil, ErrNotFound
}

// parseFile reads one pattern file: header line, then command lines.
func parseFile(path string) (*Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidHeader)
	}

	var header struct {
		Name   string `json:"name"`
		Author string `json:"author"`
	}
	if err := json.Unmarshal([]byte(scanner.Text()), &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if header.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidHeader)
	}

	var sequence []command.Command
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, err := command.Parse(line)
		if err != nil {
			// All-or-nothing: the first bad line fails the whole file.
			return nil, &LineError{Line: lineNo, Cause: err}
		}
		sequence = append(sequence, cmd)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(sequence) == 0 {
		return nil, ErrEmptySequence
	}

	return &Pattern{
		Name:     header.Name,
		Author:   header.Author,
		Sequence: sequence,
	}, nil
}
