package procmeta

import (
	"sync"

	"github.com/KarelPeeters/wtf/internal/proctree"
)

// Manager manages process metadata lifecycle.
// It provides command-query separation for metadata access.
type Manager struct {
	mu            sync.RWMutex
	metadata      map[proctree.Key]*ProcessMetadata // process -> metadata
	captureIssues map[proctree.Key][]string         // process -> list of warnings/issues
}

// NewManager creates a new process metadata manager.
func NewManager() *Manager {
	return &Manager{
		metadata:      make(map[proctree.Key]*ProcessMetadata),
		captureIssues: make(map[proctree.Key][]string),
	}
}

// Get retrieves metadata for a process (query).
// Returns nil if no metadata exists for this process.
func (m *Manager) Get(key proctree.Key) *ProcessMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metadata[key]
}

// GetIssues retrieves the capture issues for a process (query).
// Returns nil if no issues exist for this process.
func (m *Manager) GetIssues(key proctree.Key) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.captureIssues[key]
}

// Set stores metadata for a process (command).
// If metadata already exists, it is replaced.
func (m *Manager) Set(key proctree.Key, metadata *ProcessMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[key] = metadata
}

// AddIssue adds a capture issue for a process (command).
func (m *Manager) AddIssue(key proctree.Key, issue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captureIssues[key] = append(m.captureIssues[key], issue)
}

// Inherit gives child a copy of parent's metadata, as fork does (command).
// The exec history starts empty for the child.
func (m *Manager) Inherit(child, parent proctree.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.metadata[parent]
	if src == nil {
		return
	}
	dup := src.Clone()
	dup.Execs = nil
	m.metadata[child] = dup
}

// RecordExec replaces the path, args and environment of a process after a
// successful exec and appends to its exec history (command).
func (m *Manager) RecordExec(key proctree.Key, exec ExecRecord, env map[string]string) *ProcessMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()

	md := m.metadata[key]
	if md == nil {
		md = &ProcessMetadata{Environ: make(map[string]string)}
		m.metadata[key] = md
	}
	args, cmdline := parseCmdline(exec.Args)
	md.Path = exec.Path
	md.Args = args
	md.CmdlineFull = cmdline
	if env != nil {
		md.Environ = env
	}
	md.Execs = append(md.Execs, ExecRecord{Time: exec.Time, Path: exec.Path, Args: args})
	return md
}

// SetAttributes stores the evaluated custom attributes of a process (command).
func (m *Manager) SetAttributes(key proctree.Key, attrs map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	md := m.metadata[key]
	if md == nil {
		md = &ProcessMetadata{Environ: make(map[string]string)}
		m.metadata[key] = md
	}
	md.Attributes = attrs
}
