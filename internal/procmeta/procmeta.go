package procmeta

import (
	"strings"
	"time"
)

// ProcessMetadata holds structured process information for expression evaluation.
type ProcessMetadata struct {
	Path        string            // Executable path passed to the last exec
	Environ     map[string]string // Parsed environment variables
	Args        []string          // Command-line arguments
	CmdlineFull string            // Full command line as single string
	Execs       []ExecRecord      // Every successful exec, oldest first
	Attributes  map[string]string // Evaluated custom attributes
}

// ExecRecord is one successful exec of a process.
type ExecRecord struct {
	Time time.Time `json:"time"`
	Path string    `json:"path"`
	Args []string  `json:"args"`
}

// FromExec builds metadata from the raw path, argv and envp of an exec.
func FromExec(path string, argv, envp []string) *ProcessMetadata {
	args, cmdline := parseCmdline(argv)
	return &ProcessMetadata{
		Path:        path,
		Environ:     parseEnviron(envp),
		Args:        args,
		CmdlineFull: cmdline,
	}
}

// Clone returns a deep copy of m.
func (m *ProcessMetadata) Clone() *ProcessMetadata {
	if m == nil {
		return nil
	}
	out := &ProcessMetadata{
		Path:        m.Path,
		Environ:     make(map[string]string, len(m.Environ)),
		Args:        append([]string(nil), m.Args...),
		CmdlineFull: m.CmdlineFull,
		Execs:       make([]ExecRecord, len(m.Execs)),
	}
	for k, v := range m.Environ {
		out.Environ[k] = v
	}
	if m.Attributes != nil {
		out.Attributes = make(map[string]string, len(m.Attributes))
		for k, v := range m.Attributes {
			out.Attributes[k] = v
		}
	}
	for i, e := range m.Execs {
		out.Execs[i] = ExecRecord{Time: e.Time, Path: e.Path, Args: append([]string(nil), e.Args...)}
	}
	return out
}

// parseEnviron converts KEY=VALUE strings into a map. Entries without '=' or
// with an empty key are skipped; later duplicates win.
func parseEnviron(raw []string) map[string]string {
	env := make(map[string]string, len(raw))
	for _, entry := range raw {
		idx := strings.IndexByte(entry, '=')
		if idx <= 0 {
			continue
		}
		env[entry[:idx]] = entry[idx+1:]
	}
	return env
}

// parseCmdline returns the argument list and its space-joined form.
func parseCmdline(raw []string) ([]string, string) {
	args := make([]string, len(raw))
	copy(args, raw)
	return args, strings.Join(args, " ")
}
