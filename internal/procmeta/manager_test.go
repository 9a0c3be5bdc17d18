package procmeta

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KarelPeeters/wtf/internal/proctree"
)

var (
	keyA = proctree.Key{PID: 1234}
	keyB = proctree.Key{PID: 1234, Epoch: 1}
)

func TestManager_SetAndGet(t *testing.T) {
	m := NewManager()

	metadata := &ProcessMetadata{
		Environ:     map[string]string{"FOO": "bar"},
		Args:        []string{"echo", "hello"},
		CmdlineFull: "echo hello",
	}

	m.Set(keyA, metadata)

	got := m.Get(keyA)
	require.NotNil(t, got)
	assert.Equal(t, "bar", got.Environ["FOO"])
}

func TestManager_GetNonExistent(t *testing.T) {
	m := NewManager()
	assert.Nil(t, m.Get(proctree.Key{PID: 9999}))
}

func TestManager_EpochsAreSeparate(t *testing.T) {
	m := NewManager()

	m.Set(keyA, &ProcessMetadata{Path: "/old"})
	m.Set(keyB, &ProcessMetadata{Path: "/new"})

	assert.Equal(t, "/old", m.Get(keyA).Path)
	assert.Equal(t, "/new", m.Get(keyB).Path)
}

func TestManager_AddIssue(t *testing.T) {
	m := NewManager()

	m.AddIssue(keyA, "issue 1")
	m.AddIssue(keyA, "issue 2")

	assert.Equal(t, []string{"issue 1", "issue 2"}, m.GetIssues(keyA))
	assert.Nil(t, m.GetIssues(keyB))
}

func TestManager_Inherit(t *testing.T) {
	m := NewManager()
	parent := FromExec("/bin/sh", []string{"sh"}, []string{"X=1"})
	parent.Execs = []ExecRecord{{Path: "/bin/sh", Args: []string{"sh"}}}
	m.Set(keyA, parent)

	child := proctree.Key{PID: 5678}
	m.Inherit(child, keyA)

	got := m.Get(child)
	require.NotNil(t, got)
	assert.Equal(t, "/bin/sh", got.Path)
	assert.Equal(t, "1", got.Environ["X"])
	assert.Empty(t, got.Execs, "exec history is per process")

	got.Environ["X"] = "2"
	assert.Equal(t, "1", m.Get(keyA).Environ["X"])
}

func TestManager_InheritMissingParent(t *testing.T) {
	m := NewManager()
	m.Inherit(keyB, keyA)
	assert.Nil(t, m.Get(keyB))
}

func TestManager_RecordExec(t *testing.T) {
	m := NewManager()
	m.Set(keyA, FromExec("/bin/sh", []string{"sh"}, []string{"X=1"}))

	now := time.Unix(100, 0)
	md := m.RecordExec(keyA, ExecRecord{Time: now, Path: "/bin/ls", Args: []string{"ls", "-l"}}, nil)

	assert.Equal(t, "/bin/ls", md.Path)
	assert.Equal(t, "ls -l", md.CmdlineFull)
	assert.Equal(t, "1", md.Environ["X"], "nil env keeps the previous environment")
	require.Len(t, md.Execs, 1)
	assert.Equal(t, now, md.Execs[0].Time)

	md = m.RecordExec(keyA, ExecRecord{Path: "/bin/cat", Args: []string{"cat"}}, map[string]string{"Y": "2"})
	assert.Equal(t, map[string]string{"Y": "2"}, md.Environ)
	assert.Len(t, md.Execs, 2)
}

func TestManager_RecordExecCreates(t *testing.T) {
	m := NewManager()
	md := m.RecordExec(keyA, ExecRecord{Path: "/bin/true", Args: []string{"true"}}, nil)

	require.NotNil(t, md)
	assert.NotNil(t, md.Environ)
	assert.Same(t, md, m.Get(keyA))
}

func TestManager_Concurrent(_ *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			key := proctree.Key{PID: i}
			m.Set(key, &ProcessMetadata{Environ: map[string]string{"key": "value"}})
			m.AddIssue(key, "issue")
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			key := proctree.Key{PID: i}
			_ = m.Get(key)
			_ = m.GetIssues(key)
		}
	}()

	wg.Wait()
}

func TestManager_SetAttributes(t *testing.T) {
	m := NewManager()
	m.Set(keyA, FromExec("/bin/sh", []string{"sh"}, nil))

	m.SetAttributes(keyA, map[string]string{"team": "infra"})
	assert.Equal(t, "infra", m.Get(keyA).Attributes["team"])

	m.SetAttributes(keyB, map[string]string{"team": "web"})
	require.NotNil(t, m.Get(keyB))
	assert.Equal(t, "web", m.Get(keyB).Attributes["team"])

	m.Inherit(proctree.Key{PID: 1}, keyA)
	child := m.Get(proctree.Key{PID: 1})
	child.Attributes["team"] = "other"
	assert.Equal(t, "infra", m.Get(keyA).Attributes["team"])
}
