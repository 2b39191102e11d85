package vcs

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// call records one git invocation made through the fake runner.
type call struct {
	args []string
}

// fakeRunner stubs git commands keyed on their full argument list.
type fakeRunner struct {
	calls []call
	stubs map[string][]byte
	fails map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		stubs: make(map[string][]byte),
		fails: make(map[string]error),
	}
}

func (f *fakeRunner) stub(output string, args ...string) {
	f.stubs[stubKey(args)] = []byte(output)
}

func (f *fakeRunner) fail(err error, args ...string) {
	f.fails[stubKey(args)] = err
}

func (f *fakeRunner) Run(args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{args: append([]string(nil), args...)})
	key := stubKey(args)
	if err, ok := f.fails[key]; ok {
		return nil, err
	}
	return f.stubs[key], nil
}

func (f *fakeRunner) ran(args ...string) bool {
	key := stubKey(args)
	for _, c := range f.calls {
		if stubKey(c.args) == key {
			return true
		}
	}
	return false
}

func stubKey(args []string) string {
	return strings.Join(args, "\x00")
}

func TestFingerprint(t *testing.T) {
	runner := newFakeRunner()
	runner.stub("diff-output", "diff")
	runner.stub("", "diff", "--cached")
	runner.stub("untracked.txt\n", "ls-files", "--others", "--exclude-standard")

	git := NewWithRunner(runner)

	fp1, err := git.Fingerprint()
	require.NoError(t, err)
	require.NotEmpty(t, fp1)

	// Same workspace state, same fingerprint.
	fp2, err := git.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)

	// Any observable change alters the fingerprint.
	runner.stub("different-diff", "diff")
	fp3, err := git.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp3)
}

func TestFingerprintDistinguishesSections(t *testing.T) {
	runner := newFakeRunner()
	runner.stub("abc", "diff")
	runner.stub("", "diff", "--cached")
	runner.stub("", "ls-files", "--others", "--exclude-standard")

	git := NewWithRunner(runner)
	fp1, err := git.Fingerprint()
	require.NoError(t, err)

	// Moving the same bytes from the unstaged diff to the staged diff is
	// still a change.
	runner.stub("", "diff")
	runner.stub("abc", "diff", "--cached")
	fp2, err := git.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp2)
}

func TestCommitHappyPath(t *testing.T) {
	runner := newFakeRunner()
	runner.stub("internal/loop/loop.go\nREADME.md\n", "diff", "--cached", "--name-only")

	git := NewWithRunner(runner)
	committed, err := git.Commit("ralph: complete task", false)
	require.NoError(t, err)
	assert.True(t, committed)

	assert.True(t, runner.ran("add", "-A"))
	assert.True(t, runner.ran("commit", "-m", "ralph: complete task"))
}

func TestCommitSkipHooks(t *testing.T) {
	runner := newFakeRunner()
	runner.stub("main.go\n", "diff", "--cached", "--name-only")

	git := NewWithRunner(runner)
	committed, err := git.Commit("msg", true)
	require.NoError(t, err)
	assert.True(t, committed)
	assert.True(t, runner.ran("commit", "-m", "msg", "--no-verify"))
}

func TestCommitFiltersSensitiveFiles(t *testing.T) {
	runner := newFakeRunner()
	runner.stub(".env\nsrc/main.go\nconfig/server.key\n", "diff", "--cached", "--name-only")

	git := NewWithRunner(runner)
	committed, err := git.Commit("msg", false)
	require.NoError(t, err)
	assert.True(t, committed)

	assert.True(t, runner.ran("reset", "-q", "HEAD", "--", ".env"))
	assert.True(t, runner.ran("reset", "-q", "HEAD", "--", "config/server.key"))
	assert.False(t, runner.ran("reset", "-q", "HEAD", "--", "src/main.go"))
}

func TestCommitFiltersSensitiveRegardlessOfSkipHooks(t *testing.T) {
	for _, skipHooks := range []bool{false, true} {
		runner := newFakeRunner()
		runner.stub("secrets.yaml\napp.go\n", "diff", "--cached", "--name-only")

		git := NewWithRunner(runner)
		_, err := git.Commit("msg", skipHooks)
		require.NoError(t, err)
		assert.True(t, runner.ran("reset", "-q", "HEAD", "--", "secrets.yaml"),
			"skipHooks=%v must still unstage sensitive files", skipHooks)
	}
}

func TestCommitNothingStagedIsNoOp(t *testing.T) {
	runner := newFakeRunner()
	runner.stub("", "diff", "--cached", "--name-only")

	git := NewWithRunner(runner)
	committed, err := git.Commit("msg", false)
	require.NoError(t, err)
	assert.False(t, committed)
	assert.False(t, runner.ran("commit", "-m", "msg"))
}

func TestCommitOnlyExcludedFilesIsNoOp(t *testing.T) {
	runner := newFakeRunner()
	runner.stub("node_modules/pkg/index.js\n.env\n", "diff", "--cached", "--name-only")

	git := NewWithRunner(runner)
	committed, err := git.Commit("msg", false)
	require.NoError(t, err)
	assert.False(t, committed)
	assert.False(t, runner.ran("commit", "-m", "msg"))
}

func TestCommitHookRejectionIsNonFatal(t *testing.T) {
	runner := newFakeRunner()
	runner.stub("main.go\n", "diff", "--cached", "--name-only")
	runner.fail(fmt.Errorf("pre-commit hook failed"), "commit", "-m", "msg")

	git := NewWithRunner(runner)
	committed, err := git.Commit("msg", false)
	require.NoError(t, err)
	assert.False(t, committed)
	// The changes stay staged: no reset of main.go happened.
	assert.False(t, runner.ran("reset", "-q", "HEAD", "--", "main.go"))
}

func TestRevertStashesDirtyTree(t *testing.T) {
	runner := newFakeRunner()
	runner.stub(" M main.go\n?? scratch.txt\n", "status", "--porcelain")

	git := NewWithRunner(runner)
	stashed, err := git.Revert(4, "timeout")
	require.NoError(t, err)
	assert.True(t, stashed)

	assert.True(t, runner.ran("add", "-A"))
	assert.True(t, runner.ran("stash", "push", "-m", "ralph: iteration 4 reverted (timeout)"))
}

func TestRevertCleanTreeIsNoOp(t *testing.T) {
	runner := newFakeRunner()
	runner.stub("", "status", "--porcelain")

	git := NewWithRunner(runner)
	stashed, err := git.Revert(1, "timeout")
	require.NoError(t, err)
	assert.False(t, stashed)

	for _, c := range runner.calls {
		assert.NotEqual(t, "stash", c.args[0], "must not stash a clean tree")
	}
}

func TestShowFileAndHead(t *testing.T) {
	runner := newFakeRunner()
	runner.stub("- [ ] **T**\n", "show", "HEAD:TASKS.md")
	runner.stub("abc123\n", "rev-parse", "HEAD")

	git := NewWithRunner(runner)

	data, err := git.ShowFile("HEAD", "TASKS.md")
	require.NoError(t, err)
	assert.Equal(t, "- [ ] **T**\n", string(data))

	head, err := git.Head()
	require.NoError(t, err)
	assert.Equal(t, "abc123", head)
}

func TestExcludedFromCommit(t *testing.T) {
	tests := []struct {
		path     string
		excluded bool
	}{
		{".env", true},
		{".env.production", true},
		{"deploy/.env", true},
		{"server.pem", true},
		{"keys/signing.key", true},
		{"id_rsa", true},
		{"id_rsa.pub", true},
		{"aws_credentials.json", true},
		{"client_secret.json", true},
		{"node_modules/left-pad/index.js", true},
		{"web/dist/bundle.js", true},
		{"target/release/app", true},
		{"__pycache__/mod.pyc", true},
		{"src/main.go", false},
		{"internal/loop/loop.go", false},
		{"environment.md", false},
		{"Keyboard.tsx", false},
		{"builder/main.go", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.excluded, ExcludedFromCommit(tt.path))
		})
	}
}
