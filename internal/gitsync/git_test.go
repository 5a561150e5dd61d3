package gitsync

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// MockExecutor records calls and fails commands whose argv matches a
// configured prefix; everything else succeeds with a configured output.
type MockExecutor struct {
	failures map[string]error
	outputs  map[string][]byte
	onRun    func(call ExecutorCall)
	calls    []ExecutorCall
}

type ExecutorCall struct {
	Dir  string
	Name string
	Args []string
}

func (c ExecutorCall) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		failures: make(map[string]error),
		outputs:  make(map[string][]byte),
	}
}

// FailOn makes every command whose argv starts with prefix return err.
func (m *MockExecutor) FailOn(prefix string, err error) {
	m.failures[prefix] = err
}

// OutputOn sets the stdout returned for commands matching prefix.
func (m *MockExecutor) OutputOn(prefix string, output []byte) {
	m.outputs[prefix] = output
}

// OnRun registers a hook invoked for every executed command.
func (m *MockExecutor) OnRun(hook func(call ExecutorCall)) {
	m.onRun = hook
}

func (m *MockExecutor) Run(_ context.Context, dir string, name string, args ...string) ([]byte, error) {
	call := ExecutorCall{Dir: dir, Name: name, Args: args}
	m.calls = append(m.calls, call)
	if m.onRun != nil {
		m.onRun(call)
	}

	full := call.String()
	for prefix, err := range m.failures {
		if strings.HasPrefix(full, prefix) {
			return nil, err
		}
	}
	for prefix, out := range m.outputs {
		if strings.HasPrefix(full, prefix) {
			return out, nil
		}
	}
	return nil, nil
}

func (m *MockExecutor) Calls() []ExecutorCall {
	return m.calls
}

// HasCall reports whether any recorded command starts with prefix.
func (m *MockExecutor) HasCall(prefix string) bool {
	for _, call := range m.calls {
		if strings.HasPrefix(call.String(), prefix) {
			return true
		}
	}
	return false
}

func TestGitClientCommandComposition(t *testing.T) {
	tests := []struct {
		name string
		call func(g *GitClient, ctx context.Context) error
		want string
	}{
		{
			name: "clone into dot",
			call: func(g *GitClient, ctx context.Context) error {
				return g.Clone(ctx, "https://example.com/r.git", "/tmp/w")
			},
			want: "git clone https://example.com/r.git .",
		},
		{
			name: "shallow branch fetch",
			call: func(g *GitClient, ctx context.Context) error {
				return g.FetchBranchShallow(ctx, "/tmp/w", "dev")
			},
			want: "git fetch --depth=1 origin dev",
		},
		{
			name: "tracking checkout",
			call: func(g *GitClient, ctx context.Context) error {
				return g.CheckoutTrack(ctx, "/tmp/w", "dev")
			},
			want: "git checkout -b dev origin/dev",
		},
		{
			name: "reset checkout",
			call: func(g *GitClient, ctx context.Context) error {
				return g.CheckoutReset(ctx, "/tmp/w", "dev")
			},
			want: "git checkout -B dev origin/dev",
		},
		{
			name: "upstream push",
			call: func(g *GitClient, ctx context.Context) error {
				return g.PushUpstream(ctx, "/tmp/w", "dev")
			},
			want: "git push -u origin dev",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockExecutor()
			g := NewGitClientWithExecutor(mock)
			if err := tt.call(g, context.Background()); err != nil {
				t.Fatalf("call failed: %v", err)
			}
			calls := mock.Calls()
			if len(calls) != 1 {
				t.Fatalf("recorded %d calls, want 1", len(calls))
			}
			if got := calls[0].String(); got != tt.want {
				t.Errorf("command = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGitClientWrapsFailures(t *testing.T) {
	mock := NewMockExecutor()
	mock.FailOn("git push", errors.New("remote rejected"))
	g := NewGitClientWithExecutor(mock)

	err := g.Push(context.Background(), "/tmp/w", "main")
	if !errors.Is(err, ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "remote rejected") {
		t.Errorf("error %q does not preserve the git message", err)
	}
	if !strings.Contains(err.Error(), "push") {
		t.Errorf("error %q does not name the subcommand", err)
	}
}

func TestHasChanges(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"dirty", " M README.md\n?? new.md\n", true},
		{"clean", "", false},
		{"whitespace only", "\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockExecutor()
			mock.OutputOn("git status --porcelain", []byte(tt.output))
			g := NewGitClientWithExecutor(mock)

			got, err := g.HasChanges(context.Background(), "/tmp/w")
			if err != nil {
				t.Fatalf("HasChanges failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasChanges = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultBranch(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(m *MockExecutor)
		want    string
		wantErr bool
	}{
		{
			name: "from symbolic ref",
			prepare: func(m *MockExecutor) {
				m.OutputOn("git symbolic-ref", []byte("refs/remotes/origin/trunk\n"))
			},
			want: "trunk",
		},
		{
			name: "fallback to main",
			prepare: func(m *MockExecutor) {
				m.FailOn("git symbolic-ref", errors.New("no ref"))
			},
			want: "main",
		},
		{
			name: "fallback to master",
			prepare: func(m *MockExecutor) {
				m.FailOn("git symbolic-ref", errors.New("no ref"))
				m.FailOn("git rev-parse --verify origin/main", errors.New("unknown"))
			},
			want: "master",
		},
		{
			name: "no candidates",
			prepare: func(m *MockExecutor) {
				m.FailOn("git symbolic-ref", errors.New("no ref"))
				m.FailOn("git rev-parse", errors.New("unknown"))
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockExecutor()
			tt.prepare(mock)
			g := NewGitClientWithExecutor(mock)

			got, err := g.DefaultBranch(context.Background(), "/tmp/w")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("DefaultBranch failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("DefaultBranch = %q, want %q", got, tt.want)
			}
		})
	}
}
