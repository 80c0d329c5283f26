package service_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/spf13/afero"

	"github.com/idelchi/foldercrypt/internal/encryption"
	"github.com/idelchi/foldercrypt/internal/errs"
	"github.com/idelchi/foldercrypt/internal/kdf"
	"github.com/idelchi/foldercrypt/internal/processor"
	"github.com/idelchi/foldercrypt/internal/service"
)

const password = "Tr0ub4dor&3"

func fastParams() kdf.Params {
	return kdf.Params{Iterations: 1000, Memory: 1024, Time: 1, Threads: 1}
}

type recorder struct {
	events []service.Event
}

func (r *recorder) sink(e service.Event) {
	r.events = append(r.events, e)
}

func (r *recorder) states() []service.State {
	var states []service.State

	for _, e := range r.events {
		if e.Kind == service.EventState {
			states = append(states, e.State)
		}
	}

	return states
}

func (r *recorder) count(kind service.EventKind, level service.Level) int {
	var n int

	for _, e := range r.events {
		if e.Kind == kind && (kind != service.EventLog || e.Level == level) {
			n++
		}
	}

	return n
}

// checkFileProgress asserts one progress event per file, counting up to files.
func checkFileProgress(t *testing.T, r recorder, files int) {
	t.Helper()

	var done int

	for _, e := range r.events {
		if e.Kind != service.EventProgress {
			continue
		}

		done++

		if e.Done != done || e.Total != files {
			t.Errorf("progress %q = %d/%d, want %d/%d", e.Path, e.Done, e.Total, done, files)
		}
	}

	if done != files {
		t.Errorf("progress events = %d, want %d", done, files)
	}
}

type fixture struct {
	fs  afero.Fs
	enc *service.EncryptService
	dec *service.DecryptService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fsys := afero.NewMemMapFs()

	return &fixture{
		fs:  fsys,
		enc: service.NewEncryptService(service.WithFs(fsys), service.WithParams(fastParams())),
		dec: service.NewDecryptService(service.WithFs(fsys), service.WithParams(fastParams())),
	}
}

func (f *fixture) write(t *testing.T, name string, data []byte, perm os.FileMode) {
	t.Helper()

	if err := f.fs.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := afero.WriteFile(f.fs, name, data, perm); err != nil {
		t.Fatal(err)
	}

	if err := f.fs.Chmod(name, perm); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) read(t *testing.T, name string) []byte {
	t.Helper()

	data, err := afero.ReadFile(f.fs, name)
	if err != nil {
		t.Fatalf("reading %q: %v", name, err)
	}

	return data
}

func (f *fixture) exists(name string) bool {
	ok, _ := afero.Exists(f.fs, name)

	return ok
}

// scenario lays out {a.txt: "hello", sub/b.txt: ""} under /src.
func (f *fixture) scenario(t *testing.T) {
	t.Helper()

	f.write(t, "/src/a.txt", []byte("hello"), 0o644)
	f.write(t, "/src/sub/b.txt", nil, 0o600)
}

func (f *fixture) encrypt(t *testing.T, dst string, alg kdf.Algorithm) {
	t.Helper()

	req := service.Request{Source: "/src", Destination: dst, Password: password, Algorithm: alg}

	if _, err := f.enc.Run(context.Background(), req, nil); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	big := make([]byte, 2*encryption.ChunkSize+100)
	if _, err := rand.Read(big); err != nil {
		t.Fatal(err)
	}

	files := map[string]struct {
		data []byte
		perm os.FileMode
	}{
		"a.txt":          {[]byte("hello"), 0o644},
		"empty.txt":      {nil, 0o600},
		"bin/tool":       {[]byte("#!/bin/sh\n"), 0o755},
		"deep/er/big.da": {big, 0o640},
	}

	for name, file := range files {
		f.write(t, filepath.Join("/src", name), file.data, file.perm)
	}

	if err := f.fs.MkdirAll("/src/hollow", 0o750); err != nil {
		t.Fatal(err)
	}

	var encEvents recorder

	encResult, err := f.enc.Run(context.Background(),
		service.Request{Source: "/src", Destination: "/enc", Password: password}, encEvents.sink)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if encResult.State != service.Completed || encResult.Stats.Files != 4 || encResult.Stats.Directories != 4 {
		t.Errorf("encrypt result = %+v", encResult)
	}

	want := []service.State{
		service.ValidatingInputs, service.DerivingKey, service.ProcessingFiles, service.Finalizing, service.Completed,
	}
	if got := encEvents.states(); !slices.Equal(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}

	checkFileProgress(t, encEvents, 4)

	for _, e := range encEvents.events {
		if e.Session != encResult.Session {
			t.Fatalf("event %+v carries session %s, want %s", e, e.Session, encResult.Session)
		}
	}

	var decEvents recorder

	decResult, err := f.dec.Run(context.Background(),
		service.Request{Source: "/enc", Destination: "/out", Password: password}, decEvents.sink)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	checkFileProgress(t, decEvents, 4)

	if decResult.Stats.Bytes != encResult.Stats.Bytes {
		t.Errorf("decrypted %d bytes, encrypted %d", decResult.Stats.Bytes, encResult.Stats.Bytes)
	}

	for name, file := range files {
		out := filepath.Join("/out", name)

		if got := f.read(t, out); !bytes.Equal(got, file.data) {
			t.Errorf("%q: content differs", name)
		}

		info, err := f.fs.Stat(out)
		if err != nil {
			t.Fatal(err)
		}

		if info.Mode().Perm() != file.perm {
			t.Errorf("%q: mode %o, want %o", name, info.Mode().Perm(), file.perm)
		}
	}

	info, err := f.fs.Stat("/out/hollow")
	if err != nil {
		t.Fatalf("empty directory not restored: %v", err)
	}

	if !info.IsDir() || info.Mode().Perm() != 0o750 {
		t.Errorf("hollow: mode %v", info.Mode())
	}
}

func TestScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.scenario(t)
	f.encrypt(t, "/enc", kdf.PBKDF2)

	if salt := f.read(t, "/enc/"+processor.SaltFile); len(salt) != kdf.SaltSize {
		t.Errorf("salt is %d bytes", len(salt))
	}

	if !f.exists("/enc/" + processor.ManifestFile) {
		t.Error("manifest missing")
	}

	a := f.read(t, "/enc/a.txt.encrypted")
	if uint64(len(a)) != encryption.EncryptedSize(5) {
		t.Errorf("a.txt.encrypted is %d bytes, want %d", len(a), encryption.EncryptedSize(5))
	}

	var header encryption.Header
	if err := header.UnmarshalBinary(a[:encryption.HeaderSize]); err != nil {
		t.Fatal(err)
	}

	if header.Chunks() != 1 {
		t.Errorf("a.txt chunks = %d, want 1", header.Chunks())
	}

	if b := f.read(t, "/enc/sub/b.txt.encrypted"); len(b) != encryption.HeaderSize {
		t.Errorf("sub/b.txt.encrypted is %d bytes, want header only", len(b))
	}

	if _, err := f.dec.Run(context.Background(),
		service.Request{Source: "/enc", Destination: "/out", Password: password}, nil); err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	if got := f.read(t, "/out/a.txt"); string(got) != "hello" {
		t.Errorf("a.txt = %q", got)
	}

	if got := f.read(t, "/out/sub/b.txt"); len(got) != 0 {
		t.Errorf("sub/b.txt = %q", got)
	}
}

func TestWrongPassword(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.scenario(t)
	f.encrypt(t, "/enc", kdf.PBKDF2)

	var events recorder

	result, err := f.dec.Run(context.Background(),
		service.Request{Source: "/enc", Destination: "/out", Password: "not-the-password"}, events.sink)
	if !errors.Is(err, errs.ErrAuthenticationFailed) {
		t.Fatalf("got %v, want ErrAuthenticationFailed", err)
	}

	if result.State != service.Failed || !errors.Is(result.Err, errs.ErrAuthenticationFailed) {
		t.Errorf("result = %+v", result)
	}

	var typed *errs.Error
	if !errors.As(err, &typed) || typed.Phase != service.ProcessingFiles.String() {
		t.Errorf("error phase = %+v", typed)
	}

	if f.exists("/out") {
		t.Error("destination created despite wrong password")
	}

	if states := events.states(); states[len(states)-1] != service.Failed {
		t.Errorf("last state = %v", states[len(states)-1])
	}
}

func TestAlgorithmMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.scenario(t)
	f.encrypt(t, "/enc", kdf.Argon2id)

	_, err := f.dec.Run(context.Background(),
		service.Request{Source: "/enc", Destination: "/out", Password: password, Algorithm: kdf.PBKDF2}, nil)
	if !errors.Is(err, errs.ErrAuthenticationFailed) {
		t.Fatalf("got %v, want ErrAuthenticationFailed", err)
	}

	if _, err := f.dec.Run(context.Background(),
		service.Request{Source: "/enc", Destination: "/out", Password: password, Algorithm: kdf.Argon2id}, nil); err != nil {
		t.Fatalf("decrypt with matching algorithm: %v", err)
	}
}

func TestTampering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		absent string
	}{
		{"chunk", "/enc/a.txt.encrypted", "/out/a.txt"},
		{"header", "/enc/sub/b.txt.encrypted", "/out/sub/b.txt"},
		{"manifest", "/enc/" + processor.ManifestFile, "/out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.scenario(t)
			f.encrypt(t, "/enc", kdf.PBKDF2)

			data := f.read(t, tt.target)
			data[len(data)-1] ^= 0x80

			if err := afero.WriteFile(f.fs, tt.target, data, 0o600); err != nil {
				t.Fatal(err)
			}

			_, err := f.dec.Run(context.Background(),
				service.Request{Source: "/enc", Destination: "/out", Password: password}, nil)
			if !errors.Is(err, errs.ErrAuthenticationFailed) {
				t.Fatalf("got %v, want ErrAuthenticationFailed", err)
			}

			if f.exists(tt.absent) {
				t.Errorf("%q written despite tampering", tt.absent)
			}
		})
	}
}

func TestEncryptionIsNonDeterministic(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.scenario(t)
	f.encrypt(t, "/enc1", kdf.PBKDF2)
	f.encrypt(t, "/enc2", kdf.PBKDF2)

	for _, name := range []string{processor.SaltFile, processor.ManifestFile, "a.txt.encrypted", "sub/b.txt.encrypted"} {
		if bytes.Equal(f.read(t, "/enc1/"+name), f.read(t, "/enc2/"+name)) {
			t.Errorf("%q identical across runs", name)
		}
	}
}

func TestValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  service.Request
	}{
		{"empty password", service.Request{Source: "/src", Destination: "/enc"}},
		{"missing source", service.Request{Source: "/nope", Destination: "/enc", Password: password}},
		{"source is a file", service.Request{Source: "/src/a.txt", Destination: "/enc", Password: password}},
		{"destination exists", service.Request{Source: "/src", Destination: "/taken", Password: password}},
		{"destination is a file", service.Request{Source: "/src", Destination: "/file", Password: password, Overwrite: true}},
		{"destination inside source", service.Request{Source: "/src", Destination: "/src/enc", Password: password}},
		{"source inside destination", service.Request{Source: "/src", Destination: "/", Password: password, Overwrite: true}},
		{"suffix with separator", service.Request{Source: "/src", Destination: "/enc", Password: password, Suffix: "/x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.scenario(t)
			f.write(t, "/file", []byte("x"), 0o600)

			if err := f.fs.MkdirAll("/taken", 0o700); err != nil {
				t.Fatal(err)
			}

			var events recorder

			result, err := f.enc.Run(context.Background(), tt.req, events.sink)
			if !errors.Is(err, errs.ErrInvalidInput) {
				t.Fatalf("got %v, want ErrInvalidInput", err)
			}

			if result.State != service.Failed {
				t.Errorf("state = %v", result.State)
			}

			if want := []service.State{service.ValidatingInputs, service.Failed}; !slices.Equal(events.states(), want) {
				t.Errorf("states = %v, want %v", events.states(), want)
			}
		})
	}
}

func TestOverwrite(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.scenario(t)
	f.encrypt(t, "/enc", kdf.PBKDF2)

	req := service.Request{Source: "/src", Destination: "/enc", Password: password, Overwrite: true}

	if _, err := f.enc.Run(context.Background(), req, nil); err != nil {
		t.Fatalf("encrypt with overwrite: %v", err)
	}

	if _, err := f.dec.Run(context.Background(),
		service.Request{Source: "/enc", Destination: "/out", Password: password}, nil); err != nil {
		t.Fatalf("decrypt after overwrite: %v", err)
	}
}

func TestMissingArtifacts(t *testing.T) {
	t.Parallel()

	for _, artifact := range []string{processor.SaltFile, processor.ManifestFile} {
		t.Run(artifact, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.scenario(t)
			f.encrypt(t, "/enc", kdf.PBKDF2)

			if err := f.fs.Remove("/enc/" + artifact); err != nil {
				t.Fatal(err)
			}

			var events recorder

			_, err := f.dec.Run(context.Background(),
				service.Request{Source: "/enc", Destination: "/out", Password: password}, events.sink)
			if !errors.Is(err, errs.ErrMissingArtifacts) {
				t.Fatalf("got %v, want ErrMissingArtifacts", err)
			}

			if slices.Contains(events.states(), service.DerivingKey) {
				t.Error("key derived despite missing artifact")
			}
		})
	}
}

func TestCancellationBetweenFiles(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.scenario(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var progress int

	sink := func(e service.Event) {
		if e.Kind == service.EventProgress {
			progress++

			cancel()
		}
	}

	result, err := f.enc.Run(ctx, service.Request{Source: "/src", Destination: "/enc", Password: password}, sink)
	if !errors.Is(err, errs.ErrCancelled) {
		t.Fatalf("got %v, want ErrCancelled", err)
	}

	if progress != 1 || result.Stats.Files+result.Stats.Directories != 1 {
		t.Errorf("progress = %d, stats = %+v", progress, result.Stats)
	}

	if f.exists("/enc/" + processor.ManifestFile) {
		t.Error("manifest written for a cancelled run")
	}
}

func TestSelectiveRestore(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.scenario(t)
	f.encrypt(t, "/enc", kdf.PBKDF2)

	result, err := f.dec.Run(context.Background(), service.Request{
		Source: "/enc", Destination: "/out", Password: password, Select: []string{"sub/*"},
	}, nil)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	if !f.exists("/out/sub/b.txt") {
		t.Error("selected file not restored")
	}

	if f.exists("/out/a.txt") {
		t.Error("unselected file restored")
	}

	if result.Stats.Files != 1 || result.Stats.Directories != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
}

func TestUnknownFilesAreWarnings(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.scenario(t)
	f.encrypt(t, "/enc", kdf.PBKDF2)
	f.write(t, "/enc/stray.txt", []byte("x"), 0o600)

	var events recorder

	result, err := f.dec.Run(context.Background(),
		service.Request{Source: "/enc", Destination: "/out", Password: password}, events.sink)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	if result.Stats.Unknown != 1 || events.count(service.EventLog, service.LevelWarn) != 1 {
		t.Errorf("unknown = %d, warnings = %d", result.Stats.Unknown, events.count(service.EventLog, service.LevelWarn))
	}
}

func TestCustomSuffix(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.scenario(t)

	req := service.Request{Source: "/src", Destination: "/enc", Password: password, Suffix: ".fc"}

	if _, err := f.enc.Run(context.Background(), req, nil); err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if !f.exists("/enc/a.txt.fc") {
		t.Fatal("custom suffix not applied")
	}

	req = service.Request{Source: "/enc", Destination: "/out", Password: password, Suffix: ".fc"}

	if _, err := f.dec.Run(context.Background(), req, nil); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
}

func TestInspect(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.scenario(t)
	f.encrypt(t, "/enc", kdf.PBKDF2)

	m, err := f.dec.Inspect(context.Background(), service.Request{Source: "/enc", Password: password}, nil)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	var got []string
	for _, e := range m.Entries {
		got = append(got, e.RelativePath)
	}

	if want := []string{"a.txt", "sub", "sub/b.txt"}; !slices.Equal(got, want) {
		t.Errorf("entries = %v, want %v", got, want)
	}

	if m.TotalSize() != 5 {
		t.Errorf("total size = %d, want 5", m.TotalSize())
	}

	if _, err := f.dec.Inspect(context.Background(),
		service.Request{Source: "/enc", Password: "wrong-password"}, nil); !errors.Is(err, errs.ErrAuthenticationFailed) {
		t.Fatalf("wrong password: got %v", err)
	}
}

func TestSymlinkedSourceIsRejected(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "real")

	if err := os.MkdirAll(filepath.Join(target, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(target, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	enc := service.NewEncryptService(service.WithFs(afero.NewOsFs()), service.WithParams(fastParams()))
	dst := filepath.Join(dir, "enc")

	result, err := enc.Run(context.Background(),
		service.Request{Source: link, Destination: dst, Password: password}, nil)
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}

	if result.State != service.Failed {
		t.Errorf("state = %v", result.State)
	}

	if _, err := os.Stat(dst); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("destination created for a rejected source: %v", err)
	}

	if _, err := enc.Run(context.Background(),
		service.Request{Source: target, Destination: dst, Password: password}, nil); err != nil {
		t.Fatalf("encrypting the link target: %v", err)
	}
}

// unopenableFs refuses to open one file.
type unopenableFs struct {
	afero.Fs

	name string
}

func (u unopenableFs) Open(name string) (afero.File, error) {
	if name == u.name {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}

	return u.Fs.Open(name)
}

func TestFileFailureAbortsRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(t *testing.T) (fsys afero.Fs, src, dst string)
	}{
		{"open refused", func(t *testing.T) (afero.Fs, string, string) {
			t.Helper()

			f := newFixture(t)
			f.scenario(t)
			f.write(t, "/src/z.txt", []byte("after"), 0o644)

			return unopenableFs{Fs: f.fs, name: "/src/sub/b.txt"}, "/src", "/enc"
		}},
		{"unreadable on disk", func(t *testing.T) (afero.Fs, string, string) {
			t.Helper()

			if os.Geteuid() == 0 {
				t.Skip("permission bits do not bind root")
			}

			dir := t.TempDir()
			src := filepath.Join(dir, "src")
			fsys := afero.NewOsFs()

			for name, data := range map[string]string{"a.txt": "hello", "sub/b.txt": "", "z.txt": "after"} {
				if err := fsys.MkdirAll(filepath.Dir(filepath.Join(src, name)), 0o755); err != nil {
					t.Fatal(err)
				}

				if err := afero.WriteFile(fsys, filepath.Join(src, name), []byte(data), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			if err := os.Chmod(filepath.Join(src, "sub", "b.txt"), 0); err != nil {
				t.Fatal(err)
			}

			return fsys, src, filepath.Join(dir, "enc")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fsys, src, dst := tt.setup(t)
			enc := service.NewEncryptService(service.WithFs(fsys), service.WithParams(fastParams()))

			var events recorder

			result, err := enc.Run(context.Background(),
				service.Request{Source: src, Destination: dst, Password: password}, events.sink)
			if !errors.Is(err, errs.ErrFileProcessing) || !errors.Is(err, fs.ErrPermission) {
				t.Fatalf("got %v, want ErrFileProcessing caused by ErrPermission", err)
			}

			var typed *errs.Error
			if !errors.As(err, &typed) || typed.Path != "sub/b.txt" || typed.Phase != service.ProcessingFiles.String() {
				t.Errorf("error = %#v, want path sub/b.txt in phase %q", typed, service.ProcessingFiles)
			}

			states := events.states()
			if result.State != service.Failed || states[len(states)-1] != service.Failed {
				t.Errorf("state = %v, states = %v", result.State, states)
			}

			if result.Stats.Files != 1 {
				t.Errorf("files encrypted before the failure = %d, want 1", result.Stats.Files)
			}

			for _, name := range []string{processor.ManifestFile, processor.SaltFile, "z.txt.encrypted"} {
				if ok, _ := afero.Exists(fsys, filepath.Join(dst, name)); ok {
					t.Errorf("%q written by an aborted run", name)
				}
			}

			if ok, _ := afero.Exists(fsys, filepath.Join(dst, "a.txt.encrypted")); !ok {
				t.Error("file encrypted before the failure was removed")
			}
		})
	}
}
