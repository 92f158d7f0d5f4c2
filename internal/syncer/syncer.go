// Package syncer mirrors a local directory onto a remote target by erasing
// the remote copy and uploading every local file again.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/eugenetaranov/sitepush/internal/output"
	"github.com/eugenetaranov/sitepush/internal/session"
	"github.com/eugenetaranov/sitepush/internal/syncerr"
	"github.com/eugenetaranov/sitepush/internal/tree"
)

// Job names what to mirror where.
type Job struct {
	// LocalRoot is the local directory whose contents are uploaded.
	LocalRoot string

	// RemoteRoot is the remote directory that is replaced, with / separators.
	RemoteRoot string
}

// Phase identifies the step of a sync.
type Phase string

// Sync phases, in order.
const (
	PhaseValidate Phase = "validate"
	PhaseConnect  Phase = "connect"
	PhaseErase    Phase = "erase"
	PhaseBuild    Phase = "build"
	PhaseUpload   Phase = "upload"
	PhaseDone     Phase = "done"
)

// Result holds the outcome of a sync.
type Result struct {
	// Success is true if every local file was uploaded.
	Success bool

	// Phase is the phase that failed, or PhaseDone.
	Phase Phase

	// Err is the fatal error, nil on success.
	Err error

	// EraseErr is the advisory error from the erase phase, if any.
	EraseErr error

	// FailedFile is the remote path whose upload failed, if any.
	FailedFile string

	// Stats holds transfer statistics.
	Stats *Stats
}

// Stats holds transfer statistics.
type Stats struct {
	Files     int
	Bytes     int64
	Failed    int
	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the total sync time.
func (s *Stats) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// GetFiles returns the uploaded file count (implements output.Stats).
func (s *Stats) GetFiles() int { return s.Files }

// GetBytes returns the uploaded byte count (implements output.Stats).
func (s *Stats) GetBytes() int64 { return s.Bytes }

// GetFailed returns the failed upload count (implements output.Stats).
func (s *Stats) GetFailed() int { return s.Failed }

// GetDuration returns the duration (implements output.Stats).
func (s *Stats) GetDuration() time.Duration { return s.Duration() }

// Syncer runs sync jobs. It holds no state between runs.
type Syncer struct {
	sink    output.Sink
	dialer  Dialer
	localFs afero.Fs
	logger  *log.Logger
}

// Option configures the syncer.
type Option func(*Syncer)

// WithDialer replaces the protocol dispatch used to open sessions.
func WithDialer(d Dialer) Option {
	return func(s *Syncer) {
		s.dialer = d
	}
}

// WithLocalFs sets the filesystem the local root is read from.
func WithLocalFs(fsys afero.Fs) Option {
	return func(s *Syncer) {
		s.localFs = fsys
	}
}

// WithLogger sets the diagnostic logger, also passed to sessions.
func WithLogger(l *log.Logger) Option {
	return func(s *Syncer) {
		s.logger = l
	}
}

// New creates a syncer reporting progress to sink.
func New(sink output.Sink, opts ...Option) *Syncer {
	s := &Syncer{
		sink:    sink,
		localFs: afero.NewOsFs(),
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dialer == nil {
		s.dialer = NewDialer(s.logger)
	}
	return s
}

// Run mirrors job.LocalRoot onto job.RemoteRoot at ep.
//
// The local root is checked before connecting. Erase failures are reported
// as advisories; build and upload failures stop the run. The first failed
// upload aborts the rest of the walk. The session is closed on every path
// once it has been opened.
func (s *Syncer) Run(ctx context.Context, job Job, ep session.Endpoint) *Result {
	stats := &Stats{StartTime: time.Now()}
	result := &Result{Stats: stats}
	defer func() { stats.EndTime = time.Now() }()

	fail := func(phase Phase, err error) *Result {
		result.Phase = phase
		result.Err = err
		s.logger.Debug("sync failed", "phase", phase, "error", err)
		return result
	}

	if err := s.checkLocalRoot(job.LocalRoot); err != nil {
		s.sink.Failure("Local directory not usable: %v", err)
		return fail(PhaseValidate, err)
	}
	remoteRoot := strings.TrimSpace(job.RemoteRoot)
	if remoteRoot == "" {
		err := errors.New("remote root is empty")
		s.sink.Failure("Invalid job: %v", err)
		return fail(PhaseValidate, err)
	}

	sess, err := s.dialer(ctx, ep)
	if err != nil {
		s.sink.Failure("Connection to %s failed: %v", ep.String(), err)
		return fail(PhaseConnect, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			s.logger.Warn("close session", "target", sess.String(), "error", err)
		}
	}()
	s.sink.Success("Connected to %s", sess.String())

	if err := tree.Erase(sess, remoteRoot); err != nil {
		result.EraseErr = err
		s.sink.Advisory("Could not fully remove %s: %v", remoteRoot, err)
	} else {
		s.sink.Success("Removed old %s", remoteRoot)
	}

	builder := tree.NewBuilder(sess)
	if err := builder.Ensure(remoteRoot); err != nil {
		s.sink.Failure("Could not create %s: %v", remoteRoot, err)
		return fail(PhaseBuild, err)
	}
	s.sink.Success("Created %s", remoteRoot)

	for file, err := range tree.Walk(s.localFs, job.LocalRoot) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.sink.Failure("Sync cancelled: %v", ctxErr)
			return fail(PhaseUpload, ctxErr)
		}
		if err != nil {
			s.sink.Failure("Cannot read %s: %v", file.Path, err)
			return fail(PhaseUpload, err)
		}

		remotePath := path.Join(remoteRoot, file.Rel)
		if err := s.upload(sess, builder, file, remotePath); err != nil {
			stats.Failed++
			result.FailedFile = remotePath
			s.sink.Failure("Upload failed: %s - %v", remotePath, err)
			return fail(PhaseUpload, err)
		}

		stats.Files++
		stats.Bytes += file.Size
		s.sink.Success("Uploaded %s", remotePath)
	}

	result.Success = true
	result.Phase = PhaseDone
	return result
}

func (s *Syncer) checkLocalRoot(root string) error {
	if strings.TrimSpace(root) == "" {
		return syncerr.LocalPath("stat", root, errors.New("local root is empty"))
	}
	info, err := s.localFs.Stat(root)
	if err != nil {
		return syncerr.LocalPath("stat", root, err)
	}
	if !info.IsDir() {
		return syncerr.LocalPath("stat", root, errors.New("not a directory"))
	}
	return nil
}

func (s *Syncer) upload(sess session.Session, builder *tree.Builder, file tree.File, remotePath string) error {
	if err := builder.Ensure(path.Dir(remotePath)); err != nil {
		return err
	}

	f, err := s.localFs.Open(file.Path)
	if err != nil {
		return syncerr.LocalPath("open", file.Path, err)
	}
	defer f.Close()

	if err := sess.Upload(f, remotePath); err != nil {
		return err
	}
	s.logger.Debug("uploaded", "local", file.Path, "remote", remotePath, "bytes", file.Size)
	return nil
}

// Summary returns a one-line description of a finished run.
func (r *Result) Summary() string {
	if r.Success {
		return fmt.Sprintf("synced %d files (%d bytes)", r.Stats.Files, r.Stats.Bytes)
	}
	return fmt.Sprintf("%s failed: %v", r.Phase, r.Err)
}
