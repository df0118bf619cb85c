// Package inbox turns files dropped into a folder into work orders. Each settled file runs
// through CreateWorkflow on its own and is then moved to processed/ or failed/.
package inbox

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/agent"
	"github.com/hyperjump/taxdesk/internal/config"
	"github.com/hyperjump/taxdesk/pkg/utils"
)

// Subdirectories that receive handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Workflows creates a work order from uploads.
type Workflows interface {
	CreateWorkflow(ctx context.Context, req agent.WorkflowRequest) agent.WorkflowResult
}

// Inbox watches a directory and feeds its files to a Workflows.
type Inbox struct {
	cfg       config.InboxConfig
	workflows Workflows
	logger    *zap.Logger
	watcher   *watcher

	// serializes runs so files are handled one at a time
	runMu sync.Mutex
	ctx   context.Context
	wg    sync.WaitGroup
}

// New returns an Inbox for cfg.Directory. The directory and its subdirectories are created.
func New(cfg config.InboxConfig, workflows Workflows, logger *zap.Logger) (*Inbox, error) {
	if cfg.Directory == "" {
		return nil, eris.New("inbox directory is required")
	}
	for _, d := range []string{cfg.Directory, filepath.Join(cfg.Directory, ProcessedDir), filepath.Join(cfg.Directory, FailedDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, eris.Wrapf(err, "create %s", d)
		}
	}
	in := &Inbox{cfg: cfg, workflows: workflows, logger: utils.OrNop(logger), ctx: context.Background()}
	in.watcher = newWatcher(cfg.Directory, cfg.Extensions, cfg.Debounce, in.enqueue, in.logger)
	return in, nil
}

// Start watches the directory until ctx is cancelled. Files already present are handled first.
func (in *Inbox) Start(ctx context.Context) error {
	in.ctx = ctx
	if err := in.watcher.start(ctx); err != nil {
		return eris.Wrapf(err, "watch %s", in.cfg.Directory)
	}
	in.logger.Info("Inbox started", zap.String("dir", in.cfg.Directory))
	for _, path := range in.watcher.existing() {
		in.enqueue(path)
	}
	return nil
}

// Wait blocks until all started runs have finished.
func (in *Inbox) Wait() {
	in.wg.Wait()
}

func (in *Inbox) enqueue(path string) {
	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		in.runMu.Lock()
		defer in.runMu.Unlock()
		if in.ctx.Err() != nil {
			return
		}
		_, _ = in.HandleFile(in.ctx, path)
	}()
}

// HandleFile runs one file through the workflow and moves it to processed/ or failed/.
// It returns the workflow result and the file's new path.
func (in *Inbox) HandleFile(ctx context.Context, path string) (agent.WorkflowResult, string) {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			in.logger.Warn("Inbox file unreadable", zap.String("file", name), zap.Error(err))
		}
		return agent.WorkflowResult{Outcome: agent.Outcome{Error: err.Error(), ErrorKind: agent.KindInput}}, path
	}

	res := in.workflows.CreateWorkflow(ctx, agent.WorkflowRequest{
		Uploads: []agent.Upload{{
			Filename:    name,
			ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
			Content:     data,
		}},
		Name:        strings.TrimSuffix(name, filepath.Ext(name)),
		Description: "Inbox: " + name,
	})

	target := ProcessedDir
	if !res.Success {
		target = FailedDir
		in.logger.Warn("Inbox workflow failed",
			zap.String("file", name),
			zap.String("kind", string(res.ErrorKind)),
			zap.String("error", res.Error))
	} else {
		in.logger.Info("Inbox workflow created",
			zap.String("file", name),
			zap.Int64("work_order_id", res.WorkOrder.ID))
	}
	dest, err := moveTo(path, filepath.Join(in.cfg.Directory, target))
	if err != nil {
		in.logger.Error("Moving inbox file failed", zap.String("file", name), zap.Error(err))
		return res, path
	}
	return res, dest
}

// moveTo renames path into dir, adding a numeric suffix when the name is taken.
func moveTo(path, dir string) (string, error) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	dest := filepath.Join(dir, base)
	for i := 1; ; i++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			break
		}
		dest = filepath.Join(dir, stem+"-"+strconv.Itoa(i)+ext)
	}
	if err := os.Rename(path, dest); err != nil {
		return "", eris.Wrapf(err, "move %s", base)
	}
	return dest, nil
}
