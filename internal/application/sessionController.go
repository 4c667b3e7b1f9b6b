package application

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/morgansundqvist/mbacklog/internal/domain"
	"github.com/morgansundqvist/mbacklog/internal/ports"
)

const DefaultImportDismissAfter = 1500 * time.Millisecond

type SessionControllerConfig struct {
	// ImportDismissAfter is how long a successful import message stays visible.
	ImportDismissAfter time.Duration
	Logger             *slog.Logger
	Now                func() time.Time
}

// SessionController owns the state of every backlog session. Each operation
// applies a begin transition, performs its I/O without holding the session,
// then applies the matching completion transition.
type SessionController struct {
	repo          ports.SessionRepository
	backlog       *BacklogService
	trackers      map[domain.Platform]ports.Tracker
	csvExporter   ports.CSVExporter
	htmlConverter ports.HTMLConverter
	dismissAfter  time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

func NewSessionController(
	repo ports.SessionRepository,
	backlog *BacklogService,
	trackers map[domain.Platform]ports.Tracker,
	csvExporter ports.CSVExporter,
	htmlConverter ports.HTMLConverter,
	cfg SessionControllerConfig,
) *SessionController {
	if cfg.ImportDismissAfter <= 0 {
		cfg.ImportDismissAfter = DefaultImportDismissAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SessionController{
		repo:          repo,
		backlog:       backlog,
		trackers:      trackers,
		csvExporter:   csvExporter,
		htmlConverter: htmlConverter,
		dismissAfter:  cfg.ImportDismissAfter,
		now:           cfg.Now,
		logger:        cfg.Logger,
	}
}

func (c *SessionController) NewSession() (domain.Session, error) {
	session := domain.NewSession(uuid.NewString(), c.now())
	if err := c.repo.StoreSession(session); err != nil {
		return domain.Session{}, err
	}
	c.logger.Info("session created", slog.String("session", session.ID))
	return session, nil
}

func (c *SessionController) GetSession(id string) (domain.Session, error) {
	return c.repo.GetSession(id)
}

func (c *SessionController) DeleteSession(id string) error {
	return c.repo.DeleteSession(id)
}

func (c *SessionController) SetEpic(id, text string) (domain.Session, error) {
	return c.repo.UpdateSession(id, func(s domain.Session) (domain.Session, error) {
		return domain.SetEpic(s, text), nil
	})
}

func (c *SessionController) SetKnowledgeBase(id, text string) (domain.Session, error) {
	return c.repo.UpdateSession(id, func(s domain.Session) (domain.Session, error) {
		return domain.SetKnowledgeBase(s, text), nil
	})
}

// LoadKnowledgeBaseFile replaces the knowledge base with the file content. HTML
// files are converted to markdown. A rejected file clears the knowledge base.
func (c *SessionController) LoadKnowledgeBaseFile(id, name string, data []byte) (domain.Session, error) {
	text, readErr := c.knowledgeBaseText(name, data)
	if readErr != nil {
		c.logger.Warn("knowledge base file rejected", slog.String("session", id), slog.String("file", name), slog.String("error", readErr.Error()))
		s, err := c.repo.UpdateSession(id, func(s domain.Session) (domain.Session, error) {
			return domain.ClearKnowledgeBase(s), nil
		})
		if err != nil {
			return s, err
		}
		return s, readErr
	}
	return c.SetKnowledgeBase(id, text)
}

func (c *SessionController) knowledgeBaseText(name string, data []byte) (string, error) {
	if !domain.IsKnowledgeBaseFile(name) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFile, name)
	}
	if domain.IsHTMLFile(name) {
		markdown, err := c.htmlConverter.ToMarkdown(string(data))
		if err != nil {
			return "", fmt.Errorf("failed to convert %s to markdown: %w", name, err)
		}
		return markdown, nil
	}
	return string(data), nil
}

// Generate replaces the story list with a freshly generated backlog. On
// failure the previous stories are kept and the error is recorded.
func (c *SessionController) Generate(ctx context.Context, id string) (domain.Session, error) {
	s, err := c.repo.UpdateSession(id, domain.BeginGeneration)
	if err != nil {
		return s, err
	}

	c.logger.Info("generating backlog", slog.String("session", id))
	drafts, genErr := c.backlog.GenerateProductBacklog(ctx, s.EpicText, s.KnowledgeBase)
	if genErr != nil {
		s, err = c.repo.UpdateSession(id, func(s domain.Session) (domain.Session, error) {
			return domain.FailGeneration(s, genErr), nil
		})
		if err != nil {
			return s, err
		}
		return s, genErr
	}

	stories := domain.AssignIDs(drafts, c.now())
	return c.repo.UpdateSession(id, func(s domain.Session) (domain.Session, error) {
		return domain.CompleteGeneration(s, stories), nil
	})
}

// Clarify answers a question about the current backlog. Stories are never changed.
func (c *SessionController) Clarify(ctx context.Context, id, question string) (domain.Session, error) {
	s, err := c.repo.UpdateSession(id, func(s domain.Session) (domain.Session, error) {
		return domain.BeginClarification(s, question)
	})
	if err != nil {
		return s, err
	}

	answer, askErr := c.backlog.GetClarification(ctx, s.Stories, s.KnowledgeBase, question)
	if askErr != nil {
		s, err = c.repo.UpdateSession(id, func(s domain.Session) (domain.Session, error) {
			return domain.FailClarification(s, askErr), nil
		})
		if err != nil {
			return s, err
		}
		return s, askErr
	}

	return c.repo.UpdateSession(id, func(s domain.Session) (domain.Session, error) {
		return domain.CompleteClarification(s, answer), nil
	})
}

func (c *SessionController) tracker(platform domain.Platform) (ports.Tracker, error) {
	t, ok := c.trackers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPlatform, platform)
	}
	return t, nil
}

// Import fetches items from a tracker and appends them to the knowledge base.
// A successful import returns to idle on its own after the dismiss delay.
func (c *SessionController) Import(ctx context.Context, id string, cfg domain.ImportConfig) (domain.Session, error) {
	if err := cfg.Validate(); err != nil {
		return domain.Session{}, err
	}
	tracker, err := c.tracker(cfg.Platform)
	if err != nil {
		return domain.Session{}, err
	}

	s, err := c.repo.UpdateSession(id, domain.BeginImport)
	if err != nil {
		return s, err
	}

	c.logger.Info("importing from tracker", slog.String("session", id), slog.String("platform", string(cfg.Platform)))
	text, importErr := tracker.ImportItems(ctx, cfg)
	if importErr != nil {
		s, err = c.repo.UpdateSession(id, func(s domain.Session) (domain.Session, error) {
			return domain.FailImport(s, importErr), nil
		})
		if err != nil {
			return s, err
		}
		return s, importErr
	}

	dismissAt := c.now().Add(c.dismissAfter)
	s, err = c.repo.UpdateSession(id, func(s domain.Session) (domain.Session, error) {
		return domain.CompleteImport(s, cfg.Platform, text, dismissAt), nil
	})
	if err != nil {
		return s, err
	}

	time.AfterFunc(c.dismissAfter, func() {
		c.dismissImport(id, dismissAt)
	})
	return s, nil
}

// dismissImport only clears the import it was scheduled for; a newer import keeps its message.
func (c *SessionController) dismissImport(id string, dismissAt time.Time) {
	_, err := c.repo.UpdateSession(id, func(s domain.Session) (domain.Session, error) {
		if s.Import.DismissAt == nil || !s.Import.DismissAt.Equal(dismissAt) {
			return s, nil
		}
		return domain.DismissImport(s), nil
	})
	if err != nil {
		c.logger.Debug("import dismiss skipped", slog.String("session", id), slog.String("error", err.Error()))
	}
}

// Export sends the current stories to a tracker. The stories themselves are not modified.
func (c *SessionController) Export(ctx context.Context, id string, cfg domain.ExportConfig) (domain.Session, domain.ExportResult, error) {
	if err := cfg.Validate(); err != nil {
		return domain.Session{}, domain.ExportResult{}, err
	}
	tracker, err := c.tracker(cfg.Platform)
	if err != nil {
		return domain.Session{}, domain.ExportResult{}, err
	}

	s, err := c.repo.UpdateSession(id, domain.BeginExport)
	if err != nil {
		return s, domain.ExportResult{}, err
	}

	c.logger.Info("exporting stories",
		slog.String("session", id),
		slog.String("platform", string(cfg.Platform)),
		slog.Int("stories", len(s.Stories)))
	result, exportErr := tracker.ExportStories(ctx, cfg, s.Stories)
	if exportErr != nil {
		s, err = c.repo.UpdateSession(id, func(s domain.Session) (domain.Session, error) {
			return domain.FailExport(s, exportErr), nil
		})
		if err != nil {
			return s, result, err
		}
		return s, result, exportErr
	}

	s, err = c.repo.UpdateSession(id, func(s domain.Session) (domain.Session, error) {
		return domain.CompleteExport(s, result), nil
	})
	return s, result, err
}

// ExportCSV renders the stories in the CSV import format of the platform and
// returns the content with its download file name.
func (c *SessionController) ExportCSV(id string, platform domain.Platform) ([]byte, string, error) {
	s, err := c.repo.GetSession(id)
	if err != nil {
		return nil, "", err
	}
	if len(s.Stories) == 0 {
		return nil, "", domain.ErrNoStories
	}

	var buf bytes.Buffer
	if err := c.csvExporter.WriteCSV(&buf, platform, s.Stories); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), c.csvExporter.FileName(platform), nil
}

// ExportMarkdown renders the epic and stories as a backlog document.
func (c *SessionController) ExportMarkdown(id string) ([]byte, error) {
	s, err := c.repo.GetSession(id)
	if err != nil {
		return nil, err
	}
	if len(s.Stories) == 0 {
		return nil, domain.ErrNoStories
	}

	var buf bytes.Buffer
	if err := domain.NewBacklogDocument(s.EpicText, s.Stories, c.now()).Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
