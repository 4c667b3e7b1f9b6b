package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/morgansundqvist/mbacklog/internal/application"
	"github.com/morgansundqvist/mbacklog/internal/domain"
)

const maxKnowledgeBaseFileSize = 10 << 20

type SessionHandler struct {
	Controller *application.SessionController
}

func NewSessionHandler(controller *application.SessionController) *SessionHandler {
	return &SessionHandler{Controller: controller}
}

// Register mounts the session routes on router, usually the /api group.
func (h *SessionHandler) Register(router fiber.Router) {
	sessions := router.Group("/sessions")
	sessions.Post("/", h.CreateSession)
	sessions.Get("/:id", h.GetSession)
	sessions.Delete("/:id", h.DeleteSession)
	sessions.Put("/:id/epic", h.SetEpic)
	sessions.Put("/:id/knowledge-base", h.SetKnowledgeBase)
	sessions.Post("/:id/knowledge-base/file", h.UploadKnowledgeBaseFile)
	sessions.Post("/:id/generate", h.Generate)
	sessions.Post("/:id/clarify", h.Clarify)
	sessions.Post("/:id/import", h.Import)
	sessions.Post("/:id/export", h.Export)
	sessions.Get("/:id/export/csv", h.ExportCSV)
	sessions.Get("/:id/export/markdown", h.ExportMarkdown)
}

// errorStatus maps domain errors to an HTTP status and a short summary.
func errorStatus(err error) (int, string) {
	var (
		validationErr    *domain.ValidationError
		trackerErr       *domain.TrackerError
		generationErr    *domain.GenerationError
		clarificationErr *domain.ClarificationError
	)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return fiber.StatusNotFound, "session not found"
	case errors.Is(err, domain.ErrBusy):
		return fiber.StatusConflict, "operation in progress"
	case errors.As(err, &validationErr),
		errors.Is(err, domain.ErrEmptyEpic),
		errors.Is(err, domain.ErrEmptyQuestion),
		errors.Is(err, domain.ErrNoStories),
		errors.Is(err, domain.ErrUnknownPlatform),
		errors.Is(err, domain.ErrUnsupportedFile):
		return fiber.StatusBadRequest, "invalid request"
	case errors.As(err, &generationErr):
		return fiber.StatusBadGateway, "backlog generation failed"
	case errors.As(err, &clarificationErr):
		return fiber.StatusBadGateway, "clarification failed"
	case errors.As(err, &trackerErr):
		return fiber.StatusBadGateway, "tracker request failed"
	}
	return fiber.StatusInternalServerError, "internal error"
}

func errorResponse(c *fiber.Ctx, err error) error {
	status, summary := errorStatus(err)
	return c.Status(status).JSON(fiber.Map{
		"error":   summary,
		"details": err.Error(),
	})
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "cannot parse JSON",
		"details": err.Error(),
	})
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	session, err := h.Controller.NewSession()
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	session, err := h.Controller.GetSession(c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(session)
}

func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	if err := h.Controller.DeleteSession(c.Params("id")); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type epicRequest struct {
	EpicText string `json:"epicText"`
}

func (h *SessionHandler) SetEpic(c *fiber.Ctx) error {
	req := new(epicRequest)
	if err := c.BodyParser(req); err != nil {
		return badBody(c, err)
	}
	session, err := h.Controller.SetEpic(c.Params("id"), req.EpicText)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(session)
}

type knowledgeBaseRequest struct {
	KnowledgeBase string `json:"knowledgeBase"`
}

func (h *SessionHandler) SetKnowledgeBase(c *fiber.Ctx) error {
	req := new(knowledgeBaseRequest)
	if err := c.BodyParser(req); err != nil {
		return badBody(c, err)
	}
	session, err := h.Controller.SetKnowledgeBase(c.Params("id"), req.KnowledgeBase)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(session)
}

func (h *SessionHandler) UploadKnowledgeBaseFile(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "missing file",
			"details": err.Error(),
		})
	}
	if fileHeader.Size > maxKnowledgeBaseFileSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error":   "file too large",
			"details": fileHeader.Filename,
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return errorResponse(c, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return errorResponse(c, err)
	}

	session, err := h.Controller.LoadKnowledgeBaseFile(c.Params("id"), fileHeader.Filename, data)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(session)
}

func (h *SessionHandler) Generate(c *fiber.Ctx) error {
	session, err := h.Controller.Generate(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(session)
}

type clarifyRequest struct {
	Question string `json:"question"`
}

func (h *SessionHandler) Clarify(c *fiber.Ctx) error {
	req := new(clarifyRequest)
	if err := c.BodyParser(req); err != nil {
		return badBody(c, err)
	}
	session, err := h.Controller.Clarify(c.UserContext(), c.Params("id"), req.Question)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(session)
}

func (h *SessionHandler) Import(c *fiber.Ctx) error {
	cfg := new(domain.ImportConfig)
	if err := c.BodyParser(cfg); err != nil {
		return badBody(c, err)
	}
	session, err := h.Controller.Import(c.UserContext(), c.Params("id"), *cfg)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(session)
}

func (h *SessionHandler) Export(c *fiber.Ctx) error {
	cfg := new(domain.ExportConfig)
	if err := c.BodyParser(cfg); err != nil {
		return badBody(c, err)
	}
	session, result, err := h.Controller.Export(c.UserContext(), c.Params("id"), *cfg)
	if err != nil {
		status, summary := errorStatus(err)
		body := fiber.Map{"error": summary, "details": err.Error()}
		if len(result.Items) > 0 {
			body["result"] = result
		}
		return c.Status(status).JSON(body)
	}
	return c.JSON(fiber.Map{
		"session": session,
		"result":  result,
	})
}

func (h *SessionHandler) ExportCSV(c *fiber.Ctx) error {
	platform, err := domain.ParsePlatform(c.Query("platform"))
	if err != nil {
		return errorResponse(c, err)
	}
	data, fileName, err := h.Controller.ExportCSV(c.Params("id"), platform)
	if err != nil {
		return errorResponse(c, err)
	}
	c.Attachment(fileName)
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(data)
}

func (h *SessionHandler) ExportMarkdown(c *fiber.Ctx) error {
	data, err := h.Controller.ExportMarkdown(c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	c.Attachment("backlog.md")
	c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
	return c.Send(data)
}
