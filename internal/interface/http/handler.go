package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/docchat/internal/domain/docchat"
	"github.com/yanqian/docchat/internal/infra/config"
	apperrors "github.com/yanqian/docchat/pkg/errors"
)

const (
	noInputMessage       = "No input provided."
	uploadFailurePrefix  = "Error reading file: "
	uploadTooLargeFormat = "file exceeds the %d byte upload limit"
)

// Handler wires the HTTP transport to the conversation service.
type Handler struct {
	svc            docchat.Service
	identity       identityFunc
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(cfg *config.Config, svc docchat.Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:            svc,
		identity:       newIdentityFunc(cfg.Session.Identity),
		maxUploadBytes: cfg.HTTP.MaxUploadBytes,
		logger:         logger.With("component", "http.handler"),
	}
}

// Page renders one of the static HTML pages.
func (h *Handler) Page(name, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, name, gin.H{"Title": title})
	}
}

// Chat accepts either a document upload or a question. A file wins when both are sent.
func (h *Handler) Chat(c *gin.Context) {
	clientID := h.identity(c)
	if h.maxUploadBytes > 0 {
		// Multipart framing adds a little on top of the file itself.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+64<<10)
	}

	fileHeader, err := c.FormFile("file")
	switch {
	case err == nil:
		h.upload(c, clientID, fileHeader)
		return
	case isBodyTooLarge(err):
		msg := fmt.Sprintf(uploadTooLargeFormat, h.maxUploadBytes)
		abortWithError(c, NewHTTPError(http.StatusRequestEntityTooLarge, "upload_too_large", uploadFailurePrefix+msg, err))
		return
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", uploadFailurePrefix+err.Error(), err))
		return
	}

	message := c.PostForm("message")
	if message == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeNoInput, noInputMessage, nil))
		return
	}
	h.ask(c, clientID, message)
}

func (h *Handler) upload(c *gin.Context, clientID string, fileHeader *multipart.FileHeader) {
	data, err := readUpload(fileHeader, h.maxUploadBytes)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", uploadFailurePrefix+err.Error(), err))
		return
	}

	resp, err := h.svc.Upload(c.Request.Context(), clientID, fileHeader.Filename, data)
	if err != nil {
		status := http.StatusBadRequest
		if apperrors.IsCode(err, apperrors.CodeStorage) {
			status = http.StatusInternalServerError
		}
		code := apperrors.CodeOf(err)
		if code == "" {
			code = "upload_failed"
		}
		abortWithError(c, NewHTTPError(status, code, uploadFailurePrefix+errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ask(c *gin.Context, clientID, message string) {
	resp, err := h.svc.Ask(c.Request.Context(), clientID, message)
	if err != nil {
		msg := errMessage(err)
		if cause := errors.Unwrap(err); cause != nil && apperrors.IsCode(err, apperrors.CodeLLM) {
			msg = "Error: " + cause.Error()
		}
		abortWithError(c, NewHTTPError(statusFor(err, http.StatusInternalServerError), apperrors.CodeOf(err), msg, err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History returns the caller's question and answer pairs.
func (h *Handler) History(c *gin.Context) {
	history, err := h.svc.History(c.Request.Context(), h.identity(c))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, apperrors.CodeOf(err), errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// Reset forgets the caller's document and conversation.
func (h *Handler) Reset(c *gin.Context) {
	if err := h.svc.Reset(c.Request.Context(), h.identity(c)); err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, apperrors.CodeOf(err), errMessage(err), err))
		return
	}
	c.Status(http.StatusNoContent)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readUpload(fileHeader *multipart.FileHeader, limit int64) ([]byte, error) {
	if limit > 0 && fileHeader.Size > limit {
		return nil, fmt.Errorf(uploadTooLargeFormat, limit)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
