package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/octobees/turmeric-buyers/internal/dto"
	"github.com/octobees/turmeric-buyers/internal/entity"
	"github.com/octobees/turmeric-buyers/internal/export"
	"github.com/octobees/turmeric-buyers/internal/service"
	"github.com/octobees/turmeric-buyers/internal/source"
)

const maxUploadBytes = 10 << 20

// BuyersHandler exposes validation, collection and buyer listing endpoints.
type BuyersHandler struct {
	service *service.BuyersService
	now     func() time.Time
}

// NewBuyersHandler creates a new handler instance.
func NewBuyersHandler(svc *service.BuyersService) *BuyersHandler {
	return &BuyersHandler{service: svc, now: time.Now}
}

// Validate handles POST /validate requests.
func (h *BuyersHandler) Validate(c echo.Context) error {
	var req dto.ValidateRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return Error(c, http.StatusBadRequest, validationMessage(err))
	}
	return h.runValidation(c, req.Records, req.Threshold)
}

// ValidateUpload handles POST /validate/csv requests. The file may be CSV or
// an .xlsx workbook.
func (h *BuyersHandler) ValidateUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return Error(c, http.StatusBadRequest, "missing csv file")
	}
	if fileHeader.Size > maxUploadBytes {
		return Error(c, http.StatusRequestEntityTooLarge, "file exceeds 10MB")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return Error(c, http.StatusBadRequest, "unable to open file")
	}
	defer file.Close()

	var records []entity.CandidateRecord
	if strings.EqualFold(filepath.Ext(fileHeader.Filename), ".xlsx") {
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			return Error(c, http.StatusBadRequest, "unable to read file")
		}
		records, err = source.ReadXLSXBytes(data, "upload")
	} else {
		records, err = source.ReadCSV(file, "upload")
	}
	if err != nil {
		var validationErr source.CSVValidationError
		if errors.As(err, &validationErr) {
			return Error(c, http.StatusBadRequest, validationErr.Error())
		}
		return Error(c, http.StatusInternalServerError, "failed to process csv")
	}
	if len(records) == 0 {
		return Error(c, http.StatusBadRequest, "file contains no records")
	}
	if err := service.CheckBatchSize(len(records)); err != nil {
		return ServiceError(c, err, "validation failed")
	}

	return h.runValidation(c, records, c.FormValue("threshold"))
}

func (h *BuyersHandler) runValidation(c echo.Context, records []entity.CandidateRecord, threshold string) error {
	batch, err := h.service.Validate(c.Request().Context(), records, threshold)
	if err != nil {
		return ServiceError(c, err, "validation failed")
	}

	rejected := batch.Rejected
	if rejected == nil {
		rejected = []entity.ValidatedRecord{}
	}
	return Success(c, http.StatusOK, "validation complete", dto.ValidateResponse{
		Summary:  service.Summarize(service.RunOutcome{Batch: batch}),
		Accepted: batch.Accepted,
		Rejected: rejected,
	})
}

// Collect handles POST /collect requests.
func (h *BuyersHandler) Collect(c echo.Context) error {
	var req dto.CollectRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	for i := range req.Terms {
		req.Terms[i] = strings.TrimSpace(req.Terms[i])
	}
	if err := c.Validate(&req); err != nil {
		return Error(c, http.StatusBadRequest, validationMessage(err))
	}

	outcome, err := h.service.Collect(c.Request().Context(), service.CollectOptions{
		Terms:      req.Terms,
		MaxPerTerm: req.MaxPerTerm,
		Target:     req.Target,
		Persist:    req.ShouldPersist(),
	})
	if err != nil {
		return ServiceError(c, err, "collect run failed")
	}

	return Success(c, http.StatusOK, "collect run finished", service.Summarize(outcome))
}

// List handles GET /buyers requests.
func (h *BuyersHandler) List(c echo.Context) error {
	filter, err := parseBuyerFilter(c)
	if err != nil {
		return Error(c, http.StatusBadRequest, err.Error())
	}

	buyers, err := h.service.List(c.Request().Context(), filter)
	if err != nil {
		return ServiceError(c, err, "failed to list buyers")
	}

	return Success(c, http.StatusOK, "buyers retrieved", buyers)
}

// Export handles GET /buyers/export requests.
func (h *BuyersHandler) Export(c echo.Context) error {
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "format must be csv, json or xlsx")
	}
	filter, err := parseBuyerFilter(c)
	if err != nil {
		return Error(c, http.StatusBadRequest, err.Error())
	}

	records, err := h.service.ExportRecords(c.Request().Context(), filter)
	if err != nil {
		return ServiceError(c, err, "failed to load buyers")
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, records); err != nil {
		zap.L().Error("export failed", zap.String("format", string(format)), zap.Error(err))
		return Error(c, http.StatusInternalServerError, "failed to export buyers")
	}

	filename := export.Filename(h.now(), format)
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

type filterError string

func (e filterError) Error() string { return string(e) }

func parseBuyerFilter(c echo.Context) (dto.BuyerFilter, error) {
	filter := dto.BuyerFilter{
		Q:       strings.TrimSpace(c.QueryParam("q")),
		City:    strings.TrimSpace(c.QueryParam("city")),
		Country: strings.TrimSpace(c.QueryParam("country")),
		Page:    parseIntDefault(c.QueryParam("page"), 0),
		PerPage: parseIntDefault(c.QueryParam("per_page"), 0),
		Limit:   parseIntDefault(c.QueryParam("limit"), 0),
	}

	if minScoreStr := strings.TrimSpace(c.QueryParam("min_score")); minScoreStr != "" {
		minScore, err := strconv.Atoi(minScoreStr)
		if err != nil || minScore < 0 || minScore > 100 {
			return dto.BuyerFilter{}, filterError("invalid min_score (use 0-100)")
		}
		filter.MinScore = &minScore
	}
	return filter, nil
}

func parseIntDefault(input string, fallback int) int {
	if input == "" {
		return fallback
	}
	if value, err := strconv.Atoi(input); err == nil {
		return value
	}
	return fallback
}
