package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"panaudit/internal/analysis"
	"panaudit/internal/model"
	"panaudit/internal/parser"
	"panaudit/internal/store"
)

type handlers struct {
	store *store.Store
}

func apiError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error_code": code,
		"message":    message,
	})
}

func (h *handlers) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Firewall Policy Optimization Tool API",
		"status":  "running",
	})
}

func (h *handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

// CreateAudit accepts an uploaded configuration file, parses it, runs object
// usage analysis and persists the snapshot as a new audit session.
func (h *handlers) CreateAudit(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, "MISSING_FILE", "A configuration file must be uploaded as the 'file' form field")
	}
	sessionName := c.FormValue("session_name")

	slog.Info("File upload started", "filename", fileHeader.Filename, "session_name", sessionName)

	f, err := fileHeader.Open()
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_FILE", "Uploaded file could not be read")
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_FILE", "Uploaded file could not be read")
	}
	if len(content) == 0 {
		slog.Error("Empty file uploaded", "filename", fileHeader.Filename)
		return apiError(c, fiber.StatusBadRequest, "EMPTY_FILE", "Uploaded file is empty")
	}

	sum := sha256.Sum256(content)
	fileHash := hex.EncodeToString(sum[:])

	var rules []model.Rule
	var objects []model.Object
	var meta model.Metadata
	switch parser.DetectFormat(content) {
	case parser.FormatXML:
		rules, objects, meta, err = parser.ParseXML(content)
		if err != nil {
			slog.Error("XML parsing failed", "error", err)
			return apiError(c, fiber.StatusBadRequest, "INVALID_CONFIG_FILE", err.Error())
		}
	default:
		rules, objects, meta, err = parser.ParseSet(string(content))
		if err != nil {
			slog.Error("Set parsing failed", "error", err)
			return apiError(c, fiber.StatusBadRequest, "PARSING_ERROR", err.Error())
		}
	}

	analysis.AnalyzeObjectUsage(rules, objects)

	if sessionName == "" {
		sessionName = "Audit_" + time.Now().UTC().Format("20060102_150405")
	}
	if len(sessionName) > 255 {
		sessionName = sessionName[:255]
	}
	filename := fileHeader.Filename
	if filename == "" || len(filename) > 255 {
		slog.Warn("Invalid filename on upload", "filename", filename)
		if filename == "" {
			filename = "unknown_file"
		} else {
			filename = filename[:255]
		}
	}

	session, err := h.store.CreateSession(sessionName, filename, fileHash, meta)
	if err != nil {
		slog.Error("Failed to create audit session", "error", err)
		return apiError(c, fiber.StatusInternalServerError, "DATABASE_ERROR", "Failed to create audit session in database")
	}

	rulesStored, err := h.store.SaveRules(session.ID, rules)
	if err != nil {
		slog.Error("Error during rules storage", "audit_id", session.ID, "error", err)
	}
	objectsStored, err := h.store.SaveObjects(session.ID, objects)
	if err != nil {
		slog.Error("Error during objects storage", "audit_id", session.ID, "error", err)
	}
	if err := h.store.FinishSession(session.ID); err != nil {
		slog.Warn("Failed to mark audit session complete", "audit_id", session.ID, "error", err)
	}

	slog.Info("Audit session created", "audit_id", session.ID, "rules_stored", rulesStored, "objects_stored", objectsStored)

	metadata := session.MetadataMap()
	metadata["rules_parsed"] = len(rules)
	metadata["objects_parsed"] = len(objects)

	return c.JSON(fiber.Map{
		"status": "success",
		"data": fiber.Map{
			"audit_id":     session.ID,
			"session_name": session.SessionName,
			"start_time":   session.StartTime.Format(time.RFC3339),
			"filename":     session.Filename,
			"file_hash":    session.FileHash,
			"metadata":     metadata,
		},
		"message": "Audit session created successfully",
	})
}

func (h *handlers) ListAudits(c *fiber.Ctx) error {
	sessions, err := h.store.ListSessions()
	if err != nil {
		slog.Error("Error listing audit sessions", "error", err)
		return apiError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve audit sessions")
	}

	data := make([]fiber.Map, 0, len(sessions))
	for _, s := range sessions {
		data = append(data, sessionMap(&s))
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"data":    data,
		"message": fmt.Sprintf("Retrieved %d audit sessions", len(data)),
	})
}

func (h *handlers) GetAudit(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return apiError(c, fiber.StatusBadRequest, "INVALID_AUDIT_ID", "Audit id must be a positive integer")
	}

	session, err := h.store.GetSession(uint(id))
	if err == store.ErrSessionNotFound {
		return apiError(c, fiber.StatusNotFound, "AUDIT_NOT_FOUND", fmt.Sprintf("Audit session with ID %d not found", id))
	}
	if err != nil {
		slog.Error("Error retrieving audit session", "audit_id", id, "error", err)
		return apiError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve audit session")
	}

	ruleCount, objectCount, err := h.store.CountForSession(session.ID)
	if err != nil {
		slog.Error("Error counting session records", "audit_id", id, "error", err)
		return apiError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve audit session")
	}

	data := sessionMap(session)
	data["file_hash"] = session.FileHash
	data["rules_count"] = ruleCount
	data["objects_count"] = objectCount
	return c.JSON(fiber.Map{
		"status":  "success",
		"data":    data,
		"message": "Audit session retrieved successfully",
	})
}

// GetAnalysis loads the stored snapshot for a session and runs the rule
// analyzers on it.
func (h *handlers) GetAnalysis(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return apiError(c, fiber.StatusBadRequest, "INVALID_AUDIT_ID", "Audit id must be a positive integer")
	}

	rules, objects, err := h.store.Snapshot(uint(id))
	if err == store.ErrSessionNotFound {
		return apiError(c, fiber.StatusNotFound, "AUDIT_NOT_FOUND", fmt.Sprintf("Audit session with ID %d not found", id))
	}
	if err != nil {
		slog.Error("Error loading snapshot", "audit_id", id, "error", err)
		return apiError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load audit snapshot")
	}

	findings := analysis.AnalyzeRules(rules)
	report := analysis.BuildReport(rules, objects, findings)

	return c.JSON(fiber.Map{
		"status":  "success",
		"data":    report,
		"message": "Analysis completed successfully",
	})
}

func sessionMap(s *store.AuditSession) fiber.Map {
	var endTime any
	if s.EndTime != nil {
		endTime = s.EndTime.Format(time.RFC3339)
	}
	return fiber.Map{
		"audit_id":     s.ID,
		"session_name": s.SessionName,
		"start_time":   s.StartTime.Format(time.RFC3339),
		"end_time":     endTime,
		"filename":     s.Filename,
		"metadata":     s.MetadataMap(),
	}
}
