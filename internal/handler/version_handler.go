package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cvkit/cvault/internal/pkg/errcode"
	"github.com/cvkit/cvault/internal/pkg/response"
	"github.com/cvkit/cvault/internal/service"
)

type VersionHandler struct {
	versions *service.VersionService
}

func NewVersionHandler(versions *service.VersionService) *VersionHandler {
	return &VersionHandler{versions: versions}
}

type createVersionRequest struct {
	ChangeType        string `json:"change_type"`
	ChangeDescription string `json:"change_description"`
	Label             string `json:"label"`
}

func (h *VersionHandler) Create(c *gin.Context) {
	var req createVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	version, err := h.versions.CreateVersion(c.Request.Context(), getUserID(c), c.Param("id"), service.CreateVersionInput{
		ChangeType:        req.ChangeType,
		ChangeDescription: req.ChangeDescription,
		Label:             req.Label,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, version)
}

func (h *VersionHandler) List(c *gin.Context) {
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 0)
	versions, err := h.versions.ListVersions(c.Request.Context(), getUserID(c), c.Param("id"), page, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, versions)
}

func (h *VersionHandler) Get(c *gin.Context) {
	versionNumber, err := strconv.Atoi(c.Param("version"))
	if err != nil || versionNumber <= 0 {
		response.Error(c, errcode.ErrInvalid, "invalid version")
		return
	}
	version, err := h.versions.GetVersion(c.Request.Context(), getUserID(c), c.Param("id"), versionNumber)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, version)
}

func (h *VersionHandler) Restore(c *gin.Context) {
	versionNumber, err := strconv.Atoi(c.Param("version"))
	if err != nil || versionNumber <= 0 {
		response.Error(c, errcode.ErrInvalid, "invalid version")
		return
	}
	doc, err := h.versions.Restore(c.Request.Context(), getUserID(c), c.Param("id"), versionNumber)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

type createBranchRequest struct {
	BranchName        string `json:"branch_name"`
	FromVersion       int    `json:"from_version"`
	ChangeDescription string `json:"change_description"`
}

func (h *VersionHandler) CreateBranch(c *gin.Context) {
	var req createBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.FromVersion < 0 {
		response.Error(c, errcode.ErrInvalid, "invalid from_version")
		return
	}
	branch, err := h.versions.CreateBranch(c.Request.Context(), getUserID(c), c.Param("id"), service.CreateBranchInput{
		BranchName:        req.BranchName,
		FromVersionNumber: req.FromVersion,
		ChangeDescription: req.ChangeDescription,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, branch)
}

func (h *VersionHandler) ListBranches(c *gin.Context) {
	branches, err := h.versions.ListBranches(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, branches)
}

func (h *VersionHandler) Compare(c *gin.Context) {
	from := intQuery(c, "from", 0)
	to := intQuery(c, "to", 0)
	if from <= 0 || to <= 0 {
		response.Error(c, errcode.ErrInvalid, "from and to versions required")
		return
	}
	comparison, err := h.versions.CompareVersions(c.Request.Context(), getUserID(c), c.Param("id"), from, to)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, comparison)
}

func (h *VersionHandler) StorageUsage(c *gin.Context) {
	usage, err := h.versions.StorageUsage(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, usage)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	value := c.Query(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
