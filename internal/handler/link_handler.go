package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"geolink-go/internal/apperrors"
	"geolink-go/internal/dto"
	"geolink-go/internal/service"
	"geolink-go/response"
)

// LinkHandler serves the link management API.
type LinkHandler struct {
	service *service.LinkService
	logger  *zap.Logger
}

func NewLinkHandler(linkService *service.LinkService, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		service: linkService,
		logger:  logger,
	}
}

// Create registers a new link and returns the generated identifier.
func (h *LinkHandler) Create(c *gin.Context) {
	var req dto.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Request body binding failed",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		_ = c.Error(apperrors.InvalidRequestErrorDefault())
		return
	}

	link, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.logger.Warn("Link creation failed",
			zap.Error(err),
			zap.String("account_id", req.AccountID),
		)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response.OK(link, "Link created"))
}

// Update replaces a link's name and destinations and invalidates its cached
// snapshot.
func (h *LinkHandler) Update(c *gin.Context) {
	linkID := c.Param("linkId")

	var req dto.UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Request body binding failed",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		_ = c.Error(apperrors.InvalidRequestErrorDefault())
		return
	}

	if err := h.service.Update(c.Request.Context(), linkID, req); err != nil {
		h.logger.Warn("Link update failed",
			zap.Error(err),
			zap.String("link_id", linkID),
		)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response.OK(struct{}{}, "Link updated"))
}

// Get returns one link.
func (h *LinkHandler) Get(c *gin.Context) {
	link, err := h.service.Get(c.Request.Context(), c.Param("linkId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response.OK(link, "success"))
}

// List returns a page of links.
func (h *LinkHandler) List(c *gin.Context) {
	page, size, err := pageParams(c)
	if err != nil {
		_ = c.Error(apperrors.InvalidRequestError(err.Error()))
		return
	}

	pageResp, listErr := h.service.List(c.Request.Context(), page, size, c.Query("accountId"))
	if listErr != nil {
		_ = c.Error(listErr)
		return
	}

	c.JSON(http.StatusOK, response.OK(pageResp, "success"))
}

func pageParams(c *gin.Context) (int, int, error) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 0, 0, errPageParam
	}

	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil || size < 1 || size > 100 {
		return 0, 0, errSizeParam
	}

	return page, size, nil
}
