package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"geolink-go/internal/service"
)

// Edge-provided geolocation headers.
const (
	latitudeHeader  = "X-Latitude"
	longitudeHeader = "X-Longitude"
)

// RedirectHandler serves the latency-critical redirect path.
type RedirectHandler struct {
	service       *service.RedirectService
	countryHeader string
}

// NewRedirectHandler builds a RedirectHandler reading the request country
// from the given edge header.
func NewRedirectHandler(redirectService *service.RedirectService, countryHeader string) *RedirectHandler {
	if countryHeader == "" {
		countryHeader = "CF-IPCountry"
	}
	return &RedirectHandler{
		service:       redirectService,
		countryHeader: countryHeader,
	}
}

// Redirect resolves the path as a link identifier and answers 302, or 404
// when the identifier is unknown. Nothing else on this path may fail the
// response.
func (h *RedirectHandler) Redirect(c *gin.Context) {
	linkID := strings.TrimPrefix(c.Request.URL.Path, "/")

	country := c.GetHeader(h.countryHeader)
	if country == "" {
		country = service.UnknownCountry
	}

	latitude := parseCoordinate(c.GetHeader(latitudeHeader))
	longitude := parseCoordinate(c.GetHeader(longitudeHeader))

	destination, ok := h.service.Resolve(c.Request.Context(), linkID, country, latitude, longitude)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Redirect(http.StatusFound, destination)
}

func parseCoordinate(raw string) *float64 {
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &value
}
