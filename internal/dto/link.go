package dto

import (
	"github.com/gin-gonic/gin"

	"geolink-go/pkg/utils"
)

// CreateLinkRequest creates a new link. Destinations must carry a "default"
// entry; other keys are two-letter country codes.
type CreateLinkRequest struct {
	AccountID    string            `json:"accountId" binding:"required,max=64"`
	Name         string            `json:"name" binding:"required,max=255"`
	Destinations map[string]string `json:"destinations" binding:"required"`
}

// UpdateLinkRequest replaces a link's name and destinations mapping.
type UpdateLinkRequest struct {
	Name         string            `json:"name" binding:"required,max=255"`
	Destinations map[string]string `json:"destinations" binding:"required"`
}

// Validate applies the destination-mapping rules gin's binding tags cannot
// express.
func (r *CreateLinkRequest) Validate() error {
	if err := utils.ValidateDestinations(r.Destinations); err != nil {
		return gin.Error{
			Err:  err,
			Type: gin.ErrorTypeBind,
		}
	}
	return nil
}

func (r *UpdateLinkRequest) Validate() error {
	if err := utils.ValidateDestinations(r.Destinations); err != nil {
		return gin.Error{
			Err:  err,
			Type: gin.ErrorTypeBind,
		}
	}
	return nil
}
