package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipebox/pkg/models"
)

// catalogRoutes maps each lookup collection to its route
var catalogRoutes = map[string]models.CatalogKind{
	"categories":  models.KindCategory,
	"areas":       models.KindArea,
	"ingredients": models.KindIngredient,
}

type catalogRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
	Thumb       string `json:"thumb" binding:"omitempty,url"`
}

// ListCatalog handles GET /categories, /areas and /ingredients
func (a *API) ListCatalog(kind models.CatalogKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		a.serveCached(c, a.config.ListingTTL, func(ctx context.Context) (interface{}, error) {
			items, err := a.store.ListCatalog(ctx, kind)
			if err != nil {
				return nil, err
			}
			return gin.H{"items": items, "count": len(items)}, nil
		})
	}
}

// CreateCatalogItem handles POST /categories, /areas and /ingredients
func (a *API) CreateCatalogItem(route string, kind models.CatalogKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req catalogRequest
		if !a.bind(c, &req) {
			return
		}

		item := &models.CatalogItem{
			Kind:        kind,
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Thumb:       req.Thumb,
		}

		ctx := writeContext(c)
		if err := a.store.CreateCatalogItem(ctx, item); err != nil {
			a.fail(c, "failed to create "+string(kind), err)
			return
		}
		a.invalidate(ctx, "/"+route, "/admin/stats")

		a.logger.Info("catalog item created", zap.String("kind", string(kind)), zap.String("name", item.Name))
		c.JSON(http.StatusCreated, item)
	}
}
