package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"recipebox/internal/middleware"
	"recipebox/internal/reconciler"
)

type reviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=2000"`
}

// ListReviews handles GET /recipes/:id/reviews
func (a *API) ListReviews(c *gin.Context) {
	id := c.Param("id")

	a.serveCached(c, a.config.DetailTTL, func(ctx context.Context) (interface{}, error) {
		if _, err := a.store.GetRecipe(ctx, id); err != nil {
			return nil, err
		}
		reviews, err := a.store.ListReviews(ctx, id)
		if err != nil {
			return nil, err
		}
		return gin.H{"reviews": reviews, "count": len(reviews)}, nil
	})
}

// CreateReview handles POST /recipes/:id/reviews. An author's second review
// is rejected with 409 instead of overwriting the first.
func (a *API) CreateReview(c *gin.Context) {
	a.writeReview(c, reconciler.ModeCreate, http.StatusCreated)
}

// UpdateReview handles PUT /recipes/:id/reviews
func (a *API) UpdateReview(c *gin.Context) {
	a.writeReview(c, reconciler.ModeUpdate, http.StatusOK)
}

func (a *API) writeReview(c *gin.Context, mode reconciler.Mode, status int) {
	var req reviewRequest
	if !a.bind(c, &req) {
		return
	}

	review, outcome, err := a.reconciler.UpsertReview(c.Request.Context(), c.Param("id"), middleware.UserID(c),
		reconciler.ReviewInput{Rating: req.Rating, Comment: req.Comment}, mode)
	if err != nil {
		a.fail(c, "failed to write review", err)
		return
	}

	c.JSON(status, gin.H{"review": review, "outcome": outcome})
}

// DeleteReview handles DELETE /recipes/:id/reviews. Deleting a review that
// does not exist succeeds with removed=false.
func (a *API) DeleteReview(c *gin.Context) {
	removed, err := a.reconciler.RemoveReview(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		a.fail(c, "failed to delete review", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
