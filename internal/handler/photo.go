package handler

import (
	"io"
	"net/http"

	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/PeraltaFrian/photo-sharing/internal/service"
	"github.com/gin-gonic/gin"
)

const maxImageBytes = 10 << 20

const photoFieldsRequired = "Name, description, and image are required"

type PhotoHandler struct {
	svc *service.PhotoService
}

func NewPhotoHandler(svc *service.PhotoService) *PhotoHandler {
	return &PhotoHandler{svc: svc}
}

// ListPhotos godoc
// @Summary List photos, newest first
// @Tags photos
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Photo
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /photos [get]
func (h *PhotoHandler) ListPhotos(c *gin.Context) {
	photos, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err, map[error]string{nil: "Failed to fetch photos"})
		return
	}
	if photos == nil {
		photos = []model.Photo{}
	}
	c.JSON(http.StatusOK, photos)
}

// UploadPhoto godoc
// @Summary Upload a photo
// @Tags photos
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param name formData string true "Photo name"
// @Param description formData string true "Photo description"
// @Param image formData file true "Image file"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /photos [post]
func (h *PhotoHandler) UploadPhoto(c *gin.Context) {
	photo := model.NewPhoto{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
	}

	header, err := c.FormFile("image")
	if err != nil {
		abortJSON(c, http.StatusBadRequest, photoFieldsRequired)
		return
	}
	if header.Size > maxImageBytes {
		abortJSON(c, http.StatusBadRequest, "Image is too large")
		return
	}

	f, err := header.Open()
	if err != nil {
		writeServiceError(c, err, map[error]string{nil: "Failed to upload photo"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	if err != nil {
		writeServiceError(c, err, map[error]string{nil: "Failed to upload photo"})
		return
	}
	photo.Data = data
	photo.FileName = header.Filename
	photo.ContentType = header.Header.Get("Content-Type")

	if _, err := h.svc.Upload(c.Request.Context(), photo); err != nil {
		writeServiceError(c, err, map[error]string{
			service.ErrInvalidInput: photoFieldsRequired,
			nil:                     "Failed to upload photo",
		})
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Photo uploaded successfully"})
}

// DeletePhoto godoc
// @Summary Delete a photo
// @Tags photos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Success 200 {object} model.MessageResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /photos/{id} [delete]
func (h *PhotoHandler) DeletePhoto(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeServiceError(c, err, map[error]string{
			service.ErrNotFound: "Photo not found",
			nil:                 "Failed to delete photo",
		})
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Photo deleted successfully."})
}

// UpdateLikes godoc
// @Summary Set the like count of a photo
// @Tags photos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Param request body model.LikesRequest true "Likes between 0 and 5"
// @Success 200 {object} model.LikesResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /photos/{id}/likes [put]
func (h *PhotoHandler) UpdateLikes(c *gin.Context) {
	const invalidLikes = "Likes must be a number between 0 and 5"

	var req model.LikesRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Likes == nil {
		abortJSON(c, http.StatusBadRequest, invalidLikes)
		return
	}

	if err := h.svc.UpdateLikes(c.Request.Context(), c.Param("id"), *req.Likes); err != nil {
		writeServiceError(c, err, map[error]string{
			service.ErrInvalidInput: invalidLikes,
			service.ErrNotFound:     "Photo not found",
			nil:                     "Failed to update likes",
		})
		return
	}
	c.JSON(http.StatusOK, model.LikesResponse{Message: "Likes updated", Likes: *req.Likes})
}
