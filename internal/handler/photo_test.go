package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPhotos(t *testing.T) {
	env := newTestEnv(t)
	env.content.photos = []model.Photo{{ID: "e1", Name: "Sunset", Description: "Beach", ImageURL: "https://images.ctfassets.net/a.jpg", Likes: 3}}

	rec := env.json(http.MethodGet, "/photos", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	env.register("alice@example.com", "pw-12345")
	token := env.login("alice@example.com", "pw-12345")

	rec = env.json(http.MethodGet, "/photos", nil, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"e1","name":"Sunset","description":"Beach","imageUrl":"https://images.ctfassets.net/a.jpg","likes":3}]`, rec.Body.String())

	env.content.photos = nil
	rec = env.json(http.MethodGet, "/photos", nil, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	env.content.err = errors.New("cdn down")
	rec = env.json(http.MethodGet, "/photos", nil, bearer(token))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch photos", decodeError(t, rec).Error)
}

func TestUploadPhoto(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "pw-12345")
	token := env.login("alice@example.com", "pw-12345")

	upload := func(fields map[string]string, image []byte) *httptest.ResponseRecorder {
		reader, contentType := multipartPhoto(t, fields, image)
		req := httptest.NewRequest(http.MethodPost, "/photos", reader)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		return env.send(req)
	}

	rec := upload(map[string]string{"name": "Sunset", "description": "Beach"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Name, description, and image are required", decodeError(t, rec).Error)

	rec = upload(map[string]string{"name": "Sunset"}, []byte("img"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(map[string]string{"name": "Sunset", "description": "Beach"}, []byte("image-bytes"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Photo uploaded successfully"}`, rec.Body.String())
	require.Len(t, env.content.uploads, 1)
	got := env.content.uploads[0]
	assert.Equal(t, "Sunset", got.Name)
	assert.Equal(t, "sunset.jpg", got.FileName)
	assert.Equal(t, []byte("image-bytes"), got.Data)

	env.content.err = errors.New("upload failed")
	rec = upload(map[string]string{"name": "Sunset", "description": "Beach"}, []byte("image-bytes"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to upload photo", decodeError(t, rec).Error)
}

func TestUpdateLikes(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "pw-12345")
	token := env.login("alice@example.com", "pw-12345")

	for _, body := range []any{
		map[string]any{"likes": 6},
		map[string]any{"likes": -1},
		map[string]any{"likes": "three"},
		map[string]any{},
	} {
		rec := env.json(http.MethodPut, "/photos/e1/likes", body, bearer(token))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Likes must be a number between 0 and 5", decodeError(t, rec).Error)
	}

	rec := env.json(http.MethodPut, "/photos/e1/likes", model.LikesRequest{Likes: intPtr(0)}, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.json(http.MethodPut, "/photos/e1/likes", model.LikesRequest{Likes: intPtr(5)}, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.LikesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.LikesResponse{Message: "Likes updated", Likes: 5}, resp)
	assert.Equal(t, 5, env.content.likes["e1"])

	rec = env.json(http.MethodPut, "/photos/missing/likes", model.LikesRequest{Likes: intPtr(2)}, bearer(token))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletePhotoRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "pw-12345")
	userToken := env.login("alice@example.com", "pw-12345")

	rec := env.json(http.MethodDelete, "/photos/e1", nil, bearer(userToken))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied: requires admin role", decodeError(t, rec).Error)

	adminToken := env.loginAdmin()
	rec = env.json(http.MethodDelete, "/photos/e1", nil, bearer(adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Photo deleted successfully."}`, rec.Body.String())
	assert.Equal(t, []string{"e1"}, env.content.deleted)

	rec = env.json(http.MethodDelete, "/photos/missing", nil, bearer(adminToken))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPhotosWithoutContentStore(t *testing.T) {
	env := newTestEnvWith(t, envOptions{noContent: true})
	env.register("alice@example.com", "pw-12345")
	token := env.login("alice@example.com", "pw-12345")

	rec := env.json(http.MethodGet, "/photos", nil, bearer(token))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
