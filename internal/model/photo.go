package model

type Photo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	Likes       int    `json:"likes"`
}

// NewPhoto carries an upload from the multipart form to the content store.
type NewPhoto struct {
	Name        string
	Description string
	FileName    string
	ContentType string
	Data        []byte
}

type LikesRequest struct {
	Likes *int `json:"likes"`
}

type LikesResponse struct {
	Message string `json:"message"`
	Likes   int    `json:"likes"`
}
