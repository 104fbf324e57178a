package handlers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"tvicl/server/internal/api/handlers"
	"tvicl/server/internal/services"
	"tvicl/server/internal/storage"
	"tvicl/server/internal/utils"
)

func newUploadRouter(user utils.SixID, store *MockS3Storage, queue *MockMediaQueue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewUploadHandler(store, queue)
	r := gin.New()
	uploads := r.Group("/api/uploads", asUser(user, false))
	uploads.POST("/presign", h.Presign)
	uploads.POST("/process", h.Process)
	return r
}

func TestUploadHandler_Presign(t *testing.T) {
	user := utils.NewSixID()
	store, queue := new(MockS3Storage), new(MockMediaQueue)
	r := newUploadRouter(user, store, queue)

	upload := &storage.PresignedUpload{
		UploadURL: "https://bucket.s3.amazonaws.com/uploads/x?sig=1",
		Key:       "uploads/x/photo.jpg",
		PublicURL: "https://cdn.example.com/uploads/x/photo.jpg",
		ExpiresAt: time.Now().Add(storage.PresignExpiry),
	}
	store.On("GeneratePresignedPutURL", mock.Anything, user, "photo.jpg", "image/jpeg").Return(upload, nil)
	store.On("GeneratePresignedPutURL", mock.Anything, user, "run.exe", "application/x-msdownload").
		Return(nil, fmt.Errorf("%w: %q", storage.ErrUnsupportedContentType, "application/x-msdownload"))

	w := serve(r, "POST", "/api/uploads/presign", map[string]string{"filename": "photo.jpg", "contentType": "image/jpeg"})
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, upload.UploadURL, body["uploadUrl"])
	assert.Equal(t, upload.PublicURL, body["publicUrl"])

	w = serve(r, "POST", "/api/uploads/presign", map[string]string{"filename": "run.exe", "contentType": "application/x-msdownload"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "contentType")

	w = serve(r, "POST", "/api/uploads/presign", map[string]string{"contentType": "image/png"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "filename")
}

func TestUploadHandler_Process(t *testing.T) {
	user := utils.NewSixID()
	store, queue := new(MockS3Storage), new(MockMediaQueue)
	r := newUploadRouter(user, store, queue)

	own := "uploads/" + user.String() + "/abc_photo.jpg"
	queue.On("EnqueueMediaProcess", mock.Anything, own).Return(nil)
	store.On("PublicURL", own).Return("https://cdn.example.com/" + own)

	w := serve(r, "POST", "/api/uploads/process", map[string]string{"key": own})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "https://cdn.example.com/"+own, decodeBody(t, w)["url"])

	for _, key := range []string{
		"uploads/" + utils.NewSixID().String() + "/photo.jpg",
		"uploads/" + user.String() + "/../other/photo.jpg",
		"private/photo.jpg",
	} {
		assert.Equal(t, http.StatusForbidden, serve(r, "POST", "/api/uploads/process", map[string]string{"key": key}).Code, key)
	}
	queue.AssertNumberOfCalls(t, "EnqueueMediaProcess", 1)
}

func TestAnalyticsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	queries := new(MockListingQueryService)
	h := handlers.NewAnalyticsHandler(queries)
	user := utils.NewSixID()
	r := gin.New()
	r.GET("/api/analytics/by-listing-type", h.ByListingType)
	r.GET("/api/analytics/top-viewed", h.TopViewed)
	r.GET("/api/analytics/recommendations", asUser(user, false), h.Recommendations)

	queries.On("CountByListingType", mock.Anything).Return([]services.ListingTypeCount{{ListingType: "sale", Count: 3}}, nil)
	queries.On("TopViewed", mock.Anything, services.DefaultAnalyticsSize).Return(nil, &services.StorageError{Op: "top viewed", Err: fmt.Errorf("timeout")})
	queries.On("Recommendations", mock.Anything, user).Return([]services.ScoredProperty{}, nil)

	w := serve(r, "GET", "/api/analytics/by-listing-type", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[{"listingType":"sale","count":3}]}`, w.Body.String())

	assert.Equal(t, http.StatusInternalServerError, serve(r, "GET", "/api/analytics/top-viewed", nil).Code)

	w = serve(r, "GET", "/api/analytics/recommendations", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[]}`, w.Body.String())
}
